package workflow

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

func fixtureItems() []model.Item {
	return []model.Item{
		serialized(1, "X1", model.ItemStatusAvailable),
		serialized(2, "X2", model.ItemStatusRetired),
		bulk(3, 3, model.ItemStatusAvailable),
		bulk(4, 2, model.ItemStatusAvailable),
	}
}

func taskActions() []model.Action {
	return []model.Action{
		assignAction(1, "Juan", 0),
		assignAction(3, "Juan", 4),
		{Type: model.ActionRetire, Details: model.ActionDetails{ItemIDs: []int64{1}, Reason: "Obsoleto"}},
		{Type: model.ActionReactivate, Details: model.ActionDetails{ItemIDs: []int64{2}}},
		{Type: model.ActionLoad, Details: model.ActionDetails{Item: &model.Item{Name: "Cable"}, Quantity: 10}},
		{Type: model.ActionDuplicateProduct, Details: model.ActionDetails{ItemIDs: []int64{1}}},
	}
}

func taskActionGen() *rapid.Generator[model.Action] {
	return rapid.SampledFrom(taskActions())
}

func actionGen() *rapid.Generator[model.Action] {
	return rapid.SampledFrom(append(taskActions(),
		model.Action{Type: model.ActionBulkRetire, Details: model.ActionDetails{ItemIDs: []int64{3, 4}, Reason: "Dañado"}},
	))
}

func TestRoleGateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newService(t, fixtureItems()...)
		actor := rapid.SampledFrom([]Actor{admin, editor}).Draw(t, "actor")
		a := actionGen().Draw(t, "action")
		before := snap(s)

		out, err := s.Submit(context.Background(), actor, a)
		if err != nil {
			t.Fatalf("Submit(%s, %s): %v", actor.Role, a.Type, err)
		}
		after := snap(s)

		switch actor.Role {
		case model.RoleEditor:
			if len(after.Requests) != len(before.Requests)+1 {
				t.Fatalf("editor produced %d requests", len(after.Requests)-len(before.Requests))
			}
			if after.Requests[len(after.Requests)-1].Status != model.RequestStatusPending {
				t.Fatal("deferred request is not pending")
			}
			if len(after.Items) != len(before.Items) || len(after.Assignments) != 0 {
				t.Fatal("editor mutated the inventory")
			}
			for i := range before.Items {
				if after.Items[i].Status != before.Items[i].Status || after.Items[i].Quantity != before.Items[i].Quantity {
					t.Fatalf("editor changed item %d", before.Items[i].ID)
				}
			}
		case model.RoleAdmin:
			if len(after.Requests) != 0 || out.Request != nil {
				t.Fatal("administrator produced a pending request")
			}
			if out.Effects == nil || len(out.Effects.Items) == 0 {
				t.Fatal("administrator action had no effect")
			}
		}
	})
}

func mouseUnits(st *state.State) (total int) {
	for _, it := range st.Items {
		if it.Name == "Mouse" {
			if it.Quantity < 0 {
				return -1
			}
			total += it.Quantity
		}
	}
	return total
}

func TestBulkUnitsConservedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newService(t, bulk(1, 3, model.ItemStatusAvailable), bulk(2, 2, model.ItemStatusAvailable))
		ctx := context.Background()

		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for range steps {
			st := snap(s)
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				_, _ = s.Submit(ctx, admin, assignAction(1, "Juan", rapid.IntRange(1, 6).Draw(t, "qty")))
			case 1:
				if len(st.Assignments) > 0 {
					as := rapid.SampledFrom(st.Assignments).Draw(t, "assignment")
					_, _ = s.Submit(ctx, admin, model.Action{Type: model.ActionReturn, Details: model.ActionDetails{AssignmentID: as.ID}})
				}
			case 2:
				due := fixedNow.AddDate(0, 0, 3)
				_, _ = s.Submit(ctx, admin, model.Action{Type: model.ActionLend, Details: model.ActionDetails{
					ItemIDs: []int64{2}, AssignedTo: "Luis", DueDate: &due, Quantity: rapid.IntRange(1, 3).Draw(t, "qty"),
				}})
			case 3:
				if len(st.Loans) > 0 {
					l := rapid.SampledFrom(st.Loans).Draw(t, "loan")
					_, _ = s.Submit(ctx, admin, model.Action{Type: model.ActionReturn, Details: model.ActionDetails{LoanID: l.ID}})
				}
			}

			if got := mouseUnits(snap(s)); got != 5 {
				t.Fatalf("expected 5 mouse units across rows, got %d", got)
			}
		}
	})
}

func TestAuditAppendOnlyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newService(t, fixtureItems()...)
		ctx := context.Background()

		var ids []int64
		for range rapid.IntRange(1, 4).Draw(t, "tasks") {
			task, err := s.CreateTask(ctx, editor, taskActionGen().Draw(t, "action"))
			if err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			ids = append(ids, task.ID)
		}

		for range rapid.IntRange(1, 20).Draw(t, "steps") {
			before := map[int64]model.PendingTask{}
			for _, task := range snap(s).Tasks {
				before[task.ID] = task
			}

			id := rapid.SampledFrom(ids).Draw(t, "task")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_, _, _ = s.FinalizeTask(ctx, admin, id)
			case 1:
				_, _ = s.CancelTask(ctx, editor, id, "")
			case 2:
				task, _ := state.Get(snap(s).Tasks, id)
				_, _ = s.UpdateTask(ctx, editor, id, task.Details)
			}

			for _, task := range snap(s).Tasks {
				prev := before[task.ID]
				old := prev.Audit
				if len(task.Audit) < len(old) {
					t.Fatalf("task %d audit shrank from %d to %d", task.ID, len(old), len(task.Audit))
				}
				for i := range old {
					if task.Audit[i] != old[i] {
						t.Fatalf("task %d audit entry %d changed", task.ID, i)
					}
				}
				if !prev.Pending() && (len(task.Audit) != len(old) || task.Status != prev.Status) {
					t.Fatalf("terminal task %d changed", task.ID)
				}
			}
		}
	})
}

func TestIDsDistinctProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newService(t, fixtureItems()...)
		n := rapid.IntRange(1, 30).Draw(t, "n")

		seen := map[int64]bool{}
		for range n {
			task, err := s.CreateTask(context.Background(), editor, taskActionGen().Draw(t, "action"))
			if err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			if seen[task.ID] {
				t.Fatalf("task id %d reused", task.ID)
			}
			seen[task.ID] = true
		}
		if len(seen) != n {
			t.Fatalf("expected %d ids, got %d", n, len(seen))
		}
	})
}
