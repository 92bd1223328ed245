package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

func pendingTask(st *state.State, id int64) (model.PendingTask, error) {
	t, ok := state.Get(st.Tasks, id)
	if !ok {
		return t, notFoundf("task %d", id)
	}
	if !t.Pending() {
		return t, fmt.Errorf("%w: task %d is already %s", ErrInvalidState, id, t.Status)
	}
	return t, nil
}

// CreateTask records a pending task for later finalization.
func (s *Service) CreateTask(ctx context.Context, actor Actor, a model.Action) (task model.PendingTask, err error) {
	ctx, finish := s.start(ctx, "create_task", a.Type, actor)
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageTasks); err != nil {
		return task, err
	}
	if !model.ValidTaskType(a.Type) {
		return task, validationf("%q is not a task type", a.Type)
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		details, err := prepare(tx.View(), a)
		if err != nil {
			return err
		}
		task = model.PendingTask{
			ID:        tx.NextID(state.BucketTasks),
			Type:      a.Type,
			CreatedAt: now,
			CreatedBy: actor.Label(),
			Status:    model.TaskStatusPending,
			Details:   details,
			Audit: []model.AuditEntry{{
				Event:       model.AuditCreated,
				Actor:       actor.Label(),
				At:          now,
				Description: "Tarea de " + a.Type + " creada",
			}},
		}
		tasks := tx.Tasks()
		*tasks = append(*tasks, task)
		return tx.Emit(state.EventCreated, state.SubjectTask, task.ID, actor.Email, now, task)
	})
	return task, err
}

// UpdateTask replaces the details of a pending task.
func (s *Service) UpdateTask(ctx context.Context, actor Actor, id int64, d model.ActionDetails) (task model.PendingTask, err error) {
	ctx, finish := s.start(ctx, "update_task", "", actor, attribute.Int64("task.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageTasks); err != nil {
		return task, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		current, err := pendingTask(tx.View(), id)
		if err != nil {
			return err
		}
		details, err := prepare(tx.View(), model.Action{Type: current.Type, Details: d})
		if err != nil {
			return err
		}
		state.Patch(*tx.Tasks(), id, func(t *model.PendingTask) {
			t.Details = details
			t.Audit = audit(t.Audit, model.AuditEntry{
				Event:       model.AuditEdited,
				Actor:       actor.Label(),
				At:          now,
				Description: "Detalles de la tarea actualizados",
			})
			task = *t
		})
		return tx.Emit(state.EventEdited, state.SubjectTask, id, actor.Email, now, details)
	})
	return task, err
}

// FinalizeTask applies a pending task's effect and marks it finalized. If
// the effect cannot be applied the task stays pending.
func (s *Service) FinalizeTask(ctx context.Context, actor Actor, id int64) (task model.PendingTask, eff Effects, err error) {
	ctx, finish := s.start(ctx, "finalize_task", "", actor, attribute.Int64("task.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageTasks); err != nil {
		return task, eff, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		current, err := pendingTask(tx.View(), id)
		if err != nil {
			return err
		}
		eff, err = applyAction(tx, actor, model.Action{Type: current.Type, Details: current.Details}, now)
		if err != nil {
			return fmt.Errorf("applying task %d: %w", id, err)
		}
		state.Patch(*tx.Tasks(), id, func(t *model.PendingTask) {
			t.Status = model.TaskStatusFinalized
			t.Audit = audit(t.Audit, model.AuditEntry{
				Event:       model.AuditApproved,
				Actor:       actor.Label(),
				At:          now,
				Description: "Tarea finalizada",
			})
			task = *t
		})
		return tx.Emit(state.EventFinalized, state.SubjectTask, id, actor.Email, now, eff)
	})
	return task, eff, err
}

// CancelTask marks a pending task cancelled without touching the inventory.
func (s *Service) CancelTask(ctx context.Context, actor Actor, id int64, reason string) (task model.PendingTask, err error) {
	ctx, finish := s.start(ctx, "cancel_task", "", actor, attribute.Int64("task.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageTasks); err != nil {
		return task, err
	}

	reason = strings.TrimSpace(reason)
	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		current, err := pendingTask(tx.View(), id)
		if err != nil {
			return err
		}
		desc := "Tarea cancelada"
		if reason != "" {
			desc += ": " + reason
		}
		state.Patch(*tx.Tasks(), id, func(t *model.PendingTask) {
			t.Status = model.TaskStatusCancelled
			t.Audit = audit(t.Audit, model.AuditEntry{
				Event:       model.AuditCancelled,
				Actor:       actor.Label(),
				At:          now,
				Description: desc,
			})
			task = *t
		})
		tx.AddActivity(model.Activity{
			Type:        current.Type,
			Description: fmt.Sprintf("Tarea #%d cancelada", id),
			At:          now,
			Actor:       actor.Label(),
			Details:     map[string]string{"task": fmt.Sprint(id)},
		})
		return tx.Emit(state.EventCancelled, state.SubjectTask, id, actor.Email, now, map[string]string{"reason": reason})
	})
	return task, err
}
