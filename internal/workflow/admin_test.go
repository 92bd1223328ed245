package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

func TestAccessRequestApproval(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	ar, err := s.SubmitAccessRequest(ctx, AccessRequestInput{
		Name:          "Luis Pérez",
		Email:         " Luis@Example.com ",
		Justification: "Nuevo técnico de soporte",
		Role:          model.RoleEditor,
	})
	require.NoError(t, err)
	assert.Equal(t, "luis@example.com", ar.Email)
	assert.Equal(t, model.RequestStatusPending, ar.Status)

	_, err = s.SubmitAccessRequest(ctx, AccessRequestInput{Name: "Luis", Email: "luis@example.com", Justification: "otra vez"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.ApproveAccessRequest(ctx, editor, ar.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	u, err := s.ApproveAccessRequest(ctx, admin, ar.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEditor, u.Role)
	_, ok := snap(s).UserByEmail("luis@example.com")
	assert.True(t, ok)

	_, err = s.RejectAccessRequest(ctx, admin, ar.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAccessRequestDefaultsToViewer(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	ar, err := s.SubmitAccessRequest(ctx, AccessRequestInput{Name: "Rosa", Email: "rosa@example.com", Justification: "Consulta"})
	require.NoError(t, err)
	u, err := s.ApproveAccessRequest(ctx, admin, ar.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, u.Role)
}

func TestAccessRequestValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	tests := []AccessRequestInput{
		{Email: "a@example.com", Justification: "x"},
		{Name: "A", Email: "not-an-email", Justification: "x"},
		{Name: "A", Email: "a@example.com"},
		{Name: "A", Email: "a@example.com", Justification: "x", Role: "Jefe"},
	}
	for _, in := range tests {
		_, err := s.SubmitAccessRequest(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, "input %+v", in)
	}

	_, err := s.SubmitAccessRequest(ctx, AccessRequestInput{Name: "Ana", Email: admin.Email, Justification: "x"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRejectAccessRequest(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	ar, err := s.SubmitAccessRequest(ctx, AccessRequestInput{Name: "Rosa", Email: "rosa@example.com", Justification: "Consulta"})
	require.NoError(t, err)
	got, err := s.RejectAccessRequest(ctx, admin, ar.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, got.Status)
	assert.Equal(t, "Ana", got.ReviewedBy)
	assert.Len(t, snap(s).Users, 2)
}

func TestUserAdministration(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, admin, model.User{Name: "Pablo", Email: "pablo@example.com", Role: model.RoleViewer})
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)

	_, err = s.CreateUser(ctx, admin, model.User{Name: "Otro", Email: "PABLO@example.com", Role: model.RoleViewer})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.CreateUser(ctx, editor, model.User{Name: "X", Email: "x@example.com", Role: model.RoleViewer})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.CreateUser(ctx, admin, model.User{Name: "X", Email: "x@example.com", Role: "Jefe"})
	assert.ErrorIs(t, err, ErrValidation)

	u.Role = model.RoleEditor
	u.Department = "Sistemas"
	got, err := s.UpdateUser(ctx, admin, u.ID, u)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEditor, got.Role)

	_, err = s.UpdateUser(ctx, admin, admin.ID, model.User{Name: "Ana", Email: admin.Email, Role: model.RoleEditor})
	assert.ErrorIs(t, err, ErrConflict, "last administrator cannot be demoted")

	assert.ErrorIs(t, s.DeleteUser(ctx, admin, admin.ID), ErrConflict)
	assert.ErrorIs(t, s.DeleteUser(ctx, admin, 99), ErrNotFound)
	require.NoError(t, s.DeleteUser(ctx, admin, u.ID))

	_, ok := state.Get(snap(s).Users, u.ID)
	assert.False(t, ok)
}

func TestBootstrapAdmin(t *testing.T) {
	s := New(state.NewStore(nil, nil))
	ctx := context.Background()

	u, created, err := s.BootstrapAdmin(ctx, model.User{Name: "admin", Email: "admin@example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.RoleAdmin, u.Role)

	_, created, err = s.BootstrapAdmin(ctx, model.User{Name: "other", Email: "other@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCatalogsAndAttributes(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	c, err := s.SetCatalogs(ctx, admin, model.Catalogs{Brands: []string{" Acme ", "Acme", "", "Dell"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Dell"}, c.Brands)
	assert.Equal(t, state.Default().Catalogs.Categories, c.Categories)

	_, err = s.SetCatalogs(ctx, editor, model.Catalogs{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	a, err := s.CreateAttribute(ctx, admin, model.CustomAttribute{Name: "Garantía extendida", Kind: model.AttributeDate})
	require.NoError(t, err)
	_, err = s.CreateAttribute(ctx, admin, model.CustomAttribute{Name: "garantía extendida"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.CreateAttribute(ctx, admin, model.CustomAttribute{Name: "Color", Kind: "rgb"})
	assert.ErrorIs(t, err, ErrValidation)

	a.Required = true
	got, err := s.UpdateAttribute(ctx, admin, a.ID, a)
	require.NoError(t, err)
	assert.True(t, got.Required)

	require.NoError(t, s.DeleteAttribute(ctx, admin, a.ID))
	assert.ErrorIs(t, s.DeleteAttribute(ctx, admin, a.ID), ErrNotFound)
}

func TestTaskLifecycle(t *testing.T) {
	s := newService(t, serialized(1, "X1", model.ItemStatusAvailable), serialized(2, "X2", model.ItemStatusAvailable))
	ctx := context.Background()

	task, err := s.CreateTask(ctx, editor, model.Action{
		Type:    model.ActionRetire,
		Details: model.ActionDetails{ItemIDs: []int64{1}, Reason: "Obsoleto"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, "X1", task.Details.Snapshots[0].SerialNumber)

	_, err = s.CreateTask(ctx, viewer, model.Action{Type: model.ActionRetire})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.CreateTask(ctx, editor, model.Action{Type: model.ActionReturn})
	assert.ErrorIs(t, err, ErrValidation)

	task, err = s.UpdateTask(ctx, editor, task.ID, model.ActionDetails{ItemIDs: []int64{2}, Reason: "Dañado"})
	require.NoError(t, err)
	require.Len(t, task.Audit, 2)
	assert.Equal(t, model.AuditEdited, task.Audit[1].Event)
	assert.Equal(t, "X2", task.Details.Snapshots[0].SerialNumber)

	task, eff, err := s.FinalizeTask(ctx, editor, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFinalized, task.Status)
	assert.Equal(t, []int64{2}, eff.Items)
	require.Len(t, task.Audit, 3)
	assert.Equal(t, model.AuditApproved, task.Audit[2].Event)

	it, _ := snap(s).Item(2)
	assert.Equal(t, model.ItemStatusRetired, it.Status)
	it, _ = snap(s).Item(1)
	assert.Equal(t, model.ItemStatusAvailable, it.Status)

	_, err = s.CancelTask(ctx, editor, task.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = s.UpdateTask(ctx, editor, task.ID, task.Details)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, _, err = s.FinalizeTask(ctx, editor, task.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelTask(t *testing.T) {
	s := newService(t, serialized(1, "X1", model.ItemStatusAvailable))
	ctx := context.Background()

	task, err := s.CreateTask(ctx, editor, assignAction(1, "Juan", 0))
	require.NoError(t, err)

	task, err = s.CancelTask(ctx, admin, task.ID, "Ya no se necesita")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, task.Status)
	assert.Equal(t, model.AuditCancelled, task.Audit[len(task.Audit)-1].Event)
	assert.Empty(t, snap(s).Assignments)

	_, _, err = s.FinalizeTask(ctx, admin, task.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

type countingRecorder map[string]int

func (c countingRecorder) Transition(kind, _, outcome string) {
	c[kind+"/"+outcome]++
}

func TestRecorderSeesOutcomes(t *testing.T) {
	rec := countingRecorder{}
	st := state.Default()
	st.Items = []model.Item{serialized(1, "X1", model.ItemStatusAvailable)}
	s := New(state.NewStore(st, nil), WithRecorder(rec))

	s.Submit(context.Background(), admin, assignAction(1, "Juan", 0))
	s.Submit(context.Background(), admin, assignAction(1, "Juan", 0))
	s.Submit(context.Background(), viewer, assignAction(1, "Juan", 0))

	assert.Equal(t, 1, rec["submit/ok"])
	assert.Equal(t, 1, rec["submit/conflict"])
	assert.Equal(t, 1, rec["submit/unauthorized"])
}

func TestImportStateRequiresAdmin(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.ImportState(ctx, editor, state.Default())
	assert.ErrorIs(t, err, ErrUnauthorized)

	imported := state.Default()
	imported.Items = []model.Item{bulk(7, 1, model.ItemStatusAvailable)}
	out, err := s.ImportState(ctx, admin, imported)
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Empty(t, out.Users)
}
