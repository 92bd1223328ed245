package workflow

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

func normalizeUser(u model.User) (model.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = model.NormalizeEmail(u.Email)
	u.Department = strings.TrimSpace(u.Department)
	switch {
	case u.Name == "":
		return u, validationf("name is required")
	case !validEmail(u.Email):
		return u, validationf("invalid email %q", u.Email)
	case !model.ValidRole(u.Role):
		return u, validationf("unknown role %q", u.Role)
	}
	return u, nil
}

func admins(users []model.User) int {
	n := 0
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			n++
		}
	}
	return n
}

// CreateUser adds an account. The caller sets its password.
func (s *Service) CreateUser(ctx context.Context, actor Actor, in model.User) (u model.User, err error) {
	ctx, finish := s.start(ctx, "create_user", "", actor)
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageUsers); err != nil {
		return u, err
	}
	if u, err = normalizeUser(in); err != nil {
		return model.User{}, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		if _, ok := tx.View().UserByEmail(u.Email); ok {
			return conflictf("a user with email %s already exists", u.Email)
		}
		u.ID = tx.NextID(state.BucketUsers)
		users := tx.Users()
		*users = append(*users, u)
		return tx.Emit(state.EventCreated, state.SubjectUser, u.ID, actor.Email, s.now(), u)
	})
	return u, err
}

// BootstrapAdmin creates the first administrator when the system has no
// users. It reports whether a user was created.
func (s *Service) BootstrapAdmin(ctx context.Context, in model.User) (model.User, bool, error) {
	if len(s.store.Snapshot().Users) > 0 {
		return model.User{}, false, nil
	}
	in.Role = model.RoleAdmin
	u, err := normalizeUser(in)
	if err != nil {
		return model.User{}, false, err
	}

	created := false
	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		if len(tx.View().Users) > 0 {
			return nil
		}
		u.ID = tx.NextID(state.BucketUsers)
		users := tx.Users()
		*users = append(*users, u)
		created = true
		return tx.Emit(state.EventCreated, state.SubjectUser, u.ID, System.Label(), s.now(), u)
	})
	if err != nil || !created {
		return model.User{}, false, err
	}
	return u, true, nil
}

// UpdateUser replaces a user's profile and role. The last administrator
// cannot be demoted.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, id int64, in model.User) (u model.User, err error) {
	ctx, finish := s.start(ctx, "update_user", "", actor, attribute.Int64("user.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageUsers); err != nil {
		return u, err
	}
	if u, err = normalizeUser(in); err != nil {
		return model.User{}, err
	}
	u.ID = id

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		st := tx.View()
		current, ok := state.Get(st.Users, id)
		if !ok {
			return notFoundf("user %d", id)
		}
		if other, ok := st.UserByEmail(u.Email); ok && other.ID != id {
			return conflictf("a user with email %s already exists", u.Email)
		}
		if current.Role == model.RoleAdmin && u.Role != model.RoleAdmin && admins(st.Users) == 1 {
			return conflictf("cannot demote the last administrator")
		}
		state.Patch(*tx.Users(), id, func(p *model.User) { *p = u })
		return tx.Emit(state.EventEdited, state.SubjectUser, id, actor.Email, s.now(), u)
	})
	return u, err
}

// DeleteUser removes an account. Users cannot delete themselves and the last
// administrator cannot be removed.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, id int64) (err error) {
	ctx, finish := s.start(ctx, "delete_user", "", actor, attribute.Int64("user.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageUsers); err != nil {
		return err
	}
	if id == actor.ID {
		return conflictf("cannot delete your own account")
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		st := tx.View()
		u, ok := state.Get(st.Users, id)
		if !ok {
			return notFoundf("user %d", id)
		}
		if u.Role == model.RoleAdmin && admins(st.Users) == 1 {
			return conflictf("cannot delete the last administrator")
		}
		users := tx.Users()
		*users, _ = state.Remove(*users, id)
		return tx.Emit(state.EventDeleted, state.SubjectUser, id, actor.Email, s.now(), nil)
	})
	return err
}
