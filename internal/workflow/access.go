package workflow

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

// AccessRequestInput is what an outsider submits to ask for an account.
type AccessRequestInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Justification string `json:"justification"`
	Department    string `json:"department"`
	Role          string `json:"role"`
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// SubmitAccessRequest records a request for an account. It needs no
// authenticated actor.
func (s *Service) SubmitAccessRequest(ctx context.Context, in AccessRequestInput) (ar model.AccessRequest, err error) {
	ctx, finish := s.start(ctx, "access_request", "", Actor{})
	defer func() { finish(err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = model.NormalizeEmail(in.Email)
	switch {
	case in.Name == "":
		return ar, validationf("name is required")
	case !validEmail(in.Email):
		return ar, validationf("invalid email %q", in.Email)
	case strings.TrimSpace(in.Justification) == "":
		return ar, validationf("justification is required")
	case in.Role != "" && !model.ValidRole(in.Role):
		return ar, validationf("unknown role %q", in.Role)
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		st := tx.View()
		if _, ok := st.UserByEmail(in.Email); ok {
			return conflictf("a user with email %s already exists", in.Email)
		}
		for _, r := range st.AccessRequests {
			if r.Status == model.RequestStatusPending && model.NormalizeEmail(r.Email) == in.Email {
				return conflictf("a request for %s is already pending", in.Email)
			}
		}

		now := s.now()
		ar = model.AccessRequest{
			ID:            tx.NextID(state.BucketAccessRequests),
			Name:          in.Name,
			Email:         in.Email,
			Justification: strings.TrimSpace(in.Justification),
			Department:    strings.TrimSpace(in.Department),
			Role:          in.Role,
			RequestedAt:   now,
			Status:        model.RequestStatusPending,
		}
		list := tx.AccessRequests()
		*list = append(*list, ar)
		return tx.Emit(state.EventCreated, state.SubjectAccessRequest, ar.ID, in.Email, now, ar)
	})
	return ar, err
}

func pendingAccess(st *state.State, id int64) (model.AccessRequest, error) {
	ar, ok := state.Get(st.AccessRequests, id)
	if !ok {
		return ar, notFoundf("access request %d", id)
	}
	if ar.Status != model.RequestStatusPending {
		return ar, fmt.Errorf("%w: access request %d is already %s", ErrInvalidState, id, ar.Status)
	}
	return ar, nil
}

// ApproveAccessRequest creates the requested account and marks the request
// approved. The caller sets the new user's password.
func (s *Service) ApproveAccessRequest(ctx context.Context, actor Actor, id int64) (u model.User, err error) {
	ctx, finish := s.start(ctx, "approve_access", "", actor, attribute.Int64("access_request.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ReviewAccess); err != nil {
		return u, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		ar, err := pendingAccess(tx.View(), id)
		if err != nil {
			return err
		}
		if _, ok := tx.View().UserByEmail(ar.Email); ok {
			return conflictf("a user with email %s already exists", ar.Email)
		}

		role := ar.Role
		if !model.ValidRole(role) {
			role = model.RoleViewer
		}
		u = model.User{
			ID:         tx.NextID(state.BucketUsers),
			Name:       ar.Name,
			Email:      ar.Email,
			Role:       role,
			Department: ar.Department,
		}
		users := tx.Users()
		*users = append(*users, u)

		state.Patch(*tx.AccessRequests(), id, func(r *model.AccessRequest) {
			r.Status = model.RequestStatusApproved
			r.ReviewedBy = actor.Label()
			r.ReviewedAt = &now
		})
		tx.AddActivity(model.Activity{
			Type:        "Acceso",
			Description: fmt.Sprintf("Acceso aprobado para %s (%s)", u.Name, u.Role),
			At:          now,
			Actor:       actor.Label(),
		})
		return tx.Emit(state.EventApproved, state.SubjectAccessRequest, id, actor.Email, now, u)
	})
	return u, err
}

// RejectAccessRequest marks an access request rejected.
func (s *Service) RejectAccessRequest(ctx context.Context, actor Actor, id int64) (ar model.AccessRequest, err error) {
	ctx, finish := s.start(ctx, "reject_access", "", actor, attribute.Int64("access_request.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ReviewAccess); err != nil {
		return ar, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		if _, err := pendingAccess(tx.View(), id); err != nil {
			return err
		}
		state.Patch(*tx.AccessRequests(), id, func(r *model.AccessRequest) {
			r.Status = model.RequestStatusRejected
			r.ReviewedBy = actor.Label()
			r.ReviewedAt = &now
			ar = *r
		})
		return tx.Emit(state.EventRejected, state.SubjectAccessRequest, id, actor.Email, now, nil)
	})
	return ar, err
}
