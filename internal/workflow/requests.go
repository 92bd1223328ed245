package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

func audit(log []model.AuditEntry, e model.AuditEntry) []model.AuditEntry {
	// Clip so the append never writes into an array shared with an older
	// snapshot.
	return append(slices.Clip(log), e)
}

func pendingRequest(st *state.State, id int64) (model.PendingActionRequest, error) {
	req, ok := state.Get(st.Requests, id)
	if !ok {
		return req, notFoundf("request %d", id)
	}
	if !req.Pending() {
		return req, fmt.Errorf("%w: request %d is already %s", ErrInvalidState, id, req.Status)
	}
	return req, nil
}

// ApproveRequest applies a pending action request's effect and marks it
// approved. If the effect cannot be applied the request stays pending.
func (s *Service) ApproveRequest(ctx context.Context, actor Actor, id int64) (req model.PendingActionRequest, eff Effects, err error) {
	ctx, finish := s.start(ctx, "approve_request", "", actor, attribute.Int64("request.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ReviewRequests); err != nil {
		return req, eff, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		pending, err := pendingRequest(tx.View(), id)
		if err != nil {
			return err
		}
		eff, err = applyAction(tx, actor, model.Action{Type: pending.Type, Details: pending.Details}, now)
		if err != nil {
			return fmt.Errorf("applying request %d: %w", id, err)
		}
		state.Patch(*tx.Requests(), id, func(r *model.PendingActionRequest) {
			r.Status = model.RequestStatusApproved
			r.ReviewedBy = actor.Label()
			r.ReviewedAt = &now
			r.Audit = audit(r.Audit, model.AuditEntry{
				Event:       model.AuditApproved,
				Actor:       actor.Label(),
				At:          now,
				Description: "Solicitud aprobada y aplicada",
			})
			req = *r
		})
		return tx.Emit(state.EventApproved, state.SubjectRequest, id, actor.Email, now, eff)
	})
	return req, eff, err
}

// RejectRequest marks a pending action request rejected. Nothing else in
// the inventory changes.
func (s *Service) RejectRequest(ctx context.Context, actor Actor, id int64, reason string) (req model.PendingActionRequest, err error) {
	ctx, finish := s.start(ctx, "reject_request", "", actor, attribute.Int64("request.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ReviewRequests); err != nil {
		return req, err
	}

	reason = strings.TrimSpace(reason)
	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		pending, err := pendingRequest(tx.View(), id)
		if err != nil {
			return err
		}
		desc := "Solicitud rechazada"
		if reason != "" {
			desc += ": " + reason
		}
		state.Patch(*tx.Requests(), id, func(r *model.PendingActionRequest) {
			r.Status = model.RequestStatusRejected
			r.ReviewedBy = actor.Label()
			r.ReviewedAt = &now
			r.RejectionReason = reason
			r.Audit = audit(r.Audit, model.AuditEntry{
				Event:       model.AuditRejected,
				Actor:       actor.Label(),
				At:          now,
				Description: desc,
			})
			req = *r
		})
		tx.AddActivity(model.Activity{
			Type:        pending.Type,
			Description: fmt.Sprintf("Solicitud #%d de %s rechazada", id, pending.RequestedBy),
			At:          now,
			Actor:       actor.Label(),
			Details:     map[string]string{"request": fmt.Sprint(id)},
		})
		return tx.Emit(state.EventRejected, state.SubjectRequest, id, actor.Email, now, map[string]string{"reason": reason})
	})
	return req, err
}
