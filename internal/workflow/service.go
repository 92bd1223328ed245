// Package workflow applies inventory actions and runs the approval life cycle
// of pending tasks, pending action requests and access requests.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

// Errors returned by workflow operations. Callers match them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID    int64
	Name  string
	Email string
	Role  string
}

// Label is how the actor appears in audit entries and records.
func (a Actor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// System is the actor used for background maintenance.
var System = Actor{Name: "sistema", Role: model.RoleAdmin}

// Recorder receives workflow transition outcomes, e.g. for metrics.
type Recorder interface {
	Transition(kind, actionType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string, string) {}

// Service runs workflow operations against a state store.
type Service struct {
	store  *state.Store
	now    func() time.Time
	tracer trace.Tracer
	rec    Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder reports transitions to rec.
func WithRecorder(rec Recorder) Option {
	return func(s *Service) { s.rec = rec }
}

// New returns a workflow service over store.
func New(store *state.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		tracer: otel.Tracer("inventario/workflow"),
		rec:    nopRecorder{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store returns the underlying state store.
func (s *Service) Store() *state.Store {
	return s.store
}

// Outcome describes what Submit did with an action.
type Outcome struct {
	Decision policy.Decision             `json:"-"`
	Request  *model.PendingActionRequest `json:"request,omitempty"`
	Effects  *Effects                    `json:"effects,omitempty"`
}

// Deferred reports whether the action was parked for approval.
func (o Outcome) Deferred() bool {
	return o.Decision == policy.Defer
}

// start opens a span for a transition and returns a finish function that
// records the outcome on the span and the recorder.
func (s *Service) start(ctx context.Context, kind, actionType string, actor Actor, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs,
		attribute.String("workflow.kind", kind),
		attribute.String("workflow.action", actionType),
		attribute.String("actor.role", actor.Role),
	)
	ctx, span := s.tracer.Start(ctx, "workflow."+kind, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("workflow.outcome", outcome))
		span.End()
		s.rec.Transition(kind, actionType, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (s *Service) require(actor Actor, p policy.Permission) error {
	if !policy.Allowed(actor.Role, p) {
		return fmt.Errorf("%w: role %q lacks %s", ErrUnauthorized, actor.Role, p)
	}
	return nil
}

// Submit is the role gate for domain actions. Depending on the actor's role
// the action is applied at once, parked in a pending action request, or
// refused.
func (s *Service) Submit(ctx context.Context, actor Actor, a model.Action) (out Outcome, err error) {
	ctx, finish := s.start(ctx, "submit", a.Type, actor)
	defer func() { finish(err) }()

	if !model.ValidActionType(a.Type) {
		return Outcome{}, validationf("unknown action type %q", a.Type)
	}

	decision := policy.Decide(actor.Role, a.Type)
	out.Decision = decision
	switch decision {
	case policy.Execute:
		var eff Effects
		_, err = s.store.Update(ctx, func(tx *state.Tx) error {
			now := s.now()
			var err error
			eff, err = applyAction(tx, actor, a, now)
			if err != nil {
				return err
			}
			return tx.Emit(state.EventExecuted, state.SubjectItem, firstID(eff.Items), actor.Email, now, a)
		})
		if err != nil {
			return Outcome{}, err
		}
		out.Effects = &eff
		return out, nil

	case policy.Defer:
		var req model.PendingActionRequest
		_, err = s.store.Update(ctx, func(tx *state.Tx) error {
			now := s.now()
			details, err := prepare(tx.View(), a)
			if err != nil {
				return err
			}
			req = model.PendingActionRequest{
				ID:            tx.NextID(state.BucketRequests),
				Type:          a.Type,
				RequestedBy:   actor.Label(),
				RequestedByID: actor.ID,
				RequestedAt:   now,
				Status:        model.RequestStatusPending,
				Details:       details,
				Audit: []model.AuditEntry{{
					Event:       model.AuditCreated,
					Actor:       actor.Label(),
					At:          now,
					Description: "Solicitud de " + a.Type + " enviada para aprobación",
				}},
			}
			reqs := tx.Requests()
			*reqs = append(*reqs, req)
			return tx.Emit(state.EventDeferred, state.SubjectRequest, req.ID, actor.Email, now, req)
		})
		if err != nil {
			return Outcome{}, err
		}
		out.Request = &req
		return out, nil
	}

	return Outcome{}, fmt.Errorf("%w: role %q may not perform %s", ErrUnauthorized, actor.Role, a.Type)
}

func firstID(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}
