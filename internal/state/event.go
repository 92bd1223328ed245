package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one entry of the append-only domain event log written alongside
// each committed snapshot.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Subject   string          `json:"subject"`
	SubjectID int64           `json:"subject_id"`
	Actor     string          `json:"actor"`
	At        time.Time       `json:"at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event kinds.
const (
	EventCreated   = "created"
	EventEdited    = "edited"
	EventDeferred  = "deferred"
	EventExecuted  = "executed"
	EventApproved  = "approved"
	EventRejected  = "rejected"
	EventFinalized = "finalized"
	EventCancelled = "cancelled"
	EventDeleted   = "deleted"
	EventImported  = "imported"
)

// Event subjects.
const (
	SubjectItem          = "item"
	SubjectTask          = "task"
	SubjectRequest       = "request"
	SubjectAccessRequest = "access_request"
	SubjectUser          = "user"
	SubjectConfig        = "config"
	SubjectLoan          = "loan"
	SubjectState         = "state"
)

// NewEvent builds an event with a fresh id, encoding data as JSON.
func NewEvent(kind, subject string, subjectID int64, actor string, at time.Time, data any) (Event, error) {
	e := Event{
		ID:        uuid.New(),
		Kind:      kind,
		Subject:   subject,
		SubjectID: subjectID,
		Actor:     actor,
		At:        at,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("encoding %s event data: %w", kind, err)
		}
		e.Data = raw
	}
	return e, nil
}
