package model

import "time"

// AuditEntry is one immutable line of a task or request history.
type AuditEntry struct {
	Event       string    `json:"event"`
	Actor       string    `json:"actor"`
	At          time.Time `json:"at"`
	Description string    `json:"description"`
}

// Audit event tags.
const (
	AuditCreated   = "CREACIÓN"
	AuditEdited    = "EDICIÓN"
	AuditApproved  = "APROBACIÓN"
	AuditRejected  = "RECHAZO"
	AuditCancelled = "CANCELACIÓN"
)

// PendingTask is a deferred action created from a quick-action form.
type PendingTask struct {
	ID        int64         `json:"id"`
	Type      string        `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
	CreatedBy string        `json:"created_by"`
	Status    string        `json:"status"`
	Details   ActionDetails `json:"details"`
	Audit     []AuditEntry  `json:"audit"`
}

// Pending task statuses.
const (
	TaskStatusPending   = "Pendiente"
	TaskStatusFinalized = "Finalizada"
	TaskStatusCancelled = "Cancelada"
)

// Pending reports whether the task can still transition.
func (t PendingTask) Pending() bool {
	return t.Status == TaskStatusPending
}

// PendingActionRequest is an action an Editor asked an Administrator to apply.
type PendingActionRequest struct {
	ID              int64         `json:"id"`
	Type            string        `json:"type"`
	RequestedBy     string        `json:"requested_by"`
	RequestedByID   int64         `json:"requested_by_id"`
	RequestedAt     time.Time     `json:"requested_at"`
	Status          string        `json:"status"`
	Details         ActionDetails `json:"details"`
	Audit           []AuditEntry  `json:"audit"`
	ReviewedBy      string        `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

// Request statuses, shared by action requests and access requests.
const (
	RequestStatusPending  = "Pendiente"
	RequestStatusApproved = "Aprobada"
	RequestStatusRejected = "Rechazada"
)

// Pending reports whether the request can still be reviewed.
func (r PendingActionRequest) Pending() bool {
	return r.Status == RequestStatusPending
}

// AccessRequest is a request from someone outside the system for an account.
type AccessRequest struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Justification string     `json:"justification"`
	Department    string     `json:"department,omitempty"`
	// Role is the role asked for; approval falls back to Visualizador.
	Role          string     `json:"role,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	Status        string     `json:"status"`
	ReviewedBy    string     `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
}
