package model

import (
	"time"
)

// Action types. The same labels name pending tasks, pending action requests
// and recent activity entries.
const (
	ActionLoad             = "Carga"
	ActionRetire           = "Retiro"
	ActionAssign           = "Asignación"
	ActionLend             = "Préstamo"
	ActionReactivate       = "Reactivación"
	ActionCreateProduct    = "Creación de Producto"
	ActionEditProduct      = "Edición de Producto"
	ActionDuplicateProduct = "Duplicación de Producto"
	ActionReturn           = "Devolución"
	ActionBulkRetire       = "Retiro Masivo"
	ActionBulkReactivate   = "Reactivación Masiva"
)

// TaskTypes are the action types a pending task may carry.
var TaskTypes = []string{
	ActionLoad,
	ActionRetire,
	ActionAssign,
	ActionLend,
	ActionReactivate,
	ActionCreateProduct,
	ActionEditProduct,
	ActionDuplicateProduct,
}

// ActionTypes are all action types, including returns and bulk variants.
var ActionTypes = append(append([]string{}, TaskTypes...),
	ActionReturn,
	ActionBulkRetire,
	ActionBulkReactivate,
)

// ValidTaskType reports whether t may be used for a pending task.
func ValidTaskType(t string) bool {
	return contains(TaskTypes, t)
}

// ValidActionType reports whether t is a known action type.
func ValidActionType(t string) bool {
	return contains(ActionTypes, t)
}

// Action is a domain mutation requested by a user. It is either applied
// directly or parked in a pending task or request until it is approved.
type Action struct {
	Type    string        `json:"type"`
	Details ActionDetails `json:"details"`
}

// ActionDetails is the type-specific payload of an action. Only the fields
// relevant to the action type are set.
type ActionDetails struct {
	// ItemIDs are the existing items the action operates on.
	ItemIDs []int64 `json:"item_ids,omitempty"`
	// Item is the product draft for loads, creations and edits.
	Item *Item `json:"item,omitempty"`
	// Serials lists one serial number per unit for serialized loads.
	Serials []string `json:"serials,omitempty"`

	Quantity     int        `json:"quantity,omitempty"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	AssignmentID int64      `json:"assignment_id,omitempty"`
	LoanID       int64      `json:"loan_id,omitempty"`

	// Snapshots are filled in when the task or request is created.
	Snapshots []ItemSnapshot `json:"snapshots,omitempty"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
