package model

import "time"

// Assignment records an item handed over to a person for ongoing use.
type Assignment struct {
	ID           int64      `json:"id"`
	ItemID       int64      `json:"item_id"`
	ItemName     string     `json:"item_name"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Quantity     int        `json:"quantity"`
	AssignedTo   string     `json:"assigned_to"`
	AssignedAt   time.Time  `json:"assigned_at"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	RecordedBy   string     `json:"recorded_by"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
}

// Assignment statuses.
const (
	AssignmentStatusActive   = "Activo"
	AssignmentStatusReturned = "Devuelto"
)

// Loan records an item lent out until a due date.
type Loan struct {
	ID           int64      `json:"id"`
	ItemID       int64      `json:"item_id"`
	ItemName     string     `json:"item_name"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Quantity     int        `json:"quantity"`
	Borrower     string     `json:"borrower"`
	LentAt       time.Time  `json:"lent_at"`
	DueDate      time.Time  `json:"due_date"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	RecordedBy   string     `json:"recorded_by"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
}

// Loan statuses.
const (
	LoanStatusActive   = "Activo"
	LoanStatusReturned = "Devuelto"
	LoanStatusOverdue  = "Vencido"
)

// DaysRemaining returns the whole days left until the due date, counted in
// calendar days. It is negative once the loan is overdue.
func (l Loan) DaysRemaining(now time.Time) int {
	due := truncateDay(l.DueDate)
	today := truncateDay(now.In(l.DueDate.Location()))
	return int(due.Sub(today).Hours() / 24)
}

// Open reports whether the loan still holds the item.
func (l Loan) Open() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusOverdue
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
