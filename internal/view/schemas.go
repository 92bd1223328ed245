package view

import (
	"strconv"
	"time"

	"github.com/erazemk/inventario/internal/model"
)

func unix(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix())
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Items is the schema of inventory rows.
var Items = Schema[model.Item]{Columns: []Column[model.Item]{
	{ID: "id", Text: func(i model.Item) string { return id(i.ID) }, Number: func(i model.Item) float64 { return float64(i.ID) }},
	{ID: "name", Text: func(i model.Item) string { return i.Name }, Searchable: true},
	{ID: "brand", Text: func(i model.Item) string { return i.Brand }, Searchable: true},
	{ID: "model", Text: func(i model.Item) string { return i.Model }, Searchable: true},
	{ID: "category", Text: func(i model.Item) string { return i.Category }, Searchable: true},
	{ID: "serial_number", Text: func(i model.Item) string { return i.SerialNumber }, Searchable: true},
	{ID: "status", Text: func(i model.Item) string { return i.Status }},
	{ID: "supplier", Text: func(i model.Item) string { return i.Supplier }, Searchable: true},
	{ID: "quantity", Text: func(i model.Item) string { return strconv.Itoa(i.Quantity) }, Number: func(i model.Item) float64 { return float64(i.Quantity) }},
	{ID: "cost", Text: func(i model.Item) string { return i.Cost.String() }, Number: func(i model.Item) float64 { return i.Cost.InexactFloat64() }},
	{ID: "intake_date", Text: func(i model.Item) string { return date(i.IntakeDate) }, Number: func(i model.Item) float64 { return unix(i.IntakeDate) }},
}}

// Assignments is the schema of assignment records.
var Assignments = Schema[model.Assignment]{Columns: []Column[model.Assignment]{
	{ID: "id", Text: func(a model.Assignment) string { return id(a.ID) }, Number: func(a model.Assignment) float64 { return float64(a.ID) }},
	{ID: "item_name", Text: func(a model.Assignment) string { return a.ItemName }, Searchable: true},
	{ID: "serial_number", Text: func(a model.Assignment) string { return a.SerialNumber }, Searchable: true},
	{ID: "assigned_to", Text: func(a model.Assignment) string { return a.AssignedTo }, Searchable: true},
	{ID: "status", Text: func(a model.Assignment) string { return a.Status }},
	{ID: "assigned_at", Text: func(a model.Assignment) string { return date(a.AssignedAt) }, Number: func(a model.Assignment) float64 { return unix(a.AssignedAt) }},
}}

// Loans returns the schema of loan records; days_remaining is counted from
// now.
func Loans(now time.Time) Schema[model.Loan] {
	return Schema[model.Loan]{Columns: []Column[model.Loan]{
		{ID: "id", Text: func(l model.Loan) string { return id(l.ID) }, Number: func(l model.Loan) float64 { return float64(l.ID) }},
		{ID: "item_name", Text: func(l model.Loan) string { return l.ItemName }, Searchable: true},
		{ID: "serial_number", Text: func(l model.Loan) string { return l.SerialNumber }, Searchable: true},
		{ID: "borrower", Text: func(l model.Loan) string { return l.Borrower }, Searchable: true},
		{ID: "status", Text: func(l model.Loan) string { return l.Status }},
		{ID: "due_date", Text: func(l model.Loan) string { return date(l.DueDate) }, Number: func(l model.Loan) float64 { return unix(l.DueDate) }},
		{ID: "days_remaining",
			Text:   func(l model.Loan) string { return strconv.Itoa(l.DaysRemaining(now)) },
			Number: func(l model.Loan) float64 { return float64(l.DaysRemaining(now)) }},
	}}
}

// Tasks is the schema of pending tasks.
var Tasks = Schema[model.PendingTask]{Columns: []Column[model.PendingTask]{
	{ID: "id", Text: func(t model.PendingTask) string { return id(t.ID) }, Number: func(t model.PendingTask) float64 { return float64(t.ID) }},
	{ID: "type", Text: func(t model.PendingTask) string { return t.Type }, Searchable: true},
	{ID: "created_by", Text: func(t model.PendingTask) string { return t.CreatedBy }, Searchable: true},
	{ID: "status", Text: func(t model.PendingTask) string { return t.Status }},
	{ID: "created_at", Text: func(t model.PendingTask) string { return date(t.CreatedAt) }, Number: func(t model.PendingTask) float64 { return unix(t.CreatedAt) }},
}}

// Requests is the schema of pending action requests.
var Requests = Schema[model.PendingActionRequest]{Columns: []Column[model.PendingActionRequest]{
	{ID: "id", Text: func(r model.PendingActionRequest) string { return id(r.ID) }, Number: func(r model.PendingActionRequest) float64 { return float64(r.ID) }},
	{ID: "type", Text: func(r model.PendingActionRequest) string { return r.Type }, Searchable: true},
	{ID: "requested_by", Text: func(r model.PendingActionRequest) string { return r.RequestedBy }, Searchable: true},
	{ID: "status", Text: func(r model.PendingActionRequest) string { return r.Status }},
	{ID: "requested_at", Text: func(r model.PendingActionRequest) string { return date(r.RequestedAt) }, Number: func(r model.PendingActionRequest) float64 { return unix(r.RequestedAt) }},
}}

// AccessRequests is the schema of access requests.
var AccessRequests = Schema[model.AccessRequest]{Columns: []Column[model.AccessRequest]{
	{ID: "id", Text: func(r model.AccessRequest) string { return id(r.ID) }, Number: func(r model.AccessRequest) float64 { return float64(r.ID) }},
	{ID: "name", Text: func(r model.AccessRequest) string { return r.Name }, Searchable: true},
	{ID: "email", Text: func(r model.AccessRequest) string { return r.Email }, Searchable: true},
	{ID: "status", Text: func(r model.AccessRequest) string { return r.Status }},
	{ID: "requested_at", Text: func(r model.AccessRequest) string { return date(r.RequestedAt) }, Number: func(r model.AccessRequest) float64 { return unix(r.RequestedAt) }},
}}

// Users is the schema of user accounts.
var Users = Schema[model.User]{Columns: []Column[model.User]{
	{ID: "id", Text: func(u model.User) string { return id(u.ID) }, Number: func(u model.User) float64 { return float64(u.ID) }},
	{ID: "name", Text: func(u model.User) string { return u.Name }, Searchable: true},
	{ID: "email", Text: func(u model.User) string { return u.Email }, Searchable: true},
	{ID: "role", Text: func(u model.User) string { return u.Role }},
	{ID: "department", Text: func(u model.User) string { return u.Department }, Searchable: true},
}}
