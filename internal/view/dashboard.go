package view

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

// DueSoonDays is how close a due date must be for a loan to be flagged.
const DueSoonDays = 7

// Dashboard aggregates the state for the overview page.
type Dashboard struct {
	UnitsByStatus         map[string]int   `json:"units_by_status"`
	TotalUnits            int              `json:"total_units"`
	SerializedItems       int              `json:"serialized_items"`
	ActiveAssignments     int              `json:"active_assignments"`
	ActiveLoans           int              `json:"active_loans"`
	OverdueLoans          int              `json:"overdue_loans"`
	DueSoon               []model.Loan     `json:"due_soon"`
	PendingTasks          int              `json:"pending_tasks"`
	PendingRequests       int              `json:"pending_requests"`
	PendingAccessRequests int              `json:"pending_access_requests"`
	InventoryValue        decimal.Decimal  `json:"inventory_value"`
	RecentActivity        []model.Activity `json:"recent_activity"`
}

// BuildDashboard computes the dashboard at time now. Retired units count
// toward totals per status but not toward the inventory value.
func BuildDashboard(st *state.State, now time.Time, recent int) Dashboard {
	d := Dashboard{
		UnitsByStatus:  make(map[string]int, len(model.ItemStatuses)),
		DueSoon:        []model.Loan{},
		InventoryValue: decimal.Zero,
	}
	for _, s := range model.ItemStatuses {
		d.UnitsByStatus[s] = 0
	}

	for _, it := range st.Items {
		d.UnitsByStatus[it.Status] += it.Quantity
		d.TotalUnits += it.Quantity
		if it.Serialized() {
			d.SerializedItems++
		}
		if it.Status != model.ItemStatusRetired {
			d.InventoryValue = d.InventoryValue.Add(it.Cost.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	for _, a := range st.Assignments {
		if a.Status == model.AssignmentStatusActive {
			d.ActiveAssignments++
		}
	}
	for _, l := range st.Loans {
		if !l.Open() {
			continue
		}
		d.ActiveLoans++
		days := l.DaysRemaining(now)
		switch {
		case days < 0:
			d.OverdueLoans++
		case days <= DueSoonDays:
			d.DueSoon = append(d.DueSoon, l)
		}
	}
	slices.SortStableFunc(d.DueSoon, func(a, b model.Loan) int { return a.DueDate.Compare(b.DueDate) })

	for _, t := range st.Tasks {
		if t.Pending() {
			d.PendingTasks++
		}
	}
	for _, r := range st.Requests {
		if r.Pending() {
			d.PendingRequests++
		}
	}
	for _, r := range st.AccessRequests {
		if r.Status == model.RequestStatusPending {
			d.PendingAccessRequests++
		}
	}

	d.RecentActivity = st.Activity[:max(0, min(recent, len(st.Activity)))]
	return d
}
