package api

import (
	"net/http"
	"time"

	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// RecordsHandler serves assignment and loan listings.
type RecordsHandler struct {
	Service *workflow.Service
}

// Assignments handles GET /api/assignments.
func (h *RecordsHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	q := view.ParseQuery(r.URL.Query(), view.Assignments)
	jsonResponse(w, http.StatusOK, view.Apply(st.Assignments, q, view.Assignments))
}

// Loans handles GET /api/loans. Sorting by days_remaining counts from now.
func (h *RecordsHandler) Loans(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	schema := view.Loans(time.Now())
	q := view.ParseQuery(r.URL.Query(), schema)
	jsonResponse(w, http.StatusOK, view.Apply(st.Loans, q, schema))
}
