package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// RequestsHandler handles pending action request endpoints.
type RequestsHandler struct {
	Service *workflow.Service
}

type approvedRequest struct {
	Request model.PendingActionRequest `json:"request"`
	Effects workflow.Effects           `json:"effects"`
}

// List handles GET /api/requests. Editors only see their own requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	rows := st.Requests
	if actor := actorFrom(r.Context()); actor.Role != model.RoleAdmin {
		rows = make([]model.PendingActionRequest, 0, len(st.Requests))
		for _, req := range st.Requests {
			if req.RequestedByID == actor.ID {
				rows = append(rows, req)
			}
		}
	}
	q := view.ParseQuery(r.URL.Query(), view.Requests)
	jsonResponse(w, http.StatusOK, view.Apply(rows, q, view.Requests))
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, ok := state.Get(h.Service.Store().Snapshot().Requests, id)
	actor := actorFrom(r.Context())
	if !ok || (actor.Role != model.RoleAdmin && req.RequestedByID != actor.ID) {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

// Approve handles POST /api/requests/{id}/approve.
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	actor := actorFrom(r.Context())
	req, eff, err := h.Service.ApproveRequest(r.Context(), actor, id)
	if err != nil {
		workflowError(w, r, "approve request", err)
		return
	}

	slog.Info("request approved", "user", actor.Email, "request", id, "type", req.Type, "requested_by", req.RequestedBy)
	jsonResponse(w, http.StatusOK, approvedRequest{Request: req, Effects: eff})
}

// Reject handles POST /api/requests/{id}/reject.
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	reason, err := decodeReason(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r.Context())
	req, err := h.Service.RejectRequest(r.Context(), actor, id, reason)
	if err != nil {
		workflowError(w, r, "reject request", err)
		return
	}

	slog.Info("request rejected", "user", actor.Email, "request", id, "type", req.Type)
	jsonResponse(w, http.StatusOK, req)
}
