package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// TasksHandler handles pending task endpoints.
type TasksHandler struct {
	Service *workflow.Service
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type resolvedTask struct {
	Task    model.PendingTask `json:"task"`
	Effects workflow.Effects  `json:"effects"`
}

// decodeReason reads an optional {"reason": ...} body.
func decodeReason(r *http.Request) (string, error) {
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return req.Reason, nil
}

// List handles GET /api/pending-tasks.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	q := view.ParseQuery(r.URL.Query(), view.Tasks)
	jsonResponse(w, http.StatusOK, view.Apply(st.Tasks, q, view.Tasks))
}

// Get handles GET /api/pending-tasks/{id}.
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, ok := state.Get(h.Service.Store().Snapshot().Tasks, id)
	if !ok {
		jsonError(w, http.StatusNotFound, "task not found")
		return
	}
	jsonResponse(w, http.StatusOK, task)
}

// Create handles POST /api/pending-tasks.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var a model.Action
	if err := decodeJSON(r, &a); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r.Context())
	task, err := h.Service.CreateTask(r.Context(), actor, a)
	if err != nil {
		workflowError(w, r, "create task", err)
		return
	}

	slog.Info("task created", "user", actor.Email, "task", task.ID, "type", task.Type)
	jsonResponse(w, http.StatusCreated, task)
}

// Update handles PUT /api/pending-tasks/{id}.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var d model.ActionDetails
	if err := decodeJSON(r, &d); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := h.Service.UpdateTask(r.Context(), actorFrom(r.Context()), id, d)
	if err != nil {
		workflowError(w, r, "update task", err)
		return
	}
	jsonResponse(w, http.StatusOK, task)
}

// Finalize handles POST /api/pending-tasks/{id}/approve.
func (h *TasksHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	actor := actorFrom(r.Context())
	task, eff, err := h.Service.FinalizeTask(r.Context(), actor, id)
	if err != nil {
		workflowError(w, r, "finalize task", err)
		return
	}

	slog.Info("task finalized", "user", actor.Email, "task", id, "type", task.Type)
	jsonResponse(w, http.StatusOK, resolvedTask{Task: task, Effects: eff})
}

// Cancel handles POST /api/pending-tasks/{id}/reject.
func (h *TasksHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	reason, err := decodeReason(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r.Context())
	task, err := h.Service.CancelTask(r.Context(), actor, id, reason)
	if err != nil {
		workflowError(w, r, "cancel task", err)
		return
	}

	slog.Info("task cancelled", "user", actor.Email, "task", id)
	jsonResponse(w, http.StatusOK, task)
}
