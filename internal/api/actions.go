package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/workflow"
)

// ActionsHandler handles the generic action endpoint.
type ActionsHandler struct {
	Service *workflow.Service
}

type actionResponse struct {
	Status  string                      `json:"status"`
	Request *model.PendingActionRequest `json:"request,omitempty"`
	Effects *workflow.Effects           `json:"effects,omitempty"`
	Items   []model.Item                `json:"items,omitempty"`
}

// submitAction runs a through the role gate and writes the outcome: 202
// with the pending request when it was deferred, otherwise executed with the
// touched items.
func submitAction(w http.ResponseWriter, r *http.Request, svc *workflow.Service, a model.Action, executed int) {
	actor := actorFrom(r.Context())
	out, err := svc.Submit(r.Context(), actor, a)
	if err != nil {
		workflowError(w, r, "action", err)
		return
	}

	if out.Deferred() {
		slog.Info("action deferred", "user", actor.Email, "type", a.Type, "request", out.Request.ID)
		jsonResponse(w, http.StatusAccepted, actionResponse{Status: "deferred", Request: out.Request})
		return
	}

	resp := actionResponse{Status: "executed", Effects: out.Effects, Items: []model.Item{}}
	st := svc.Store().Snapshot()
	for _, id := range out.Effects.Items {
		if it, ok := state.Get(st.Items, id); ok {
			resp.Items = append(resp.Items, it)
		}
	}
	slog.Info("action executed", "user", actor.Email, "type", a.Type, "items", out.Effects.Items)
	jsonResponse(w, executed, resp)
}

// Submit handles POST /api/actions.
func (h *ActionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var a model.Action
	if err := decodeJSON(r, &a); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if a.Type == "" {
		jsonError(w, http.StatusBadRequest, "action type required")
		return
	}
	submitAction(w, r, h.Service, a, http.StatusOK)
}
