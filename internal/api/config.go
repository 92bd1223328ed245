package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/workflow"
)

// ConfigHandler handles catalogs and custom attributes.
type ConfigHandler struct {
	Service *workflow.Service
}

// Get handles GET /api/config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Service.Store().Snapshot().Catalogs)
}

// Put handles PUT /api/config. Lists missing from the body keep their
// current values.
func (h *ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	var in model.Catalogs
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r.Context())
	c, err := h.Service.SetCatalogs(r.Context(), actor, in)
	if err != nil {
		workflowError(w, r, "update config", err)
		return
	}

	slog.Info("catalogs updated", "user", actor.Email)
	jsonResponse(w, http.StatusOK, c)
}

// ListAttributes handles GET /api/attributes.
func (h *ConfigHandler) ListAttributes(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Service.Store().Snapshot().Attributes)
}

// CreateAttribute handles POST /api/attributes.
func (h *ConfigHandler) CreateAttribute(w http.ResponseWriter, r *http.Request) {
	var in model.CustomAttribute
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.CreateAttribute(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		workflowError(w, r, "create attribute", err)
		return
	}
	jsonResponse(w, http.StatusCreated, a)
}

// UpdateAttribute handles PUT /api/attributes/{id}.
func (h *ConfigHandler) UpdateAttribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid attribute id")
		return
	}

	var in model.CustomAttribute
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.UpdateAttribute(r.Context(), actorFrom(r.Context()), id, in)
	if err != nil {
		workflowError(w, r, "update attribute", err)
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// DeleteAttribute handles DELETE /api/attributes/{id}.
func (h *ConfigHandler) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid attribute id")
		return
	}

	if err := h.Service.DeleteAttribute(r.Context(), actorFrom(r.Context()), id); err != nil {
		workflowError(w, r, "delete attribute", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "attribute deleted"})
}
