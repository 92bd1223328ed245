package api

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// maxStateBytes bounds an imported state document.
const maxStateBytes = 64 << 20

// OverviewHandler serves the dashboard, activity and audit feeds and the
// whole-state export and import.
type OverviewHandler struct {
	DB      *sql.DB
	Service *workflow.Service
}

// queryInt reads a non-negative integer query parameter, or def.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Activity handles GET /api/activity.
func (h *OverviewHandler) Activity(w http.ResponseWriter, r *http.Request) {
	activity := h.Service.Store().Snapshot().Activity
	if n := queryInt(r, "limit", model.MaxActivity); n < len(activity) {
		activity = activity[:n]
	}
	jsonResponse(w, http.StatusOK, activity)
}

// Dashboard handles GET /api/dashboard.
func (h *OverviewHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	jsonResponse(w, http.StatusOK, view.BuildDashboard(st, time.Now(), queryInt(r, "recent", 10)))
}

// Events handles GET /api/events.
func (h *OverviewHandler) Events(w http.ResponseWriter, r *http.Request) {
	f := store.EventFilter{
		Subject: r.URL.Query().Get("subject"),
		Limit:   queryInt(r, "limit", 100),
	}
	if v := r.URL.Query().Get("subject_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid subject_id")
			return
		}
		f.SubjectID = id
	}

	events, err := store.ListEvents(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []state.Event{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// ExportState handles GET /api/state.
func (h *OverviewHandler) ExportState(w http.ResponseWriter, r *http.Request) {
	data, err := state.Encode(h.Service.Store().Snapshot())
	if err != nil {
		slog.Error("failed to encode state", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export state")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="inventario.json"`)
	w.Write(data)
}

// ImportState handles PUT /api/state. The document replaces every
// collection.
func (h *OverviewHandler) ImportState(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStateBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "state document too large")
		return
	}

	st, err := state.Decode(data)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := actorFrom(r.Context())
	before := h.Service.Store().Snapshot().Users
	out, err := h.Service.ImportState(r.Context(), actor, st)
	if err != nil {
		workflowError(w, r, "import state", err)
		return
	}
	// Passwords follow their owner's email, not the numeric id.
	if err := store.RekeyCredentials(r.Context(), h.DB, before, out.Users); err != nil {
		slog.Error("failed to rekey credentials", "error", err)
		jsonError(w, http.StatusInternalServerError, "state imported but credentials could not be updated")
		return
	}

	slog.Info("state imported", "user", actor.Email, "version", out.Version, "items", len(out.Items))
	jsonResponse(w, http.StatusOK, map[string]int64{"version": out.Version})
}
