package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/imaging"
	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// ItemsHandler handles inventory item endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Service *workflow.Service
	Photo   imaging.Options
}

type itemDetail struct {
	Item        model.Item         `json:"item"`
	Assignments []model.Assignment `json:"assignments"`
	Loans       []model.Loan       `json:"loans"`
}

// List handles GET /api/inventory-items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	q := view.ParseQuery(r.URL.Query(), view.Items)
	jsonResponse(w, http.StatusOK, view.Apply(st.Items, q, view.Items))
}

// Get handles GET /api/inventory-items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	st := h.Service.Store().Snapshot()
	item, ok := st.Item(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	// Open assignments and loans holding the item.
	d := itemDetail{Item: item, Assignments: []model.Assignment{}, Loans: []model.Loan{}}
	for _, a := range st.Assignments {
		if a.ItemID == id && a.Status == model.AssignmentStatusActive {
			d.Assignments = append(d.Assignments, a)
		}
	}
	for _, l := range st.Loans {
		if l.ItemID == id && l.Open() {
			d.Loans = append(d.Loans, l)
		}
	}
	jsonResponse(w, http.StatusOK, d)
}

// Create handles POST /api/inventory-items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	submitAction(w, r, h.Service, model.Action{
		Type:    model.ActionCreateProduct,
		Details: model.ActionDetails{Item: &item},
	}, http.StatusCreated)
}

// Update handles PUT /api/inventory-items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	submitAction(w, r, h.Service, model.Action{
		Type:    model.ActionEditProduct,
		Details: model.ActionDetails{ItemIDs: []int64{id}, Item: &item},
	}, http.StatusOK)
}

// Duplicate handles POST /api/inventory-items/{id}/duplicate.
func (h *ItemsHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	submitAction(w, r, h.Service, model.Action{
		Type:    model.ActionDuplicateProduct,
		Details: model.ActionDetails{ItemIDs: []int64{id}},
	}, http.StatusCreated)
}

// Delete handles DELETE /api/inventory-items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	actor := actorFrom(r.Context())
	if err := h.Service.DeleteItem(r.Context(), actor, id); err != nil {
		workflowError(w, r, "delete item", err)
		return
	}
	if err := store.DeleteItemImage(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to delete item photo", "item", id, "error", err)
	}

	slog.Info("item deleted", "user", actor.Email, "item", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/inventory-items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	claims := GetClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleEditor) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	if _, ok := h.Service.Store().Snapshot().Item(id); !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	maxBytes := h.Photo.MaxBytes
	if maxBytes <= 0 {
		maxBytes = imaging.DefaultMaxBytes
	}
	// Leave room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Normalize(file, h.Photo)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save item photo", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	slog.Info("item photo uploaded", "user", claims.Email, "item", id, "width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]any{"width": photo.Width, "height": photo.Height})
}

// GetImage handles GET /api/inventory-items/{id}/image. With ?size=thumb a
// thumbnail is served instead of the full photo.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	if r.URL.Query().Get("size") == "thumb" {
		thumb, err := imaging.Thumbnail(data, imaging.DefaultThumbDimension)
		if err != nil {
			slog.Error("failed to build thumbnail", "item", id, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to get image")
			return
		}
		data, mime = thumb.Data, thumb.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// History handles GET /api/inventory-items/{id}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	events, err := store.ListEvents(r.Context(), h.DB, store.EventFilter{
		Subject:   state.SubjectItem,
		SubjectID: id,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item history")
		return
	}
	if events == nil {
		events = []state.Event{}
	}
	jsonResponse(w, http.StatusOK, events)
}
