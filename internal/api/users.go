package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/auth"
	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB      *sql.DB
	Service *workflow.Service
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	// Password is optional; one is generated when empty.
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	q := view.ParseQuery(r.URL.Query(), view.Users)
	jsonResponse(w, http.StatusOK, view.Apply(st.Users, q, view.Users))
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var hash string
	if req.Password != "" {
		var err error
		if hash, err = auth.HashPassword(req.Password); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	actor := actorFrom(r.Context())
	user, err := h.Service.CreateUser(r.Context(), actor, model.User{
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		workflowError(w, r, "create user", err)
		return
	}

	resp := newAccount{User: user}
	if hash != "" {
		err = store.SetPasswordHash(r.Context(), h.DB, user.ID, hash)
	} else {
		resp.Password, err = issuePassword(r, h.DB, user.ID)
	}
	if err != nil {
		slog.Error("account created without password", "user", user.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "account created but setting its password failed")
		return
	}

	slog.Info("user created", "user", actor.Email, "new_user", user.Email, "role", user.Role)
	jsonResponse(w, http.StatusCreated, resp)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, ok := state.Get(h.Service.Store().Snapshot().Users, id)
	if !ok {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var in model.User
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r.Context())
	user, err := h.Service.UpdateUser(r.Context(), actor, id, in)
	if err != nil {
		workflowError(w, r, "update user", err)
		return
	}

	slog.Info("user updated", "user", actor.Email, "target_user", user.Email, "role", user.Role)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}

	user, ok := state.Get(h.Service.Store().Snapshot().Users, id)
	if !ok {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetPasswordHash(r.Context(), h.DB, id, hash); err != nil {
		slog.Error("failed to reset password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	slog.Info("password reset", "user", actorFrom(r.Context()).Email, "target_user", user.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	actor := actorFrom(r.Context())
	if err := h.Service.DeleteUser(r.Context(), actor, id); err != nil {
		workflowError(w, r, "delete user", err)
		return
	}
	if err := store.DeleteCredentials(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete credentials", "user_id", id, "error", err)
	}

	slog.Info("user deleted", "user", actor.Email, "target_user_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
