package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/inventario/internal/auth"
	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/view"
	"github.com/erazemk/inventario/internal/workflow"
)

// generatedPasswordLength is the length of passwords handed out on account
// creation.
const generatedPasswordLength = 12

// AccessHandler handles access request endpoints.
type AccessHandler struct {
	DB      *sql.DB
	Service *workflow.Service
}

// newAccount is returned once, when an account is created with a generated
// password.
type newAccount struct {
	User     model.User `json:"user"`
	Password string     `json:"password,omitempty"`
}

// issuePassword generates and stores a password for a freshly created user.
func issuePassword(r *http.Request, db *sql.DB, userID int64) (string, error) {
	password, err := auth.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := store.SetPasswordHash(r.Context(), db, userID, hash); err != nil {
		return "", err
	}
	return password, nil
}

// Submit handles POST /api/access-requests. It needs no authentication.
func (h *AccessHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in workflow.AccessRequestInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ar, err := h.Service.SubmitAccessRequest(r.Context(), in)
	if err != nil {
		workflowError(w, r, "submit access request", err)
		return
	}

	slog.Info("access requested", "email", ar.Email, "request", ar.ID)
	jsonResponse(w, http.StatusCreated, ar)
}

// List handles GET /api/access-requests.
func (h *AccessHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Store().Snapshot()
	q := view.ParseQuery(r.URL.Query(), view.AccessRequests)
	jsonResponse(w, http.StatusOK, view.Apply(st.AccessRequests, q, view.AccessRequests))
}

// Approve handles POST /api/access-requests/{id}/approve. The response
// carries the generated password of the new account.
func (h *AccessHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid access request id")
		return
	}

	actor := actorFrom(r.Context())
	user, err := h.Service.ApproveAccessRequest(r.Context(), actor, id)
	if err != nil {
		workflowError(w, r, "approve access request", err)
		return
	}

	password, err := issuePassword(r, h.DB, user.ID)
	if err != nil {
		slog.Error("account created without password", "user", user.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "account created but setting its password failed")
		return
	}

	slog.Info("access request approved", "user", actor.Email, "new_user", user.Email, "role", user.Role)
	jsonResponse(w, http.StatusOK, newAccount{User: user, Password: password})
}

// Reject handles POST /api/access-requests/{id}/reject.
func (h *AccessHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid access request id")
		return
	}

	actor := actorFrom(r.Context())
	ar, err := h.Service.RejectAccessRequest(r.Context(), actor, id)
	if err != nil {
		workflowError(w, r, "reject access request", err)
		return
	}

	slog.Info("access request rejected", "user", actor.Email, "email", ar.Email)
	jsonResponse(w, http.StatusOK, ar)
}
