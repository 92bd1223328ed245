package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/inventario/internal/imaging"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/workflow"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	DB        *sql.DB
	Service   *workflow.Service
	JWTSecret string
	TokenTTL  time.Duration
	// Login limits login and access request attempts per client. Nil
	// disables rate limiting.
	Login   *RateLimiter
	Photo   imaging.Options
	Metrics http.Handler
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, Service: d.Service, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL}
	itemsHandler := &ItemsHandler{DB: d.DB, Service: d.Service, Photo: d.Photo}
	actionsHandler := &ActionsHandler{Service: d.Service}
	tasksHandler := &TasksHandler{Service: d.Service}
	requestsHandler := &RequestsHandler{Service: d.Service}
	recordsHandler := &RecordsHandler{Service: d.Service}
	accessHandler := &AccessHandler{DB: d.DB, Service: d.Service}
	usersHandler := &UsersHandler{DB: d.DB, Service: d.Service}
	configHandler := &ConfigHandler{Service: d.Service}
	overviewHandler := &OverviewHandler{DB: d.DB, Service: d.Service}

	authMW := AuthMiddleware(d.JWTSecret, d.DB, d.Service)
	limit := func(h http.Handler) http.Handler { return h }
	if d.Login != nil {
		limit = d.Login.Middleware
	}
	protect := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	require := func(p policy.Permission, h http.HandlerFunc) http.Handler {
		return authMW(RequirePermission(p)(h))
	}

	// Public.
	mux.Handle("POST /api/auth/login", limit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/access-requests", limit(http.HandlerFunc(accessHandler.Submit)))

	// Session.
	mux.Handle("GET /api/auth/me", protect(authHandler.Me))
	mux.Handle("PUT /api/auth/password", protect(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", protect(authHandler.Logout))

	// Items: read (all roles); writes go through the role gate.
	mux.Handle("GET /api/inventory-items", protect(itemsHandler.List))
	mux.Handle("POST /api/inventory-items", protect(itemsHandler.Create))
	mux.Handle("GET /api/inventory-items/{id}", protect(itemsHandler.Get))
	mux.Handle("PUT /api/inventory-items/{id}", protect(itemsHandler.Update))
	mux.Handle("DELETE /api/inventory-items/{id}", require(policy.DeleteItems, itemsHandler.Delete))
	mux.Handle("POST /api/inventory-items/{id}/duplicate", protect(itemsHandler.Duplicate))
	mux.Handle("PUT /api/inventory-items/{id}/image", protect(itemsHandler.UploadImage))
	mux.Handle("GET /api/inventory-items/{id}/image", protect(itemsHandler.GetImage))
	mux.Handle("GET /api/inventory-items/{id}/history", protect(itemsHandler.History))

	// Actions: executed, deferred or denied by role.
	mux.Handle("POST /api/actions", protect(actionsHandler.Submit))

	// Pending tasks.
	mux.Handle("GET /api/pending-tasks", protect(tasksHandler.List))
	mux.Handle("POST /api/pending-tasks", require(policy.ManageTasks, tasksHandler.Create))
	mux.Handle("GET /api/pending-tasks/{id}", protect(tasksHandler.Get))
	mux.Handle("PUT /api/pending-tasks/{id}", require(policy.ManageTasks, tasksHandler.Update))
	mux.Handle("POST /api/pending-tasks/{id}/approve", require(policy.ManageTasks, tasksHandler.Finalize))
	mux.Handle("POST /api/pending-tasks/{id}/reject", require(policy.ManageTasks, tasksHandler.Cancel))

	// Pending action requests.
	mux.Handle("GET /api/requests", protect(requestsHandler.List))
	mux.Handle("GET /api/requests/{id}", protect(requestsHandler.Get))
	mux.Handle("POST /api/requests/{id}/approve", require(policy.ReviewRequests, requestsHandler.Approve))
	mux.Handle("POST /api/requests/{id}/reject", require(policy.ReviewRequests, requestsHandler.Reject))

	// Assignments and loans.
	mux.Handle("GET /api/assignments", protect(recordsHandler.Assignments))
	mux.Handle("GET /api/loans", protect(recordsHandler.Loans))

	// Access requests (admin review).
	mux.Handle("GET /api/access-requests", require(policy.ReviewAccess, accessHandler.List))
	mux.Handle("POST /api/access-requests/{id}/approve", require(policy.ReviewAccess, accessHandler.Approve))
	mux.Handle("POST /api/access-requests/{id}/reject", require(policy.ReviewAccess, accessHandler.Reject))

	// Users (admin only).
	mux.Handle("GET /api/users", require(policy.ManageUsers, usersHandler.List))
	mux.Handle("POST /api/users", require(policy.ManageUsers, usersHandler.Create))
	mux.Handle("GET /api/users/{id}", require(policy.ManageUsers, usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", require(policy.ManageUsers, usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", require(policy.ManageUsers, usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", require(policy.ManageUsers, usersHandler.Delete))

	// Configuration: read (all roles), write (admin).
	mux.Handle("GET /api/config", protect(configHandler.Get))
	mux.Handle("PUT /api/config", require(policy.ManageConfig, configHandler.Put))
	mux.Handle("GET /api/attributes", protect(configHandler.ListAttributes))
	mux.Handle("POST /api/attributes", require(policy.ManageConfig, configHandler.CreateAttribute))
	mux.Handle("PUT /api/attributes/{id}", require(policy.ManageConfig, configHandler.UpdateAttribute))
	mux.Handle("DELETE /api/attributes/{id}", require(policy.ManageConfig, configHandler.DeleteAttribute))

	// Overview.
	mux.Handle("GET /api/activity", protect(overviewHandler.Activity))
	mux.Handle("GET /api/dashboard", protect(overviewHandler.Dashboard))
	mux.Handle("GET /api/events", require(policy.ViewAudit, overviewHandler.Events))
	mux.Handle("GET /api/state", require(policy.ManageState, overviewHandler.ExportState))
	mux.Handle("PUT /api/state", require(policy.ManageState, overviewHandler.ImportState))

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	return mux
}
