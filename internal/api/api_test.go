package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/inventario/internal/auth"
	"github.com/erazemk/inventario/internal/db"
	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/workflow"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server  *httptest.Server
	service *workflow.Service
	admin   string
	editor  string
	viewer  string
}

func setupTestServer(t *testing.T) *testEnv {
	return setupWithLimiter(t, nil)
}

func setupWithLimiter(t *testing.T, limiter *RateLimiter) *testEnv {
	t.Helper()
	ctx := context.Background()
	database := db.NewTestDB(t)

	initial, err := store.NewStateStore(database).Load(ctx)
	require.NoError(t, err)
	svc := workflow.New(state.NewStore(initial, store.NewStateStore(database)))

	admin, created, err := svc.BootstrapAdmin(ctx, model.User{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.True(t, created)
	hash, err := auth.HashPassword("password")
	require.NoError(t, err)
	require.NoError(t, store.SetPasswordHash(ctx, database, admin.ID, hash))

	adminActor := workflow.Actor{ID: admin.ID, Name: admin.Name, Email: admin.Email, Role: admin.Role}
	editor, err := svc.CreateUser(ctx, adminActor, model.User{Name: "Eva", Email: "eva@example.com", Role: model.RoleEditor})
	require.NoError(t, err)
	viewer, err := svc.CreateUser(ctx, adminActor, model.User{Name: "Vera", Email: "vera@example.com", Role: model.RoleViewer})
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(Deps{
		DB:        database,
		Service:   svc,
		JWTSecret: testJWTSecret,
		Login:     limiter,
	}))
	t.Cleanup(server.Close)

	env := &testEnv{server: server, service: svc}
	env.admin = login(t, server.URL, "ana@example.com", "password")
	env.editor = tokenFor(t, editor)
	env.viewer = tokenFor(t, viewer)
	return env
}

func tokenFor(t *testing.T, u model.User) string {
	t.Helper()
	token, err := auth.GenerateToken(testJWTSecret, auth.Subject{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}, 0)
	require.NoError(t, err)
	return token
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "login failed")

	var lr loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lr))
	require.NotEmpty(t, lr.Token)
	return lr.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func laptop() model.Item {
	return model.Item{Name: "Laptop", Brand: "Dell", Model: "XPS 13", Category: "Computadoras", SerialNumber: "SN-1", Quantity: 1}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, "GET", "/api/auth/me", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.RoleAdmin, decodeBody[model.User](t, resp).Role)
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "GET", "/api/inventory-items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, "GET", "/api/inventory-items", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/logout", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, "GET", "/api/inventory-items", env.admin, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "PUT", "/api/auth/password", env.admin, changePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, "PUT", "/api/auth/password", env.admin, changePasswordRequest{CurrentPassword: "password", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, "PUT", "/api/auth/password", env.admin, changePasswordRequest{CurrentPassword: "password", NewPassword: "new-password"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login(t, env.server.URL, "ana@example.com", "new-password")
}

func TestAdminCreatesItemDirectly(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/inventory-items", env.admin, laptop())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decodeBody[actionResponse](t, resp)
	assert.Equal(t, "executed", out.Status)
	require.Len(t, out.Items, 1)
	assert.Equal(t, model.ItemStatusAvailable, out.Items[0].Status)

	resp = env.do(t, "GET", "/api/inventory-items?search=dell", env.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeBody[struct {
		Rows  []model.Item `json:"rows"`
		Total int          `json:"total"`
	}](t, resp)
	assert.Equal(t, 1, page.Total)

	resp = env.do(t, "GET", "/api/inventory-items/999", env.viewer, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditorActionIsDeferredUntilApproved(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/inventory-items", env.editor, laptop())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	out := decodeBody[actionResponse](t, resp)
	require.NotNil(t, out.Request)
	assert.Equal(t, model.RequestStatusPending, out.Request.Status)
	assert.Empty(t, env.service.Store().Snapshot().Items)

	// Editors cannot review their own request.
	path := "/api/requests/" + itoa(out.Request.ID)
	resp = env.do(t, "POST", path+"/approve", env.editor, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, "POST", path+"/approve", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decodeBody[approvedRequest](t, resp)
	assert.Equal(t, model.RequestStatusApproved, approved.Request.Status)
	assert.Len(t, env.service.Store().Snapshot().Items, 1)

	resp = env.do(t, "POST", path+"/approve", env.admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, env.service.Store().Snapshot().Items, 1)
}

func TestRejectRequestWithReason(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/actions", env.editor, model.Action{
		Type:    model.ActionCreateProduct,
		Details: model.ActionDetails{Item: &model.Item{Name: "Proyector", Quantity: 1}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := decodeBody[actionResponse](t, resp).Request.ID

	resp = env.do(t, "POST", "/api/requests/"+itoa(id)+"/reject", env.admin, reasonRequest{Reason: "duplicado"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	req := decodeBody[model.PendingActionRequest](t, resp)
	assert.Equal(t, model.RequestStatusRejected, req.Status)
	assert.Equal(t, "duplicado", req.RejectionReason)
	assert.Empty(t, env.service.Store().Snapshot().Items)
}

func TestViewerIsDenied(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/actions", env.viewer, model.Action{
		Type:    model.ActionCreateProduct,
		Details: model.ActionDetails{Item: &model.Item{Name: "Silla", Quantity: 1}},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, "GET", "/api/users", env.viewer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, "GET", "/api/events", env.viewer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInvalidActionIsBadRequest(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/actions", env.admin, model.Action{Type: "Teletransporte"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, "POST", "/api/actions", env.admin, model.Action{
		Type:    model.ActionAssign,
		Details: model.ActionDetails{ItemIDs: []int64{42}, AssignedTo: "Luis"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPendingTaskLifecycle(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/pending-tasks", env.editor, model.Action{
		Type:    model.ActionLoad,
		Details: model.ActionDetails{Item: &model.Item{Name: "Mouse", Model: "M1"}, Quantity: 5},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decodeBody[model.PendingTask](t, resp)

	resp = env.do(t, "POST", "/api/pending-tasks/"+itoa(task.ID)+"/approve", env.editor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resolved := decodeBody[resolvedTask](t, resp)
	assert.Equal(t, model.TaskStatusFinalized, resolved.Task.Status)

	resp = env.do(t, "POST", "/api/pending-tasks/"+itoa(task.ID)+"/reject", env.editor, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, "POST", "/api/pending-tasks", env.viewer, model.Action{Type: model.ActionLoad})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAccessRequestFlow(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/access-requests", "", workflow.AccessRequestInput{
		Name:          "Luis",
		Email:         "luis@example.com",
		Justification: "Soy del área de sistemas",
		Role:          model.RoleEditor,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ar := decodeBody[model.AccessRequest](t, resp)

	resp = env.do(t, "POST", "/api/access-requests/"+itoa(ar.ID)+"/approve", env.editor, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, "POST", "/api/access-requests/"+itoa(ar.ID)+"/approve", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := decodeBody[newAccount](t, resp)
	assert.Equal(t, model.RoleEditor, account.User.Role)
	require.NotEmpty(t, account.Password)

	login(t, env.server.URL, "luis@example.com", account.Password)
}

func TestUserAdministration(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/users", env.admin, createUserRequest{
		Name: "Raúl", Email: "raul@example.com", Role: model.RoleViewer, Password: "secreto-123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	account := decodeBody[newAccount](t, resp)
	assert.Empty(t, account.Password)
	login(t, env.server.URL, "raul@example.com", "secreto-123")

	resp = env.do(t, "POST", "/api/users", env.admin, createUserRequest{Name: "Otro", Email: "raul@example.com", Role: model.RoleViewer})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, "DELETE", "/api/users/"+itoa(account.User.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "raul@example.com", "password": "secreto-123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConfigAndAttributes(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "PUT", "/api/config", env.editor, model.Catalogs{Brands: []string{"HP"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, "PUT", "/api/config", env.admin, model.Catalogs{Brands: []string{"HP", " Lenovo ", "HP"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"HP", "Lenovo"}, decodeBody[model.Catalogs](t, resp).Brands)

	resp = env.do(t, "POST", "/api/attributes", env.admin, model.CustomAttribute{Name: "Color", Kind: model.AttributeText})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", "/api/attributes", env.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]model.CustomAttribute](t, resp), 1)
}

func TestItemImage(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/inventory-items", env.admin, laptop())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody[actionResponse](t, resp).Items[0].ID

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.White)
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "foto.png")
	require.NoError(t, err)
	fw.Write(pngData.Bytes())
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("PUT", env.server.URL+"/api/inventory-items/"+itoa(id)+"/image", &body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.admin)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	up, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	up.Body.Close()
	require.Equal(t, http.StatusOK, up.StatusCode)

	resp = env.do(t, "GET", "/api/inventory-items/"+itoa(id)+"/image?size=thumb", env.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp = env.do(t, "DELETE", "/api/inventory-items/"+itoa(id), env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, "GET", "/api/inventory-items/"+itoa(id)+"/image", env.viewer, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestItemHistoryAndEvents(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/inventory-items", env.admin, laptop())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody[actionResponse](t, resp).Items[0].ID

	resp = env.do(t, "GET", "/api/inventory-items/"+itoa(id)+"/history", env.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]state.Event](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, state.EventExecuted, history[0].Kind)

	resp = env.do(t, "GET", "/api/events?subject=user", env.editor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]state.Event](t, resp), 3)
}

func TestDashboardAndActivity(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/inventory-items", env.admin, laptop())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", "/api/dashboard", env.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeBody[struct {
		TotalUnits int `json:"total_units"`
	}](t, resp).TotalUnits)

	resp = env.do(t, "GET", "/api/activity?limit=1", env.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]model.Activity](t, resp), 1)
}

func TestStateExportImport(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/inventory-items", env.admin, laptop())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", "/api/state", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc, "items")

	resp = env.do(t, "PUT", "/api/state", env.editor, doc)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	before := env.service.Store().Snapshot().Version
	resp = env.do(t, "PUT", "/api/state", env.admin, doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, before+1, env.service.Store().Snapshot().Version)
	assert.Len(t, env.service.Store().Snapshot().Items, 1)
}

func TestImportMovesPasswordsWithEmail(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "GET", "/api/state", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	users, err := json.Marshal([]model.User{
		{ID: 1, Name: "Mallory", Email: "mallory@example.com", Role: model.RoleAdmin},
		{ID: 2, Name: "Ana", Email: "ANA@example.com", Role: model.RoleAdmin},
	})
	require.NoError(t, err)
	doc["users"] = users

	resp = env.do(t, "PUT", "/api/state", env.admin, doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "mallory@example.com", "password": "password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := login(t, env.server.URL, "ana@example.com", "password")
	resp = env.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decodeBody[model.User](t, resp).ID)

	// The old token names id 1, which now belongs to someone else.
	resp = env.do(t, "GET", "/api/inventory-items", env.admin, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRateLimited(t *testing.T) {
	env := setupWithLimiter(t, NewRateLimiter(1, 2))

	bad := map[string]string{"email": "ana@example.com", "password": "wrong"}
	// setup already spent one attempt on the admin login.
	resp := env.do(t, "POST", "/api/auth/login", "", bad)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.do(t, "POST", "/api/auth/login", "", bad)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{workflow.ErrValidation, http.StatusBadRequest},
		{workflow.ErrNotFound, http.StatusNotFound},
		{workflow.ErrUnauthorized, http.StatusForbidden},
		{workflow.ErrInvalidState, http.StatusConflict},
		{workflow.ErrConflict, http.StatusConflict},
		{store.ErrConcurrencyConflict, http.StatusConflict},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
