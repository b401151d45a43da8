package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskmanager/internal/config"
	"taskmanager/internal/identity"
	"taskmanager/internal/metrics"
	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	gateway  *identity.LocalGateway
	services *Services
	repos    *Repositories
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.Identity.Provider = config.ProviderLocal
	cfg.Identity.LocalSecret = "router-secret"
	cfg.Mongo.URI = config.MemoryStoreURI
	cfg.SeedAdmin.Email = "root@example.com"

	gateway, err := identity.NewLocalGateway(cfg.Identity)
	if err != nil {
		t.Fatal(err)
	}
	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)
	repos := InitMemoryRepositories()
	services := InitServices(cfg, repos, gateway, recorder, zerolog.Nop())
	if err := PopulateInitialData(context.Background(), cfg, services); err != nil {
		t.Fatal(err)
	}

	router := setupRouter(RouterDeps{
		Config:   cfg,
		Log:      zerolog.Nop(),
		Gateway:  gateway,
		Users:    services.User,
		Handlers: InitHandlers(services, nil),
		Recorder: recorder,
		Gatherer: registry,
	})
	return &testEnv{t: t, router: router, gateway: gateway, services: services, repos: repos}
}

func (e *testEnv) token(uid, email string) string {
	e.t.Helper()
	tok, err := e.gateway.Issue(model.Identity{UID: uid, Email: email})
	if err != nil {
		e.t.Fatal(err)
	}
	return tok
}

// login reconciles uid through the API and returns its token.
func (e *testEnv) login(uid, email string) string {
	e.t.Helper()
	tok := e.token(uid, email)
	if w := e.do(http.MethodPost, "/api/users/sync", tok, ""); w.Code != http.StatusOK {
		e.t.Fatalf("sync %s: %d %s", uid, w.Code, w.Body.String())
	}
	return tok
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Count   *int   `json:"count"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateTaskDefaultsToActor(t *testing.T) {
	e := newTestEnv(t)
	tok := e.login("u1", "u1@example.com")

	w := e.do(http.MethodPost, "/api/tasks", tok, `{"title":"Write tests","description":"all of them"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	task := decode[model.Task](t, w).Data
	if task.AssignedTo != "u1" || task.AssignedBy != "u1" {
		t.Errorf("assignedTo=%q assignedBy=%q", task.AssignedTo, task.AssignedBy)
	}
	if task.Status != model.StatusPending || task.Priority != model.PriorityMedium {
		t.Errorf("defaults not applied: %+v", task)
	}
}

func TestTaskRoutesAuthorization(t *testing.T) {
	e := newTestEnv(t)
	u1 := e.login("u1", "u1@example.com")
	u2 := e.login("u2", "u2@example.com")

	w := e.do(http.MethodPost, "/api/tasks", u1, `{"title":"t","description":"d","assignedTo":"u1"}`)
	id := decode[model.Task](t, w).Data.ID.Hex()

	if w := e.do(http.MethodGet, "/api/tasks/"+id, u2, ""); w.Code != http.StatusForbidden {
		t.Errorf("outsider get: %d, want 403", w.Code)
	}
	if w := e.do(http.MethodDelete, "/api/tasks/"+id, u2, ""); w.Code != http.StatusForbidden {
		t.Errorf("outsider delete: %d, want 403", w.Code)
	}
	if w := e.do(http.MethodGet, "/api/tasks/000000000000000000000000", u2, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing task: %d, want 404", w.Code)
	}
	if w := e.do(http.MethodGet, "/api/tasks/nope", u2, ""); w.Code != http.StatusBadRequest {
		t.Errorf("malformed id: %d, want 400", w.Code)
	}
	if w := e.do(http.MethodGet, "/api/tasks", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d, want 401", w.Code)
	}

	list := decode[[]model.Task](t, e.do(http.MethodGet, "/api/tasks?assignedTo=u1", u2, ""))
	if len(list.Data) != 0 || list.Count == nil || *list.Count != 0 {
		t.Errorf("u2 listing leaked tasks: %+v", list)
	}

	if w := e.do(http.MethodPut, "/api/tasks/"+id, u1, `{"status":"completed"}`); w.Code != http.StatusOK {
		t.Errorf("assignee update: %d %s", w.Code, w.Body.String())
	}
}

func TestAdminRoutesUseStoredRole(t *testing.T) {
	e := newTestEnv(t)
	u1 := e.login("u1", "u1@example.com")

	if w := e.do(http.MethodGet, "/api/admin/stats", u1, ""); w.Code != http.StatusForbidden {
		t.Errorf("user stats: %d, want 403", w.Code)
	}

	// A provider claim alone does not make an admin.
	_ = e.gateway.SetRoleClaim(context.Background(), "u1", model.RoleAdmin)
	claimed := e.token("u1", "u1@example.com")
	if w := e.do(http.MethodGet, "/api/admin/users", claimed, ""); w.Code != http.StatusForbidden {
		t.Errorf("claim-only admin: %d, want 403", w.Code)
	}
}

func TestSeededAdminLifecycle(t *testing.T) {
	e := newTestEnv(t)
	// The first login with the seeded email inherits the seeded admin record.
	root := e.login("firebase-root", "root@example.com")
	u2 := e.login("u2", "u2@example.com")

	w := e.do(http.MethodGet, "/api/users/role/firebase-root", "", "")
	if got := decode[map[string]string](t, w).Data["role"]; got != "admin" {
		t.Fatalf("role of relinked admin = %q", got)
	}

	w = e.do(http.MethodPut, "/api/admin/users/u2/role", root, `{"role":"admin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set role: %d %s", w.Code, w.Body.String())
	}
	status := decode[model.RoleStatus](t, e.do(http.MethodGet, "/api/admin/users/u2/role-status", root, "")).Data
	if status.Diverged || status.StoredRole != model.RoleAdmin {
		t.Errorf("role status = %+v", status)
	}
	if w := e.do(http.MethodPut, "/api/admin/users/u2/role", root, `{"role":"owner"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid role: %d, want 400", w.Code)
	}
	if w := e.do(http.MethodPut, "/api/admin/users/ghost/role", root, `{"role":"user"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown user: %d, want 404", w.Code)
	}

	if w := e.do(http.MethodDelete, "/api/admin/users/firebase-root", root, ""); w.Code != http.StatusForbidden {
		t.Errorf("self delete: %d, want 403", w.Code)
	}

	// u2 holds one task it created and two assigned to it.
	e.do(http.MethodPost, "/api/tasks", u2, `{"title":"mine","description":"d","assignedTo":"u3"}`)
	e.do(http.MethodPost, "/api/tasks", root, `{"title":"for u2 a","description":"d","assignedTo":"u2"}`)
	e.do(http.MethodPost, "/api/tasks", root, `{"title":"for u2 b","description":"d","assignedTo":"u2"}`)

	if w := e.do(http.MethodDelete, "/api/admin/users/u2", root, ""); w.Code != http.StatusOK {
		t.Fatalf("delete user: %d %s", w.Code, w.Body.String())
	}

	tasks := decode[[]model.Task](t, e.do(http.MethodGet, "/api/admin/tasks", root, "")).Data
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks after cascade, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.AssignedTo != "firebase-root" || task.AssignedBy == "u2" {
			t.Errorf("task %q not cascaded: %+v", task.Title, task)
		}
	}

	stats := decode[model.DashboardStats](t, e.do(http.MethodGet, "/api/admin/stats", root, "")).Data
	if stats.TotalUsers != 1 || stats.TotalTasks != 2 || stats.PendingTasks != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSyncUsesTokenIdentityAndBodyOverrides(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token("u1", "u1@example.com")

	w := e.do(http.MethodPost, "/api/users/sync", tok, `{"displayName":"Ada","photoURL":"https://img/a.png","uid":"evil","email":"evil@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("sync: %d %s", w.Code, w.Body.String())
	}
	user := decode[model.User](t, w).Data
	if user.UID != "u1" || user.Email != "u1@example.com" || user.DisplayName != "Ada" {
		t.Errorf("synced user = %+v", user)
	}

	w = e.do(http.MethodPut, "/api/users/profile", tok, `{"displayName":"Ada L."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("profile update: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodPut, "/api/users/profile", tok, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty profile update: %d, want 400", w.Code)
	}

	profile := decode[model.User](t, e.do(http.MethodGet, "/api/users/profile", tok, "")).Data
	if profile.DisplayName != "Ada L." {
		t.Errorf("profile = %+v", profile)
	}
}

func TestPublicRoleLookups(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/users/role/unknown", "", "")
	if w.Code != http.StatusOK || decode[map[string]string](t, w).Data["role"] != "user" {
		t.Errorf("unknown uid: %d %s", w.Code, w.Body.String())
	}

	w = e.do(http.MethodGet, "/api/users/check-admin/ROOT@example.com", "", "")
	if !decode[map[string]any](t, w).Data["isAdmin"].(bool) {
		t.Errorf("seeded admin not reported: %s", w.Body.String())
	}

	w = e.do(http.MethodGet, "/api/users/role-by-email/root@example.com", "", "")
	if got := decode[map[string]string](t, w).Data["uid"]; got != config.DefaultSeedAdminUID {
		t.Errorf("uid = %q", got)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	if w := e.do(http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Errorf("healthz: %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/api/version", "", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "goVersion") {
		t.Errorf("version: %d %s", w.Code, w.Body.String())
	}

	e.login("u1", "u1@example.com")
	w := e.do(http.MethodGet, "/metrics", "", "")
	body := w.Body.String()
	for _, want := range []string{
		`taskmanager_http_requests_total{method="POST",route="/api/users/sync",status="200"} 1`,
		`taskmanager_reconcile_total{outcome="created"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
