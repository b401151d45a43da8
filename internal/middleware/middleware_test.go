package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/identity"
	"taskmanager/internal/metrics"
	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type resolverFunc func(ctx context.Context, id *model.Identity) (*model.User, error)

func (f resolverFunc) Reconcile(ctx context.Context, id *model.Identity) (*model.User, error) {
	return f(ctx, id)
}

func newGateway(t *testing.T) *identity.LocalGateway {
	t.Helper()
	g, err := identity.NewLocalGateway(config.IdentityConfig{LocalSecret: "mw-secret", LocalIssuer: "mw", LocalTokenTTLMin: 5})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func authRouter(g identity.Gateway, resolver ActorResolver) *gin.Engine {
	r := gin.New()
	log := zerolog.Nop()
	r.Use(RequestIDMiddleware())
	authed := r.Group("", Authenticate(g, log), ResolveActor(resolver, log))
	authed.GET("/me", func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"uid": actor.UID, "role": actor.Role})
	})
	authed.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func storedRoles(roles map[string]model.Role) ActorResolver {
	return resolverFunc(func(_ context.Context, id *model.Identity) (*model.User, error) {
		if id.Email == "" {
			return nil, model.NewValidationError("email", "email is required to create a user")
		}
		if id.UID == "broken" {
			return nil, errors.New("db down")
		}
		if id.UID == "contended" {
			return nil, fmt.Errorf("reconcile gave up after retries: %w", model.ErrConflict)
		}
		role, ok := roles[id.UID]
		if !ok {
			role = model.RoleUser
		}
		return &model.User{UID: id.UID, Email: id.Email, Role: role}, nil
	})
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	g := newGateway(t)
	r := authRouter(g, storedRoles(nil))

	good, _ := g.Issue(model.Identity{UID: "u1", Email: "u1@x.com"})
	noEmail, _ := g.Issue(model.Identity{UID: "u2"})
	broken, _ := g.Issue(model.Identity{UID: "broken", Email: "b@x.com"})
	contended, _ := g.Issue(model.Identity{UID: "contended", Email: "c@x.com"})

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not.a.jwt", http.StatusUnauthorized},
		{"valid token", good, http.StatusOK},
		{"identity without email", noEmail, http.StatusBadRequest},
		{"resolver failure", broken, http.StatusInternalServerError},
		{"conflict after retries", contended, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/me", tt.token)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAuthenticateRejectsNonBearerScheme(t *testing.T) {
	r := authRouter(newGateway(t), storedRoles(nil))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdminUsesStoredRole(t *testing.T) {
	g := newGateway(t)
	r := authRouter(g, storedRoles(map[string]model.Role{"boss": model.RoleAdmin}))

	// The claim says admin but the stored role does not.
	_ = g.SetRoleClaim(context.Background(), "u1", model.RoleAdmin)
	claimOnly, _ := g.Issue(model.Identity{UID: "u1", Email: "u1@x.com"})
	if w := do(r, http.MethodGet, "/admin", claimOnly); w.Code != http.StatusForbidden {
		t.Errorf("claim-only admin: status = %d, want 403", w.Code)
	}

	boss, _ := g.Issue(model.Identity{UID: "boss", Email: "boss@x.com"})
	if w := do(r, http.MethodGet, "/admin", boss); w.Code != http.StatusOK {
		t.Errorf("stored admin: status = %d, want 200", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := do(r, http.MethodGet, "/", "")
	if got := w.Header().Get("X-Request-ID"); got == "" || got != w.Body.String() {
		t.Errorf("generated id header %q, body %q", got, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" {
		t.Errorf("incoming id not reused: %q", w.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware(zerolog.Nop()))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/panic", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:3000/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, PerMinute: 1, Burst: 2}, zerolog.Nop())
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodGet, "/", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := do(r, http.MethodGet, "/", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}

	if rl.Len() != 1 {
		t.Errorf("Len = %d, want 1", rl.Len())
	}
	rl.cleanup(time.Now().Add(time.Hour))
	if rl.Len() != 0 {
		t.Errorf("idle bucket not cleaned up")
	}
}

func TestRateLimiterThrottlesBeforeActorResolution(t *testing.T) {
	g := newGateway(t)
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, PerMinute: 1, Burst: 1}, zerolog.Nop())
	defer rl.Stop()

	resolved := 0
	resolver := resolverFunc(func(_ context.Context, id *model.Identity) (*model.User, error) {
		resolved++
		return &model.User{UID: id.UID, Email: id.Email, Role: model.RoleUser}, nil
	})

	log := zerolog.Nop()
	r := gin.New()
	r.GET("/me", Authenticate(g, log), rl.Middleware(), ResolveActor(resolver, log), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	u1, _ := g.Issue(model.Identity{UID: "u1", Email: "u1@x.com"})
	u2, _ := g.Issue(model.Identity{UID: "u2", Email: "u2@x.com"})

	if w := do(r, http.MethodGet, "/me", u1); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/me", u1); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}
	if resolved != 1 {
		t.Errorf("resolver ran %d times, want 1", resolved)
	}
	if w := do(r, http.MethodGet, "/me", u2); w.Code != http.StatusOK {
		t.Errorf("other uid: status = %d, want 200", w.Code)
	}
}

type requestLog struct {
	metrics.NopRecorder
	routes []string
}

func (r *requestLog) RecordRequest(method, route string, status int, _ time.Duration) {
	r.routes = append(r.routes, method+" "+route)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	rec := &requestLog{}
	r := gin.New()
	r.Use(MetricsMiddleware(rec))
	r.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodGet, "/tasks/abc", "")
	do(r, http.MethodGet, "/nowhere", "")

	want := []string{"GET /tasks/:id", "GET unmatched"}
	if len(rec.routes) != len(want) {
		t.Fatalf("routes = %v", rec.routes)
	}
	for i := range want {
		if rec.routes[i] != want[i] {
			t.Errorf("routes[%d] = %q, want %q", i, rec.routes[i], want[i])
		}
	}
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(log))
	r.GET("/ok", func(c *gin.Context) {
		c.Set(KeyActor, &model.User{UID: "u1"})
		c.Status(http.StatusOK)
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	do(r, http.MethodGet, "/ok", "")
	do(r, http.MethodGet, "/fail", "")
	do(r, http.MethodGet, "/missing", "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines: %q", len(lines), buf.String())
	}
	checks := []struct {
		level string
		extra string
	}{
		{`"level":"info"`, `"uid":"u1"`},
		{`"level":"error"`, `"status":502`},
		{`"level":"warn"`, `"status":404`},
	}
	for i, c := range checks {
		if !strings.Contains(lines[i], c.level) || !strings.Contains(lines[i], c.extra) {
			t.Errorf("line %d = %s, want %s and %s", i, lines[i], c.level, c.extra)
		}
	}
}
