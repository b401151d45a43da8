package server

import (
	"taskmanager/internal/config"
	"taskmanager/internal/identity"
	"taskmanager/internal/metrics"
	"taskmanager/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// RouterDeps is everything the router wires together.
type RouterDeps struct {
	Config   *config.Config
	Log      zerolog.Logger
	Gateway  identity.Gateway
	Users    middleware.ActorResolver
	Handlers *Handlers
	Recorder metrics.Recorder
	Gatherer prometheus.Gatherer
	Limiter  *middleware.RateLimiter // nil disables rate limiting
}

func setupRouter(d RouterDeps) *gin.Engine {
	gin.SetMode(d.Config.Server.Mode)

	r := gin.New()
	_ = r.SetTrustedProxies(nil)

	r.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(d.Log),
		middleware.LoggingMiddleware(d.Log),
		middleware.CORSMiddleware(d.Config.CORSOrigins),
	)
	if d.Recorder != nil {
		r.Use(middleware.MetricsMiddleware(d.Recorder))
	}

	h := d.Handlers
	r.GET("/healthz", h.Health.Healthz)
	if d.Config.Metrics.Enabled && d.Gatherer != nil {
		r.GET(d.Config.Metrics.Path, gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	api := r.Group("/api")
	api.GET("/version", h.Health.Version)

	authn := middleware.Authenticate(d.Gateway, d.Log)
	actor := middleware.ResolveActor(d.Users, d.Log)
	chain := []gin.HandlerFunc{authn}
	if d.Limiter != nil {
		chain = append(chain, d.Limiter.Middleware())
	}
	chain = append(chain, actor)

	users := api.Group("/users")
	{
		// Public lookups used by the frontend before sign-in completes.
		users.GET("/role/:uid", h.User.GetRole)
		users.GET("/role-by-email/:email", h.User.GetRoleByEmail)
		users.GET("/check-admin/:email", h.User.CheckAdmin)

		// Sync reconciles with body overrides, so it skips ResolveActor.
		users.POST("/sync", authn, h.User.Sync)

		profile := users.Group("/profile", chain...)
		profile.GET("", h.User.GetProfile)
		profile.PUT("", h.User.UpdateProfile)
	}

	tasks := api.Group("/tasks", chain...)
	{
		tasks.GET("", h.Task.List)
		tasks.GET("/my", h.Task.My)
		tasks.GET("/:id", h.Task.Get)
		tasks.POST("", h.Task.Create)
		tasks.PUT("/:id", h.Task.Update)
		tasks.DELETE("/:id", h.Task.Delete)
	}

	admin := api.Group("/admin", append(chain, middleware.RequireAdmin())...)
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:uid/role", h.Admin.UpdateUserRole)
		admin.GET("/users/:uid/role-status", h.Admin.RoleStatus)
		admin.DELETE("/users/:uid", h.Admin.DeleteUser)
		admin.GET("/stats", h.Admin.Stats)
		admin.GET("/tasks", h.Admin.ListTasks)
	}

	return r
}
