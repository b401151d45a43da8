package handler

import (
	"context"
	"net/http"
	"time"

	"taskmanager/internal/model"
	"taskmanager/internal/version"

	"github.com/gin-gonic/gin"
)

// Pinger checks the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

const healthTimeout = 2 * time.Second

// HealthHandler serves the unauthenticated probes.
type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, model.NewErrorResponse("Database unavailable", ""))
			return
		}
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("ok", nil))
}

// Version handles GET /api/version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse("", version.Get()))
}
