package middleware

import (
	"net/http"
	"runtime/debug"

	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RecoveryMiddleware turns a panic into a 500 and logs the stack.
func RecoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("request_id", RequestID(c)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.NewErrorResponse("Internal server error", ""))
			}
		}()
		c.Next()
	}
}
