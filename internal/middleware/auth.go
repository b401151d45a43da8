package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"taskmanager/internal/identity"
	"taskmanager/internal/model"
	"taskmanager/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const bearerPrefix = "Bearer "

// ActorResolver maps a verified identity to the stored user record.
type ActorResolver interface {
	Reconcile(ctx context.Context, id *model.Identity) (*model.User, error)
}

// Authenticate verifies the bearer token and stores the identity in the
// context. Every failure is a 401; the cause is only logged.
func Authenticate(gateway identity.Gateway, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.NewErrorResponse("No token provided", ""))
			return
		}

		id, err := gateway.VerifyToken(c.Request.Context(), strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			log.Debug().Err(err).Str("request_id", RequestID(c)).Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.NewErrorResponse("Invalid token", ""))
			return
		}

		c.Set(KeyIdentity, id)
		c.Next()
	}
}

// ResolveActor reconciles the verified identity into a user record so
// handlers authorize against the stored role, never the token claim.
func ResolveActor(resolver ActorResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.NewErrorResponse("No token provided", ""))
			return
		}

		user, err := resolver.Reconcile(c.Request.Context(), id)
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				c.AbortWithStatusJSON(http.StatusBadRequest, model.NewErrorResponse(verr.Message, ""))
				return
			}
			if errors.Is(err, model.ErrConflict) {
				log.Warn().Err(err).Str("uid", id.UID).Str("request_id", RequestID(c)).Msg("actor reconcile kept conflicting")
				c.AbortWithStatusJSON(http.StatusConflict, model.NewErrorResponse("User already exists", ""))
				return
			}
			log.Error().Err(err).Str("uid", id.UID).Str("request_id", RequestID(c)).Msg("failed to resolve actor")
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.NewErrorResponse("Failed to resolve user", ""))
			return
		}

		c.Set(KeyActor, user)
		c.Next()
	}
}

// RequireAdmin rejects actors whose stored role is not admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.NewErrorResponse("Authentication required", ""))
			return
		}
		if !policy.CanManageAll(actor) {
			c.AbortWithStatusJSON(http.StatusForbidden, model.NewErrorResponse("Access denied. Admin role required.", ""))
			return
		}
		c.Next()
	}
}
