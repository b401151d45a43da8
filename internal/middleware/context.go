package middleware

import (
	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by this package.
const (
	KeyRequestID = "requestID"
	KeyIdentity  = "identity"
	KeyActor     = "actor"
)

// IdentityFrom returns the verified token identity, if Authenticate ran.
func IdentityFrom(c *gin.Context) (*model.Identity, bool) {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*model.Identity)
	return id, ok && id != nil
}

// ActorFrom returns the reconciled user record, if ResolveActor ran.
func ActorFrom(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(KeyActor)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok && u != nil
}

// RequestID returns the id assigned by the RequestID middleware.
func RequestID(c *gin.Context) string {
	return c.GetString(KeyRequestID)
}
