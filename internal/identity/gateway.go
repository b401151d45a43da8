// Package identity adapts identity providers to the Gateway contract the
// services depend on. Gateways are constructed explicitly and injected; there
// is no package-level client.
package identity

import (
	"context"
	"fmt"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
)

// Gateway verifies bearer tokens and manages the role claim kept by the provider.
type Gateway interface {
	// VerifyToken returns an error wrapping model.ErrInvalidToken for any bad token.
	VerifyToken(ctx context.Context, token string) (*model.Identity, error)
	// SetRoleClaim returns an error wrapping model.ErrProvider on failure.
	SetRoleClaim(ctx context.Context, uid string, role model.Role) error
	// RoleClaim reads the provider-side role; an absent claim reads as model.RoleUser.
	RoleClaim(ctx context.Context, uid string) (model.Role, error)
}

// New builds the gateway selected by cfg.Provider.
func New(ctx context.Context, cfg config.IdentityConfig) (Gateway, error) {
	switch cfg.Provider {
	case config.ProviderFirebase:
		return NewFirebaseGateway(ctx, cfg)
	case config.ProviderLocal:
		return NewLocalGateway(cfg)
	}
	return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
}

// roleFromClaims reads the "role" custom claim. Unknown values read as user.
func roleFromClaims(claims map[string]interface{}) model.Role {
	if claims == nil {
		return model.RoleUser
	}
	s, _ := claims["role"].(string)
	if r := model.Role(s); r.Valid() {
		return r
	}
	return model.RoleUser
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}
