package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
)

// LocalClaims is the payload of a locally issued identity token. Field names
// follow the Firebase ID token so clients can switch providers unchanged.
type LocalClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// LocalGateway issues and verifies HS256 identity tokens for development and
// tests. Role claims are kept in memory and stamped onto newly issued tokens.
type LocalGateway struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	claims map[string]model.Role
}

// NewLocalGateway returns a gateway signing with cfg.LocalSecret.
func NewLocalGateway(cfg config.IdentityConfig) (*LocalGateway, error) {
	if cfg.LocalSecret == "" {
		return nil, errors.New("local identity secret is empty")
	}
	ttl := time.Duration(cfg.LocalTokenTTLMin) * time.Minute
	if ttl <= 0 {
		ttl = time.Duration(config.DefaultLocalTokenTTLMin) * time.Minute
	}
	issuer := cfg.LocalIssuer
	if issuer == "" {
		issuer = config.DefaultLocalIssuer
	}
	return &LocalGateway{
		secret: []byte(cfg.LocalSecret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
		claims: make(map[string]model.Role),
	}, nil
}

// Issue signs a token for id. A role set through SetRoleClaim wins over id.RoleClaim.
func (g *LocalGateway) Issue(id model.Identity) (string, error) {
	if id.UID == "" {
		return "", errors.New("uid is required")
	}

	role := id.RoleClaim
	g.mu.RLock()
	if r, ok := g.claims[id.UID]; ok {
		role = r
	}
	g.mu.RUnlock()

	now := g.now()
	claims := LocalClaims{
		Email: id.Email,
		Name:  id.DisplayName,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	if id.PhotoURL != nil {
		claims.Picture = *id.PhotoURL
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

func (g *LocalGateway) VerifyToken(_ context.Context, token string) (*model.Identity, error) {
	claims := &LocalClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", model.ErrInvalidToken)
	}

	id := &model.Identity{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		RoleClaim:   roleFromClaims(map[string]interface{}{"role": claims.Role}),
	}
	if claims.Picture != "" {
		pic := claims.Picture
		id.PhotoURL = &pic
	}
	return id, nil
}

func (g *LocalGateway) SetRoleClaim(_ context.Context, uid string, role model.Role) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", model.ErrProvider)
	}
	g.mu.Lock()
	g.claims[uid] = role
	g.mu.Unlock()
	return nil
}

func (g *LocalGateway) RoleClaim(_ context.Context, uid string) (model.Role, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if r, ok := g.claims[uid]; ok {
		return r, nil
	}
	return model.RoleUser, nil
}
