package identity

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
)

// FirebaseGateway verifies Firebase ID tokens and writes custom claims through
// the Firebase Admin SDK.
type FirebaseGateway struct {
	client *auth.Client
}

// NewFirebaseGateway initializes an Admin SDK app from a credentials file or
// from the inline service-account fields.
func NewFirebaseGateway(ctx context.Context, cfg config.IdentityConfig) (*FirebaseGateway, error) {
	var cred option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		cred = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	} else {
		raw, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   cfg.FirebaseProjectID,
			"client_email": cfg.FirebaseClientEmail,
			"private_key":  cfg.FirebasePrivateKey,
			"token_uri":    "https://oauth2.googleapis.com/token",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode service account: %w", err)
		}
		cred = option.WithCredentialsJSON(raw)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return &FirebaseGateway{client: client}, nil
}

func (g *FirebaseGateway) VerifyToken(ctx context.Context, token string) (*model.Identity, error) {
	tok, err := g.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	id := &model.Identity{
		UID:         tok.UID,
		Email:       stringClaim(tok.Claims, "email"),
		DisplayName: stringClaim(tok.Claims, "name"),
		RoleClaim:   roleFromClaims(tok.Claims),
	}
	if pic := stringClaim(tok.Claims, "picture"); pic != "" {
		id.PhotoURL = &pic
	}
	return id, nil
}

// SetRoleClaim merges role into the user's existing custom claims.
func (g *FirebaseGateway) SetRoleClaim(ctx context.Context, uid string, role model.Role) error {
	user, err := g.client.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("%w: get user %s: %v", model.ErrProvider, uid, err)
	}

	claims := make(map[string]interface{}, len(user.CustomClaims)+1)
	for k, v := range user.CustomClaims {
		claims[k] = v
	}
	claims["role"] = string(role)

	if err := g.client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return fmt.Errorf("%w: set claims for %s: %v", model.ErrProvider, uid, err)
	}
	return nil
}

func (g *FirebaseGateway) RoleClaim(ctx context.Context, uid string) (model.Role, error) {
	user, err := g.client.GetUser(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("%w: get user %s: %v", model.ErrProvider, uid, err)
	}
	return roleFromClaims(user.CustomClaims), nil
}
