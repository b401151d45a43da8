package model

// Identity is the verified caller as reported by the identity provider.
// It lives for a single request.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    *string
	// RoleClaim is advisory only; authorization always uses the stored role.
	RoleClaim Role
}
