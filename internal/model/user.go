package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the application role stored on a user record.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", NewValidationError("role", "Invalid role specified")
	}
	return r, nil
}

// User is the persisted application user, keyed by provider uid and by lowercase email.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	UID         string             `bson:"uid" json:"uid"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	Role        Role               `bson:"role" json:"role"`
	PhotoURL    *string            `bson:"photoURL" json:"photoURL"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   Role
	Search string
	SortBy string
	Desc   bool
}

// ProfileUpdateRequest is the body of PUT /api/users/profile.
type ProfileUpdateRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=100"`
}

// SyncRequest is the body of POST /api/users/sync. Identity keys (uid, email)
// are taken from the verified token, never from the body.
type SyncRequest struct {
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

// RoleUpdateRequest is the body of PUT /api/admin/users/:uid/role.
type RoleUpdateRequest struct {
	Role string `json:"role" binding:"required"`
}

// RoleStatus compares the stored role with the provider's claim for one uid.
type RoleStatus struct {
	UID        string `json:"uid"`
	StoredRole Role   `json:"storedRole"`
	ClaimRole  Role   `json:"claimRole"`
	Diverged   bool   `json:"diverged"`
}

// UserPatch lists the fields to overwrite on a user record. Nil fields are left unchanged.
type UserPatch struct {
	UID         *string
	Email       *string
	DisplayName *string
	PhotoURL    *string
	Role        *Role
}

// Empty reports whether the patch would change nothing.
func (p UserPatch) Empty() bool {
	return p.UID == nil && p.Email == nil && p.DisplayName == nil && p.PhotoURL == nil && p.Role == nil
}

// Apply copies the set fields onto u.
func (p UserPatch) Apply(u *User) {
	if p.UID != nil {
		u.UID = *p.UID
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.PhotoURL != nil {
		photo := *p.PhotoURL
		u.PhotoURL = &photo
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
}
