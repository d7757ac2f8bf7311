// Package models defines the database model types for the shopcn store.
// Each type corresponds to a database table. Models are pure data types —
// business logic belongs in the service layer, query logic belongs in the
// repositories layer.
package models

import "time"

// Role determines what a user account may do. Buyers purchase and install
// components; admins additionally review drafts and publish products.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role value.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleAdmin
}

// User represents a store account
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true when the user may publish products and review drafts.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
