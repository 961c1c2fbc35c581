package model

import "time"

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// User represents an account in the system
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose password hash in JSON responses
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidRole reports whether role is one of the two supported roles
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEditor
}
