package domain

import "time"

// UserRole enumerates the roles an account may hold.
type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleAdmin   UserRole = "admin"
	RoleFaculty UserRole = "faculty"
)

// ValidRole reports whether the given role is one of the known values.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleFaculty:
		return true
	}
	return false
}

// User is the domain model for registered accounts.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Verified     bool
	Role         UserRole
	RegNo        *string
	CreatedAt    time.Time
}
