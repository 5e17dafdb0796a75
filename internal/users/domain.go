// Package users exposes the read side of user administration: listing
// and searching accounts together with their assigned roles. Role
// mutations live in the rbac package.
package users

import (
	"time"

	"github.com/scholaris-sis/scholaris-sis/internal/rbac"
)

// User represents a user account for management.
type User struct {
	ID           int64
	Email        string
	Name         string
	SchoolID     *int64
	IsSuperAdmin bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRoles pairs an account with its current role assignments.
type UserWithRoles struct {
	User
	Roles []rbac.Role
}
