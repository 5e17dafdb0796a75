// Package rbac manages roles, their permission sets and user-role
// assignments. Roles are scoped to one school; a role with no school
// is a system role available to every school. All mutations validate
// the school boundary before touching storage.
package rbac

import (
	"errors"
	"time"
)

// Role is a named bundle of permission keys scoped to one school.
// A nil SchoolID denotes a system role.
type Role struct {
	ID          int64
	Name        string
	Description string
	SchoolID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSystem reports whether the role is available to every school.
func (r Role) IsSystem() bool {
	return r.SchoolID == nil
}

// TargetUser is the assignment-relevant slice of a user record: the
// school it belongs to and whether it is the superuser principal type.
type TargetUser struct {
	ID           int64
	SchoolID     *int64
	IsSuperAdmin bool
}

// Sentinel errors.
var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrTenantMismatch indicates an assignment that crosses school
	// boundaries without superuser privilege.
	ErrTenantMismatch = errors.New("rbac: school mismatch")
	// ErrUnknownPermission indicates a permission key outside the catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission key")
)
