// Package auth issues and validates the signed credentials carried by
// every request. The permission set inside a credential is computed
// once at issuance; later role changes surface only after the token is
// reissued.
package auth

import (
	"errors"
	"time"
)

// User represents an authenticated user account. SchoolID is nil only
// for the superuser principal type.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	SchoolID     *int64
	IsSuperAdmin bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sentinel errors.
var (
	// ErrInvalidCredentials indicates login or token validation failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNotFound indicates a missing user record.
	ErrNotFound = errors.New("auth: not found")
)
