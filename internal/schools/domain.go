// Package schools manages the tenant registry. Every non-superuser
// account and every non-system role belongs to exactly one school.
package schools

import (
	"errors"
	"time"
)

// School is a single tenant.
type School struct {
	ID        int64
	Name      string
	Code      string
	Timezone  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound indicates the school does not exist.
var ErrNotFound = errors.New("schools: not found")
