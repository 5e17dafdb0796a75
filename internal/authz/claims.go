// Package authz implements the request-side access decisions: the
// claim set carried by a credential, permission requirements with
// ANY/ALL semantics, the descriptor resolver and the school isolation
// guard. All state here is request-scoped except the resolver cache,
// which is write-once per descriptor.
package authz

import (
	"sort"
	"strings"
)

// ClaimSet is the decoded authorization facts of one credential. It is
// built once when the credential is parsed and passed by value; it is
// never shared mutable state between requests.
type ClaimSet struct {
	UserID       int64
	SchoolID     *int64
	IsSuperAdmin bool

	permissions []string
	index       map[string]struct{}
}

// NewClaimSet constructs a ClaimSet. The permission keys are
// deduplicated and stored in sorted order; blank keys are dropped.
func NewClaimSet(userID int64, schoolID *int64, superAdmin bool, permissions []string) ClaimSet {
	keys := NormalizeKeys(permissions)
	index := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		index[key] = struct{}{}
	}
	return ClaimSet{
		UserID:       userID,
		SchoolID:     schoolID,
		IsSuperAdmin: superAdmin,
		permissions:  keys,
		index:        index,
	}
}

// Permissions returns the granted permission keys in sorted order.
func (cs ClaimSet) Permissions() []string {
	return append([]string(nil), cs.permissions...)
}

// Has reports whether the claim set carries the permission key.
// Superuser claim sets do not enumerate permissions; decisions for
// them short-circuit in Evaluate instead.
func (cs ClaimSet) Has(key string) bool {
	_, ok := cs.index[key]
	return ok
}

// CanAccessSchool decides whether the principal may act on the given
// school's data: always for the superuser, otherwise only on its own
// school.
func (cs ClaimSet) CanAccessSchool(schoolID int64) bool {
	if cs.IsSuperAdmin {
		return true
	}
	return cs.SchoolID != nil && *cs.SchoolID == schoolID
}

// NormalizeKeys trims, deduplicates and sorts permission keys. Keys are
// compared case-sensitively; the catalog is the single source of
// spelling.
func NormalizeKeys(keys []string) []string {
	unique := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		unique[key] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for key := range unique {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
