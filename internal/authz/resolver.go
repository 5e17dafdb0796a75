package authz

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DescriptorPrefix marks a requirement descriptor handled by this
// resolver. Descriptors without the prefix belong to other policy
// mechanisms and are rejected here.
const DescriptorPrefix = "Permission:"

// descriptorSeparator joins permission keys inside a descriptor.
const descriptorSeparator = "|"

// ErrUnknownDescriptor indicates a descriptor that does not parse. It
// is a deployment defect, not a runtime user error.
var ErrUnknownDescriptor = errors.New("authz: unknown requirement descriptor")

// Resolver translates requirement descriptor strings such as
// "Permission:Fee.Read|Payment.Read" into Requirements. Results are
// cached by the raw descriptor string for the process lifetime: the
// descriptor set is fixed at build time, so the cache cannot grow
// unboundedly, and entries are write-once (recomputing concurrently is
// idempotent).
type Resolver struct {
	cache sync.Map // descriptor string -> Requirement
}

// NewResolver constructs an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve parses the descriptor into a Requirement. Descriptor keys
// use ANY semantics; call-sites needing ALL use RequireAll directly.
func (r *Resolver) Resolve(descriptor string) (Requirement, error) {
	if cached, ok := r.cache.Load(descriptor); ok {
		return cached.(Requirement), nil
	}
	req, err := parseDescriptor(descriptor)
	if err != nil {
		return Requirement{}, err
	}
	actual, _ := r.cache.LoadOrStore(descriptor, req)
	return actual.(Requirement), nil
}

// MustResolve is Resolve for route-registration time, where a bad
// descriptor means the deployment is broken and startup should fail
// loudly.
func (r *Resolver) MustResolve(descriptor string) Requirement {
	req, err := r.Resolve(descriptor)
	if err != nil {
		panic(err)
	}
	return req
}

func parseDescriptor(descriptor string) (Requirement, error) {
	rest, ok := strings.CutPrefix(descriptor, DescriptorPrefix)
	if !ok {
		return Requirement{}, fmt.Errorf("%w: %q", ErrUnknownDescriptor, descriptor)
	}
	keys := NormalizeKeys(strings.Split(rest, descriptorSeparator))
	if len(keys) == 0 {
		return Requirement{}, fmt.Errorf("%w: %q carries no permission keys", ErrUnknownDescriptor, descriptor)
	}
	return Requirement{Keys: keys}, nil
}

// Descriptor renders the canonical descriptor string for a set of
// keys, the inverse of Resolve for ANY requirements.
func Descriptor(keys ...string) string {
	return DescriptorPrefix + strings.Join(NormalizeKeys(keys), descriptorSeparator)
}
