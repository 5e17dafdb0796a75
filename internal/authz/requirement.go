package authz

// Requirement is a set of permission keys an operation demands, with an
// ANY/ALL combinator.
type Requirement struct {
	Keys       []string
	RequireAll bool
}

// RequireAny builds a requirement satisfied by holding at least one of
// the keys.
func RequireAny(keys ...string) Requirement {
	return Requirement{Keys: NormalizeKeys(keys)}
}

// RequireAll builds a requirement satisfied only by holding every key.
func RequireAll(keys ...string) Requirement {
	return Requirement{Keys: NormalizeKeys(keys), RequireAll: true}
}

// Decision reasons.
const (
	ReasonSuperuserBypass    = "superuser bypass"
	ReasonNoRequirement      = "no permissions required"
	ReasonGranted            = "granted"
	ReasonMissingPermissions = "missing permissions"
)

// Decision is the outcome of evaluating a requirement against a claim
// set. On denial, Required and RequireAll describe the unmet
// requirement so callers can render a useful forbidden response.
type Decision struct {
	Allowed    bool
	Reason     string
	Required   []string
	RequireAll bool
}

// Evaluate decides whether the claim set satisfies the requirement.
// Superuser claim sets admit everything. An empty requirement admits
// any authenticated principal; the unauthenticated case is gated
// before this function is reached.
func Evaluate(cs ClaimSet, req Requirement) Decision {
	if cs.IsSuperAdmin {
		return Decision{Allowed: true, Reason: ReasonSuperuserBypass}
	}
	if len(req.Keys) == 0 {
		return Decision{Allowed: true, Reason: ReasonNoRequirement}
	}
	if req.RequireAll {
		for _, key := range req.Keys {
			if !cs.Has(key) {
				return deny(req)
			}
		}
		return Decision{Allowed: true, Reason: ReasonGranted}
	}
	for _, key := range req.Keys {
		if cs.Has(key) {
			return Decision{Allowed: true, Reason: ReasonGranted}
		}
	}
	return deny(req)
}

func deny(req Requirement) Decision {
	return Decision{
		Reason:     ReasonMissingPermissions,
		Required:   append([]string(nil), req.Keys...),
		RequireAll: req.RequireAll,
	}
}
