package authz

import "context"

type claimsContextKey struct{}

// ContextWithClaims stores the claim set in context.
func ContextWithClaims(ctx context.Context, cs ClaimSet) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, cs)
}

// ClaimsFromContext extracts the claim set from context. The second
// return is false when the request carried no valid credential.
func ClaimsFromContext(ctx context.Context) (ClaimSet, bool) {
	cs, ok := ctx.Value(claimsContextKey{}).(ClaimSet)
	return cs, ok
}
