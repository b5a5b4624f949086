package auth

import (
	"context"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-teamauth/claims"
)

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal in the context. Without one the
// result is the anonymous principal and false.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Anonymous(), false
	}
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok {
		return Anonymous(), false
	}
	return raw, true
}

// WithClaimSet sets the claim set in the given context
func WithClaimSet(ctx context.Context, set claims.Set) context.Context {
	return context.WithValue(ctx, claimsCtxKey, set)
}

// ClaimSetFromContext extracts the claim set from the standard context
func ClaimSetFromContext(ctx context.Context) (claims.Set, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(claimsCtxKey).(claims.Set)
	return raw, ok
}

// GetRouterClaims extracts the claim set from the router context
func GetRouterClaims(ctx router.Context, key string) (claims.Set, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	set, ok := raw.(claims.Set)
	return set, ok
}

// ClaimsFromContext is the default claims source of a Pipeline. It reads the
// claim set attached by the JWT middleware enricher.
func ClaimsFromContext(ctx context.Context) claims.Set {
	set, _ := ClaimSetFromContext(ctx)
	return set
}
