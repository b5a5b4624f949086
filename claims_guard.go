package auth

import (
	"fmt"
	"reflect"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-teamauth/claims"
)

var protectedClaims = []string{
	claims.Subject,
	claims.TeamID,
	claims.TeamType,
	claims.TeamPosition,
	claims.Role,
	claims.Issuer,
	claims.Audience,
	claims.IssuedAt,
	claims.ExpiresAt,
	claims.TokenID,
}

type protectedClaimsSnapshot map[string]any

func captureProtectedClaims(mc jwt.MapClaims) protectedClaimsSnapshot {
	snap := make(protectedClaimsSnapshot, len(protectedClaims))
	for _, name := range protectedClaims {
		if v, ok := mc[name]; ok {
			snap[name] = cloneClaimValue(v)
		}
	}
	return snap
}

func (snap protectedClaimsSnapshot) validate(mc jwt.MapClaims) error {
	for _, name := range protectedClaims {
		expected, had := snap[name]
		current, has := mc[name]
		if had != has {
			return immutableClaimViolation(name)
		}
		if had && !reflect.DeepEqual(expected, current) {
			return immutableClaimViolation(name)
		}
	}
	return nil
}

func cloneClaimValue(v any) any {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case jwt.ClaimStrings:
		return append(jwt.ClaimStrings(nil), val...)
	default:
		return v
	}
}

func immutableClaimViolation(field string) error {
	return failure(ErrImmutableClaimMutation, fmt.Sprintf("immutable claim mutated: %s", field), map[string]any{
		"claim": field,
	})
}
