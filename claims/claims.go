// Package claims holds the well-known JWT claim names shared by token
// issuance and validation, and the verified claim Set handed from the
// boundary layer to the authorization pipeline.
package claims

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Well-known claim names. These strings are an external contract: issuer
// and validator must agree on them.
const (
	Subject      = "sub"
	TeamID       = "team_id"
	TeamType     = "team_type"
	TeamPosition = "team_position"
	Role         = "role"
	Email        = "email"
	Username     = "username"

	// SubscriptionPrefix prefixes one multi-valued claim per active
	// subscription plan, e.g. "subscription:pro" => ["device-a", "device-b"].
	SubscriptionPrefix = "subscription:"
)

// Registered claim names handled by the token service.
const (
	Issuer    = "iss"
	Audience  = "aud"
	ExpiresAt = "exp"
	IssuedAt  = "iat"
	NotBefore = "nbf"
	TokenID   = "jti"
)

// RoleLeader is the role claim value issued to a team leader.
const RoleLeader = "leader"

// Set is a verified claim set: string keyed, possibly multi-valued per key.
type Set map[string][]string

// First returns the first value stored for name.
func (s Set) First(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	values, ok := s[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// All returns every value stored for name.
func (s Set) All(name string) []string {
	if s == nil {
		return nil
	}
	return s[name]
}

// Has reports whether name carries at least one value.
func (s Set) Has(name string) bool {
	_, ok := s.First(name)
	return ok
}

// Add appends values to name.
func (s Set) Add(name string, values ...string) Set {
	s[name] = append(s[name], values...)
	return s
}

// Subscriptions returns the device ids keyed by subscription plan.
func (s Set) Subscriptions() map[string][]string {
	out := map[string][]string{}
	for name, values := range s {
		plan, ok := strings.CutPrefix(name, SubscriptionPrefix)
		if !ok || plan == "" {
			continue
		}
		out[plan] = append([]string(nil), values...)
	}
	return out
}

// SubscriptionClaim returns the claim name used for the given plan.
func SubscriptionClaim(plan string) string {
	return SubscriptionPrefix + plan
}

// Names returns the claim names in lexical order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for name, values := range s {
		out[name] = append([]string(nil), values...)
	}
	return out
}

// FromMapClaims flattens decoded JWT claims into a Set. Scalars become a
// single value, arrays become multiple values, numbers keep their shortest
// decimal form.
func FromMapClaims(mc jwt.MapClaims) Set {
	out := make(Set, len(mc))
	for name, raw := range mc {
		switch v := raw.(type) {
		case []any:
			for _, item := range v {
				if str, ok := stringify(item); ok {
					out[name] = append(out[name], str)
				}
			}
		case []string:
			out[name] = append(out[name], v...)
		default:
			if str, ok := stringify(v); ok {
				out[name] = []string{str}
			}
		}
	}
	return out
}

func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
