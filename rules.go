package auth

import (
	"fmt"
)

// Rule decides whether a principal may run an operation. A nil error
// allows the call.
type Rule func(Principal) error

// Authenticated fails with Unauthorized unless the principal is authenticated
func Authenticated() Rule {
	return func(p Principal) error {
		if !p.IsAuthenticated {
			return ErrUnauthorized
		}
		return nil
	}
}

// LeaderOnly requires an authenticated team leader
func LeaderOnly() Rule {
	return All(Authenticated(), func(p Principal) error {
		if !p.IsLeader {
			return failure(ErrForbidden, "team leader required", nil)
		}
		return nil
	})
}

// TierOnly requires an authenticated principal of exactly the given tier
func TierOnly(t TeamType) Rule {
	return All(Authenticated(), tierExact(t))
}

// TierMinimum requires an authenticated principal of the given tier or any
// tier above it
func TierMinimum(t TeamType) Rule {
	return All(Authenticated(), tierAtLeast(t))
}

// TierMinimumWithPosition adds a rank gate to TierMinimum. The rank is only
// considered once the tier check passed.
func TierMinimumWithPosition(t TeamType, maxPosition int) Rule {
	return All(Authenticated(), tierAtLeast(t), positionAtMost(maxPosition))
}

// PositionAtMost requires an authenticated principal whose position is not
// greater than maxPosition
func PositionAtMost(maxPosition int) Rule {
	return All(Authenticated(), positionAtMost(maxPosition))
}

func tierExact(t TeamType) Rule {
	return func(p Principal) error {
		if p.TeamType != t {
			return failure(ErrForbidden, fmt.Sprintf("%s team required", t), map[string]any{
				"required_tier": t.String(),
			})
		}
		return nil
	}
}

func tierAtLeast(t TeamType) Rule {
	return func(p Principal) error {
		if !p.TeamType.IsAtLeast(t) {
			return failure(ErrForbidden, fmt.Sprintf("%s team or above required", t), map[string]any{
				"required_tier": t.String(),
			})
		}
		return nil
	}
}

func positionAtMost(maxPosition int) Rule {
	return func(p Principal) error {
		if !p.HasRank(maxPosition) {
			return failure(ErrForbidden, fmt.Sprintf("team position %d or better required", maxPosition), map[string]any{
				"max_position": maxPosition,
			})
		}
		return nil
	}
}

func CustomerOnly() Rule    { return TierOnly(TeamCustomer) }
func CustomerMinimum() Rule { return TierMinimum(TeamCustomer) }
func CustomerMinimumWithPosition(maxPosition int) Rule {
	return TierMinimumWithPosition(TeamCustomer, maxPosition)
}

func MntcOnly() Rule    { return TierOnly(TeamMaintenance) }
func MntcMinimum() Rule { return TierMinimum(TeamMaintenance) }
func MntcMinimumWithPosition(maxPosition int) Rule {
	return TierMinimumWithPosition(TeamMaintenance, maxPosition)
}

func SuperOnly() Rule    { return TierOnly(TeamSuper) }
func SuperMinimum() Rule { return TierMinimum(TeamSuper) }
func SuperMinimumWithPosition(maxPosition int) Rule {
	return TierMinimumWithPosition(TeamSuper, maxPosition)
}

// All runs rules in order and returns the first failure
func All(rules ...Rule) Rule {
	return func(p Principal) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes as soon as one rule passes. When every rule fails the last
// failure is returned. Any with no rules denies.
func Any(rules ...Rule) Rule {
	return func(p Principal) error {
		var last error = ErrForbidden
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			err := rule(p)
			if err == nil {
				return nil
			}
			last = err
		}
		return last
	}
}

// Allow is the rule of operations open to every caller
func Allow() Rule {
	return func(Principal) error { return nil }
}

// DevBypass skips rule in development and test environments
func DevBypass(env Environment, rule Rule) Rule {
	if env.IsDevelopment() {
		return Allow()
	}
	if rule == nil {
		return Allow()
	}
	return rule
}
