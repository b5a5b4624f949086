package auth

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-teamauth/claims"
	"github.com/google/uuid"
)

// NoTeamPosition is the position of a principal without a rank claim
const NoTeamPosition = -1

// Principal is the authenticated caller as seen by rules and handlers.
// It is a value type, projected from the claim set attached to a request.
type Principal struct {
	IsAuthenticated bool
	UserID          uuid.UUID
	TeamID          uuid.UUID
	TeamType        TeamType
	TeamPosition    int
	IsLeader        bool
	Email           string
	Username        string
	Subscriptions   map[string][]string
}

// Anonymous is the principal of a request without claims
func Anonymous() Principal {
	return Principal{TeamPosition: NoTeamPosition}
}

// ProjectPrincipal builds a Principal from a claim set. A nil or empty set
// yields an unauthenticated principal. Missing claims take their defaults:
// nil ids, empty tier, position -1, not leader. Unparseable values are
// treated as missing.
func ProjectPrincipal(set claims.Set) Principal {
	p := Anonymous()
	if len(set) == 0 {
		return p
	}

	p.IsAuthenticated = true
	p.UserID = parseClaimUUID(set, claims.Subject)
	p.TeamID = parseClaimUUID(set, claims.TeamID)

	if raw, ok := set.First(claims.TeamType); ok {
		if tt, valid := ParseTeamType(raw); valid {
			p.TeamType = tt
		}
	}

	if raw, ok := set.First(claims.TeamPosition); ok {
		if pos, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && pos >= 0 {
			p.TeamPosition = pos
		}
	}

	for _, role := range set.All(claims.Role) {
		if strings.EqualFold(role, claims.RoleLeader) {
			p.IsLeader = true
			break
		}
	}

	p.Email, _ = set.First(claims.Email)
	p.Username, _ = set.First(claims.Username)
	p.Subscriptions = set.Subscriptions()

	return p
}

func parseClaimUUID(set claims.Set, name string) uuid.UUID {
	raw, ok := set.First(name)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// WithLeader returns a copy with the leader flag replaced
func (p Principal) WithLeader(leader bool) Principal {
	p.IsLeader = leader
	if p.Subscriptions != nil {
		subs := make(map[string][]string, len(p.Subscriptions))
		for plan, devices := range p.Subscriptions {
			subs[plan] = append([]string(nil), devices...)
		}
		p.Subscriptions = subs
	}
	return p
}

// IsCustomer checks the exact tier
func (p Principal) IsCustomer() bool { return p.TeamType == TeamCustomer }

// IsCustomerMinimum checks the tier is customer or above
func (p Principal) IsCustomerMinimum() bool { return p.TeamType.IsAtLeast(TeamCustomer) }

// IsMntc checks the exact tier
func (p Principal) IsMntc() bool { return p.TeamType == TeamMaintenance }

// IsMntcMinimum checks the tier is maintenance or above
func (p Principal) IsMntcMinimum() bool { return p.TeamType.IsAtLeast(TeamMaintenance) }

// IsSuper checks the exact tier
func (p Principal) IsSuper() bool { return p.TeamType == TeamSuper }

// IsSuperMinimum checks the tier is super
func (p Principal) IsSuperMinimum() bool { return p.TeamType.IsAtLeast(TeamSuper) }

// HasSubscription checks the subscription plans of the principal
func (p Principal) HasSubscription(plan string) bool {
	_, ok := p.Subscriptions[plan]
	return ok
}

// HasRank reports whether the principal holds a position no greater than
// maxPosition. Lower numbers are more senior; a missing position never ranks.
func (p Principal) HasRank(maxPosition int) bool {
	return p.TeamPosition >= 0 && p.TeamPosition <= maxPosition
}
