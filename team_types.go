package auth

import "strings"

// TeamType is the tier of a team. Tiers form a strict hierarchy:
// super > maintenance > customer.
type TeamType string

const (
	// TeamCustomer is the lowest tier, a tenant of the platform
	TeamCustomer TeamType = "customer"
	// TeamMaintenance operates the platform for customers
	TeamMaintenance TeamType = "maintenance"
	// TeamSuper owns the platform
	TeamSuper TeamType = "super"
)

var teamTypeRank = map[TeamType]int{
	TeamCustomer:    0,
	TeamMaintenance: 1,
	TeamSuper:       2,
}

// IsValid checks if the team type is one of the predefined tiers
func (t TeamType) IsValid() bool {
	_, ok := teamTypeRank[t]
	return ok
}

// Rank returns the position of the tier in the hierarchy, -1 if unknown
func (t TeamType) Rank() int {
	if rank, ok := teamTypeRank[t]; ok {
		return rank
	}
	return -1
}

// IsAtLeast checks if this tier meets the minimum required tier.
// Unknown tiers never satisfy, and never are satisfied by, anything.
func (t TeamType) IsAtLeast(min TeamType) bool {
	current, ok := teamTypeRank[t]
	if !ok {
		return false
	}

	required, ok := teamTypeRank[min]
	if !ok {
		return false
	}

	return current >= required
}

func (t TeamType) String() string {
	return string(t)
}

// AllTeamTypes returns the tiers in hierarchical order
func AllTeamTypes() []TeamType {
	return []TeamType{
		TeamCustomer,
		TeamMaintenance,
		TeamSuper,
	}
}

// ParseTeamType safely parses a string into a TeamType, case insensitive
func ParseTeamType(s string) (TeamType, bool) {
	t := TeamType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.IsValid()
}
