package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TwoFactorProvider is the channel used to deliver second factor codes
type TwoFactorProvider = string

const (
	TwoFactorNone          TwoFactorProvider = "none"
	TwoFactorEmail         TwoFactorProvider = "email"
	TwoFactorSMS           TwoFactorProvider = "sms"
	TwoFactorAuthenticator TwoFactorProvider = "authenticator"
)

// Relations a TeamLoader understands
const (
	RelationMembers = "Members"
	RelationLeader  = "Leader"
)

// Team is the tenant aggregate
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:tm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Type          TeamType   `bun:"team_type,notnull" json:"team_type,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	LeaderID      *uuid.UUID `bun:"leader_id,type:uuid" json:"leader_id,omitempty"`
	Leader        *AppUser   `bun:"rel:belongs-to,join:leader_id=id" json:"leader,omitempty"`
	Capacity      int        `bun:"capacity" json:"capacity,omitempty"`
	Members       []*AppUser `bun:"rel:has-many,join:id=team_id" json:"members,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsLeader reports whether userID is the team's leader. A team without a
// leader has no leader to match.
func (t *Team) IsLeader(userID uuid.UUID) bool {
	if t == nil || t.LeaderID == nil || userID == uuid.Nil {
		return false
	}
	return *t.LeaderID == userID
}

// HasMember checks the loaded members for userID
func (t *Team) HasMember(userID uuid.UUID) bool {
	if t == nil {
		return false
	}
	for _, m := range t.Members {
		if m != nil && m.ID == userID {
			return true
		}
	}
	return false
}

// NonLeaderMembers returns the loaded members that are not the leader
func (t *Team) NonLeaderMembers() []*AppUser {
	if t == nil {
		return nil
	}
	out := make([]*AppUser, 0, len(t.Members))
	for _, m := range t.Members {
		if m == nil || t.IsLeader(m.ID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// AppUser is a team member. Credential columns belong to the external
// credential store.
type AppUser struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TeamID            uuid.UUID         `bun:"team_id,notnull,type:uuid" json:"team_id,omitempty"`
	TeamPosition      int               `bun:"team_position,notnull" json:"team_position"`
	FirstName         string            `bun:"first_name" json:"first_name,omitempty"`
	LastName          string            `bun:"last_name" json:"last_name,omitempty"`
	Username          string            `bun:"username,notnull,unique" json:"username,omitempty"`
	Email             string            `bun:"email,notnull,unique" json:"email,omitempty"`
	TwoFactorProvider TwoFactorProvider `bun:"two_factor_provider" json:"two_factor_provider,omitempty"`
	TwoFactorEnabled  bool              `bun:"two_factor_enabled" json:"two_factor_enabled,omitempty"`
	PasswordHash      string            `bun:"password_hash" json:"-"`
	CreatedAt         *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RefreshTokenState is the observable state of a refresh token
type RefreshTokenState = string

const (
	RefreshTokenActive  RefreshTokenState = "active"
	RefreshTokenExpired RefreshTokenState = "expired"
)

// RefreshToken is a long lived session credential owned by one user
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *AppUser  `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Payload       string    `bun:"payload,notnull,unique" json:"-"`
	IssuedOnUTC   time.Time `bun:"issued_on_utc,notnull" json:"issued_on_utc"`
	ExpiresOnUTC  time.Time `bun:"expires_on_utc,notnull" json:"expires_on_utc"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// State returns active or expired as of now
func (r *RefreshToken) State(now time.Time) RefreshTokenState {
	if r == nil || !now.Before(r.ExpiresOnUTC) {
		return RefreshTokenExpired
	}
	return RefreshTokenActive
}

// Lifetime is the span the current payload was issued for
func (r *RefreshToken) Lifetime() time.Duration {
	if r == nil {
		return 0
	}
	return r.ExpiresOnUTC.Sub(r.IssuedOnUTC)
}
