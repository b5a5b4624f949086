package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-teamauth"
	"github.com/goliatone/go-teamauth/claims"
)

func TestProjectPrincipalFullClaimSet(t *testing.T) {
	userID := uuid.New()
	teamID := uuid.New()

	set := principalClaims(userID, teamID, auth.TeamMaintenance, "2")
	set.Add(claims.Role, "Leader")
	set.Add(claims.Email, "ops@example.com")
	set.Add(claims.Username, "ops")
	set.Add(claims.SubscriptionClaim("pro"), "device-a", "device-b")

	p := auth.ProjectPrincipal(set)

	assert.True(t, p.IsAuthenticated)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, teamID, p.TeamID)
	assert.Equal(t, auth.TeamMaintenance, p.TeamType)
	assert.Equal(t, 2, p.TeamPosition)
	assert.True(t, p.IsLeader)
	assert.Equal(t, "ops@example.com", p.Email)
	assert.Equal(t, "ops", p.Username)
	assert.True(t, p.HasSubscription("pro"))
	assert.Equal(t, []string{"device-a", "device-b"}, p.Subscriptions["pro"])

	assert.True(t, p.IsMntc())
	assert.True(t, p.IsMntcMinimum())
	assert.True(t, p.IsCustomerMinimum())
	assert.False(t, p.IsSuperMinimum())
	assert.False(t, p.IsCustomer())
}

func TestProjectPrincipalDefaults(t *testing.T) {
	t.Run("nil set is anonymous", func(t *testing.T) {
		p := auth.ProjectPrincipal(nil)
		assert.False(t, p.IsAuthenticated)
		assert.Equal(t, uuid.Nil, p.UserID)
		assert.Equal(t, auth.NoTeamPosition, p.TeamPosition)
	})

	t.Run("missing claims take defaults", func(t *testing.T) {
		set := claims.Set{}
		set.Add(claims.Email, "someone@example.com")

		p := auth.ProjectPrincipal(set)
		assert.True(t, p.IsAuthenticated)
		assert.Equal(t, uuid.Nil, p.UserID)
		assert.Equal(t, uuid.Nil, p.TeamID)
		assert.Equal(t, auth.TeamType(""), p.TeamType)
		assert.Equal(t, -1, p.TeamPosition)
		assert.False(t, p.IsLeader)
		assert.Empty(t, p.Subscriptions)
	})

	t.Run("unparseable values are treated as missing", func(t *testing.T) {
		set := claims.Set{}
		set.Add(claims.Subject, "not-a-uuid")
		set.Add(claims.TeamType, "vendor")
		set.Add(claims.TeamPosition, "first")
		set.Add(claims.Role, "member")

		p := auth.ProjectPrincipal(set)
		assert.True(t, p.IsAuthenticated)
		assert.Equal(t, uuid.Nil, p.UserID)
		assert.Equal(t, auth.TeamType(""), p.TeamType)
		assert.Equal(t, -1, p.TeamPosition)
		assert.False(t, p.IsLeader)
	})
}

func TestPrincipalHasRank(t *testing.T) {
	p := auth.Principal{TeamPosition: 3}
	assert.True(t, p.HasRank(3))
	assert.True(t, p.HasRank(5))
	assert.False(t, p.HasRank(2))

	assert.False(t, auth.Anonymous().HasRank(100), "a missing position never ranks")
}

func TestPrincipalWithLeaderCopiesSubscriptions(t *testing.T) {
	p := auth.Principal{Subscriptions: map[string][]string{"pro": {"a"}}}
	leader := p.WithLeader(true)

	leader.Subscriptions["pro"][0] = "changed"

	assert.True(t, leader.IsLeader)
	assert.False(t, p.IsLeader)
	assert.Equal(t, "a", p.Subscriptions["pro"][0])
}

func TestPrincipalContext(t *testing.T) {
	p, ok := auth.PrincipalFromContext(context.Background())
	assert.False(t, ok)
	assert.False(t, p.IsAuthenticated)

	want := auth.Principal{IsAuthenticated: true, UserID: uuid.New(), TeamPosition: 1}
	got, ok := auth.PrincipalFromContext(auth.WithPrincipal(context.Background(), want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestContextEnricherAdapter(t *testing.T) {
	userID := uuid.New()
	teamID := uuid.New()
	set := principalClaims(userID, teamID, auth.TeamCustomer, "4")

	ctx := auth.ContextEnricherAdapter(context.Background(), set)

	stored, ok := auth.ClaimSetFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, set, stored)
	assert.Equal(t, set, auth.ClaimsFromContext(ctx))

	p, ok := auth.PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, 4, p.TeamPosition)

	assert.Equal(t, context.Background(), auth.ContextEnricherAdapter(context.Background(), nil))
}

func TestActorFromContext(t *testing.T) {
	assert.Equal(t, auth.ActorRef{Type: "system"}, auth.ActorFromContext(context.Background()))

	userID := uuid.New()
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{IsAuthenticated: true, UserID: userID})
	assert.Equal(t, auth.ActorRef{ID: userID.String(), Type: "user"}, auth.ActorFromContext(ctx))
}
