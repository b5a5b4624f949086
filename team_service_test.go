package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-teamauth"
)

func newTeamService(t *testing.T, opts ...auth.TeamServiceOption) (*auth.TeamService, auth.RepositoryManager, *recordingSink) {
	t.Helper()
	repo := newTestRepo(t)
	sink := &recordingSink{}
	base := []auth.TeamServiceOption{
		auth.WithTeamLogger(silentLogger{}),
		auth.WithTeamActivitySink(sink),
	}
	return auth.NewTeamService(repo, append(base, opts...)...), repo, sink
}

func TestTeamServiceAddTeam(t *testing.T) {
	svc, _, sink := newTeamService(t)
	ctx := context.Background()

	team, leader := seedTeam(t, svc, "acme", auth.TeamCustomer)
	require.NotEqual(t, uuid.Nil, team.ID)
	require.NotNil(t, team.LeaderID)
	assert.Equal(t, leader.ID, *team.LeaderID)
	assert.Equal(t, team.ID, leader.TeamID)

	loaded, err := svc.GetTeam(ctx, team.ID, auth.RelationMembers, auth.RelationLeader)
	require.NoError(t, err)
	assert.True(t, loaded.IsLeader(leader.ID))
	require.Len(t, loaded.Members, 1)
	require.NotNil(t, loaded.Leader)
	assert.Equal(t, "acme-leader", loaded.Leader.Username)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventTeamCreated}, sink.Types())

	t.Run("without leader", func(t *testing.T) {
		bare, err := svc.AddTeam(ctx, &auth.Team{Name: "ops", Type: auth.TeamMaintenance}, nil)
		require.NoError(t, err)
		assert.Nil(t, bare.LeaderID)
	})

	t.Run("invalid records", func(t *testing.T) {
		_, err := svc.AddTeam(ctx, &auth.Team{Type: auth.TeamCustomer}, nil)
		require.ErrorIs(t, err, auth.ErrInvalidRecord)
		assert.Equal(t, auth.FailureBadRequest, auth.KindOf(err))

		_, err = svc.AddTeam(ctx, &auth.Team{Name: "vendors", Type: auth.TeamType("vendor")}, nil)
		require.ErrorIs(t, err, auth.ErrInvalidRecord)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		fields, ok := richErr.Metadata["fields"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, fields, "team_type")

		_, err = svc.AddTeam(ctx, &auth.Team{Name: "x", Type: auth.TeamCustomer}, &auth.AppUser{Username: "no-mail"})
		assert.ErrorIs(t, err, auth.ErrInvalidRecord)
	})

	t.Run("leader already on a team", func(t *testing.T) {
		_, err := svc.AddTeam(ctx, &auth.Team{Name: "dupe", Type: auth.TeamCustomer}, newMember("acme-leader", 0))
		require.ErrorIs(t, err, auth.ErrMemberHasTeam)

		teams, err := svc.ListTeams(ctx, auth.TeamFilter{Search: "dupe"})
		require.NoError(t, err)
		assert.Empty(t, teams, "the team insert is rolled back")
	})
}

func TestTeamServiceDeleteTeam(t *testing.T) {
	svc, repo, sink := newTeamService(t)
	ctx := context.Background()

	team, leader := seedTeam(t, svc, "acme", auth.TeamCustomer)
	m1, err := svc.AddMember(ctx, team.ID, newMember("m1", 1))
	require.NoError(t, err)
	m2, err := svc.AddMember(ctx, team.ID, newMember("m2", 2))
	require.NoError(t, err)

	refresh := auth.NewRefreshTokenService(repo, auth.WithRefreshLogger(silentLogger{}))
	leaderToken, err := refresh.Issue(ctx, leader.ID)
	require.NoError(t, err)

	err = svc.DeleteTeam(ctx, team.ID)
	require.ErrorIs(t, err, auth.ErrTeamHasMembers)
	assert.Contains(t, err.Error(), "team still has 2 members")
	assert.Equal(t, auth.FailureConflict, auth.KindOf(err))

	require.NoError(t, svc.RemoveMember(ctx, team.ID, m1.ID))

	err = svc.DeleteTeam(ctx, team.ID)
	require.ErrorIs(t, err, auth.ErrTeamHasMembers)
	assert.Contains(t, err.Error(), "team still has 1 member")

	require.NoError(t, svc.RemoveMember(ctx, team.ID, m2.ID))
	require.NoError(t, svc.DeleteTeam(ctx, team.ID))

	_, err = svc.GetTeam(ctx, team.ID)
	assert.ErrorIs(t, err, auth.ErrTeamNotFound)

	_, err = repo.Members().GetMember(ctx, team.ID, leader.ID)
	assert.Error(t, err, "the leader goes with the team")

	_, err = refresh.Find(ctx, leaderToken.Payload, leader.ID, team.ID)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventTeamCreated,
		auth.ActivityEventMemberAdded,
		auth.ActivityEventMemberAdded,
		auth.ActivityEventMemberRemoved,
		auth.ActivityEventMemberRemoved,
		auth.ActivityEventTeamDeleted,
	}, sink.Types())
}

func TestTeamServiceDeleteRestrictions(t *testing.T) {
	svc, _, _ := newTeamService(t)
	ctx := context.Background()

	for _, teamType := range []auth.TeamType{auth.TeamMaintenance, auth.TeamSuper} {
		team, _ := seedTeam(t, svc, "t-"+teamType.String(), teamType)
		err := svc.DeleteTeam(ctx, team.ID)
		require.ErrorIs(t, err, auth.ErrTeamNotDeletable, teamType.String())
		assert.Equal(t, auth.FailureBadRequest, auth.KindOf(err))
	}

	err := svc.DeleteTeam(ctx, uuid.New())
	assert.ErrorIs(t, err, auth.ErrTeamNotFound)
}

func TestTeamServiceCapacity(t *testing.T) {
	t.Run("service default", func(t *testing.T) {
		svc, _, _ := newTeamService(t, auth.WithTeamCapacity(2))
		ctx := context.Background()
		team, _ := seedTeam(t, svc, "small", auth.TeamCustomer)

		_, err := svc.AddMember(ctx, team.ID, newMember("second", 1))
		require.NoError(t, err)

		_, err = svc.AddMember(ctx, team.ID, newMember("third", 1))
		require.ErrorIs(t, err, auth.ErrTeamAtCapacity)
		assert.Equal(t, auth.FailureConflict, auth.KindOf(err))
	})

	t.Run("team capacity wins", func(t *testing.T) {
		svc, _, _ := newTeamService(t, auth.WithTeamCapacity(10))
		ctx := context.Background()
		team, err := svc.AddTeam(ctx, &auth.Team{Name: "solo", Type: auth.TeamCustomer, Capacity: 1}, newMember("solo-leader", 0))
		require.NoError(t, err)

		_, err = svc.AddMember(ctx, team.ID, newMember("extra", 1))
		require.ErrorIs(t, err, auth.ErrTeamAtCapacity)
	})

	t.Run("capacity cannot drop below members", func(t *testing.T) {
		svc, _, _ := newTeamService(t)
		ctx := context.Background()
		team, _ := seedTeam(t, svc, "busy", auth.TeamCustomer)
		_, err := svc.AddMember(ctx, team.ID, newMember("busy-1", 1))
		require.NoError(t, err)

		one := 1
		_, err = svc.UpdateTeam(ctx, auth.TeamUpdate{ID: team.ID, Capacity: &one})
		require.ErrorIs(t, err, auth.ErrTeamAtCapacity)

		three := 3
		name := "busier"
		updated, err := svc.UpdateTeam(ctx, auth.TeamUpdate{ID: team.ID, Capacity: &three, Name: &name})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Capacity)

		loaded, err := svc.GetTeam(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, "busier", loaded.Name)
	})
}

func TestTeamServiceMembership(t *testing.T) {
	svc, _, _ := newTeamService(t)
	ctx := context.Background()

	acme, acmeLeader := seedTeam(t, svc, "acme", auth.TeamCustomer)
	other, _ := seedTeam(t, svc, "globex", auth.TeamCustomer)

	ann, err := svc.AddMember(ctx, acme.ID, newMember("ann", 2))
	require.NoError(t, err)

	t.Run("a member belongs to one team", func(t *testing.T) {
		dupe := newMember("ann-again", 1)
		dupe.Email = "ANN@example.com"
		_, err := svc.AddMember(ctx, other.ID, dupe)
		require.ErrorIs(t, err, auth.ErrMemberHasTeam)

		moved := *ann
		_, err = svc.AddMember(ctx, other.ID, &moved)
		require.ErrorIs(t, err, auth.ErrMemberHasTeam)
	})

	t.Run("unknown team", func(t *testing.T) {
		_, err := svc.AddMember(ctx, uuid.New(), newMember("nobody", 1))
		assert.ErrorIs(t, err, auth.ErrTeamNotFound)
	})

	t.Run("leader cannot be removed", func(t *testing.T) {
		err := svc.RemoveMember(ctx, acme.ID, acmeLeader.ID)
		require.ErrorIs(t, err, auth.ErrLeaderRemoval)
		assert.Equal(t, auth.FailureConflict, auth.KindOf(err))
	})

	t.Run("removing a stranger", func(t *testing.T) {
		err := svc.RemoveMember(ctx, other.ID, ann.ID)
		require.ErrorIs(t, err, auth.ErrMemberNotFound)
		assert.Equal(t, auth.FailureNotFound, auth.KindOf(err))
	})

	t.Run("update member", func(t *testing.T) {
		pos := 1
		first := "Ann"
		updated, err := svc.UpdateMember(ctx, auth.MemberUpdate{
			TeamID:       acme.ID,
			UserID:       ann.ID,
			TeamPosition: &pos,
			FirstName:    &first,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.TeamPosition)
		assert.Equal(t, "Ann", updated.FirstName)

		negative := -3
		_, err = svc.UpdateMember(ctx, auth.MemberUpdate{TeamID: acme.ID, UserID: ann.ID, TeamPosition: &negative})
		assert.ErrorIs(t, err, auth.ErrInvalidRecord)

		_, err = svc.UpdateMember(ctx, auth.MemberUpdate{TeamID: other.ID, UserID: ann.ID, TeamPosition: &pos})
		assert.ErrorIs(t, err, auth.ErrMemberNotFound)
	})

	t.Run("set leader", func(t *testing.T) {
		err := svc.SetLeader(ctx, other.ID, ann.ID)
		require.ErrorIs(t, err, auth.ErrNotTeamMember)
		assert.Equal(t, auth.FailureBadRequest, auth.KindOf(err))

		require.NoError(t, svc.SetLeader(ctx, acme.ID, ann.ID))
		loaded, err := svc.GetTeam(ctx, acme.ID)
		require.NoError(t, err)
		assert.True(t, loaded.IsLeader(ann.ID))

		// the former leader is now an ordinary member
		require.NoError(t, svc.RemoveMember(ctx, acme.ID, acmeLeader.ID))
	})
}

func TestTeamServiceListMembers(t *testing.T) {
	svc, _, _ := newTeamService(t)
	ctx := context.Background()

	team, _ := seedTeam(t, svc, "acme", auth.TeamMaintenance)
	for _, m := range []*auth.AppUser{newMember("zed", 3), newMember("bob", 1), newMember("amy", 1), newMember("kim", 5)} {
		_, err := svc.AddMember(ctx, team.ID, m)
		require.NoError(t, err)
	}

	names := func(members []*auth.AppUser) []string {
		out := make([]string, 0, len(members))
		for _, m := range members {
			out = append(out, m.Username)
		}
		return out
	}

	all, err := svc.ListMembers(ctx, team.ID, auth.AllPositions)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-leader", "amy", "bob", "zed", "kim"}, names(all))

	senior, err := svc.ListMembers(ctx, team.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-leader", "amy", "bob", "zed"}, names(senior))

	_, err = svc.ListMembers(ctx, uuid.New(), auth.AllPositions)
	assert.ErrorIs(t, err, auth.ErrTeamNotFound)
}

func TestTeamServiceListTeams(t *testing.T) {
	svc, _, _ := newTeamService(t)
	ctx := context.Background()

	seedTeam(t, svc, "acme", auth.TeamCustomer)
	seedTeam(t, svc, "acme-ops", auth.TeamMaintenance)
	seedTeam(t, svc, "root", auth.TeamSuper)

	customers, err := svc.ListTeams(ctx, auth.TeamFilter{Type: auth.TeamCustomer})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "acme", customers[0].Name)

	matching, err := svc.ListTeams(ctx, auth.TeamFilter{Search: "acme"})
	require.NoError(t, err)
	assert.Len(t, matching, 2)
}

func TestTeamServiceActivityActor(t *testing.T) {
	svc, _, sink := newTeamService(t)

	actorID := uuid.New()
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{IsAuthenticated: true, UserID: actorID})

	team, err := svc.AddTeam(ctx, &auth.Team{Name: "acme", Type: auth.TeamCustomer}, newMember("lead", 0))
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, auth.ActorRef{ID: actorID.String(), Type: "user"}, event.Actor)
	assert.Equal(t, team.ID.String(), event.TeamID)
	assert.Equal(t, "customer", event.Metadata["team_type"])
	assert.Equal(t, team.LeaderID.String(), event.Metadata["leader_id"])
	assert.False(t, event.OccurredAt.IsZero())
}
