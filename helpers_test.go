package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-teamauth"
	"github.com/goliatone/go-teamauth/claims"
)

// newTestDB returns a migrated in-memory sqlite database private to t
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := auth.OpenDB(auth.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, auth.Migrate(context.Background(), db))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()
	repo := auth.NewRepositoryManager(newTestDB(t))
	repo.MustValidate()
	return repo
}

// testClock is a settable clock shared by services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// silentLogger drops every record
type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

func newMember(username string, position int) *auth.AppUser {
	return &auth.AppUser{
		Username:     username,
		Email:        username + "@example.com",
		TeamPosition: position,
	}
}

// seedTeam creates a team of teamType led by a member named "<name>-leader"
func seedTeam(t *testing.T, svc *auth.TeamService, name string, teamType auth.TeamType) (*auth.Team, *auth.AppUser) {
	t.Helper()

	leader := newMember(name+"-leader", 0)
	team, err := svc.AddTeam(context.Background(), &auth.Team{Name: name, Type: teamType}, leader)
	require.NoError(t, err)
	return team, leader
}

func principalClaims(userID, teamID uuid.UUID, teamType auth.TeamType, position string) claims.Set {
	set := claims.Set{}
	set.Add(claims.Subject, userID.String())
	set.Add(claims.TeamID, teamID.String())
	set.Add(claims.TeamType, teamType.String())
	if position != "" {
		set.Add(claims.TeamPosition, position)
	}
	return set
}
