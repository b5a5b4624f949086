package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Session is the token pair handed to a signed in member
type Session struct {
	UserID           uuid.UUID `json:"user_id"`
	TeamID           uuid.UUID `json:"team_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	// Rotated is set when a refresh replaced the refresh token payload
	Rotated bool `json:"rotated"`
}

// Auther issues, refreshes and revokes member sessions. Credential and two
// factor checks happen before IssueSession is called.
type Auther struct {
	repo           RepositoryManager
	tokens         TokenService
	refresh        *RefreshTokenService
	accessLifetime time.Duration
	logger         Logger
	activitySink   ActivitySink
	now            func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService, refresh *RefreshTokenService) *Auther {
	return &Auther{
		repo:           repo,
		tokens:         tokens,
		refresh:        refresh,
		accessLifetime: DefaultAccessTokenLifetime,
		logger:         defLogger{name: "auth.sessions"},
		activitySink:   noopActivitySink{},
		now:            time.Now,
	}
}

// NewAuthenticatorFromConfig wires token and refresh services from cfg
func NewAuthenticatorFromConfig(cfg Config, repo RepositoryManager, metrics Metrics) (*Auther, error) {
	tokens, err := NewTokenServiceFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	refresh := NewRefreshTokenService(repo,
		WithRefreshLifetime(cfg.GetRefreshTokenLifetime()),
		WithRotationPolicy(cfg.GetRotationPolicy()),
		WithRefreshMetrics(metrics),
	)

	return NewAuthenticator(repo, tokens, refresh).
		WithAccessTokenLifetime(cfg.GetAccessTokenLifetime()), nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithAccessTokenLifetime sets the lifetime reported in issued sessions
func (s *Auther) WithAccessTokenLifetime(d time.Duration) *Auther {
	if d > 0 {
		s.accessLifetime = d
	}
	return s
}

func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// IssueSession signs an access token and issues a new refresh token for
// the member userID
func (s *Auther) IssueSession(ctx context.Context, userID uuid.UUID) (*Session, error) {
	member, team, err := s.loadMemberAndTeam(ctx, userID)
	if err != nil {
		s.logger.Error("IssueSession could not load member", "user_id", userID, "error", err)
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	access, err := s.tokens.Generate(ctx, member, team)
	if err != nil {
		s.logger.Error("IssueSession failed to sign access token", "user_id", userID, "error", err)
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	refresh, err := s.refresh.Issue(ctx, member.ID)
	if err != nil {
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	session := s.newSession(member, access, refresh, false)
	s.emit(ctx, ActivityEventSessionIssued, member, nil)

	return session, nil
}

// Refresh redeems payload for a new access token. The refresh token is
// rotated when the rotation policy says so.
func (s *Auther) Refresh(ctx context.Context, userID, teamID uuid.UUID, payload string) (*Session, error) {
	token, err := s.refresh.Find(ctx, payload, userID, teamID)
	if err != nil {
		s.logger.Warn("Refresh token lookup failed", "user_id", userID, "error", err)
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	token, rotated, err := s.refresh.RotateIfDue(ctx, token)
	if err != nil {
		s.logger.Warn("Refresh token rejected", "user_id", userID, "error", err)
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	member, team, err := s.loadMemberAndTeam(ctx, userID)
	if err != nil {
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	access, err := s.tokens.Generate(ctx, member, team)
	if err != nil {
		s.emitFailure(ctx, userID, err)
		return nil, err
	}

	eventType := ActivityEventSessionRefreshed
	if rotated {
		eventType = ActivityEventSessionRotated
	}
	s.emit(ctx, eventType, member, nil)

	return s.newSession(member, access, token, rotated), nil
}

// RevokeSessions revokes every refresh token of userID
func (s *Auther) RevokeSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.refresh.RevokeAll(ctx, userID)
	if err != nil {
		s.emitFailure(ctx, userID, err)
		return 0, err
	}

	s.emit(ctx, ActivityEventSessionRevoked, &AppUser{ID: userID}, map[string]any{
		"revoked": n,
	})
	return n, nil
}

// SessionFromToken validates an access token and projects its principal
func (s *Auther) SessionFromToken(raw string) (Principal, error) {
	set, err := s.tokens.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return Anonymous(), err
	}
	return ProjectPrincipal(set), nil
}

func (s *Auther) loadMemberAndTeam(ctx context.Context, userID uuid.UUID) (*AppUser, *Team, error) {
	var member *AppUser
	var team *Team

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		member, err = s.repo.Members().FindByIDTx(ctx, tx, userID)
		if err != nil {
			if isNotFound(err) {
				return failure(ErrUnauthorized, "member not found", nil)
			}
			return err
		}

		team, err = s.repo.Teams().GetTeamTx(ctx, tx, member.TeamID)
		if err != nil {
			if isNotFound(err) {
				return teamNotFound(member.TeamID)
			}
			return err
		}
		return nil
	})

	return member, team, err
}

func (s *Auther) newSession(member *AppUser, access string, refresh *RefreshToken, rotated bool) *Session {
	return &Session{
		UserID:           member.ID,
		TeamID:           member.TeamID,
		AccessToken:      access,
		AccessExpiresAt:  s.now().UTC().Add(s.accessLifetime),
		RefreshToken:     refresh.Payload,
		RefreshExpiresAt: refresh.ExpiresOnUTC,
		Rotated:          rotated,
	}
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, member *AppUser, meta map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Metadata:  meta,
	}
	if member != nil {
		event.UserID = member.ID.String()
		event.Actor = ActorRef{ID: member.ID.String(), Type: "user"}
		if member.TeamID != uuid.Nil {
			event.TeamID = member.TeamID.String()
		}
	}
	emitActivity(ctx, s.activitySink, s.logger, event)
}

func (s *Auther) emitFailure(ctx context.Context, userID uuid.UUID, err error) {
	s.emit(ctx, ActivityEventSessionFailure, &AppUser{ID: userID}, map[string]any{
		"kind":  string(KindOf(err)),
		"error": err.Error(),
	})
}
