package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RotationPolicy decides when a redeemed refresh token is rotated
type RotationPolicy string

const (
	// HalfLife rotates once more than half of the lifetime elapsed
	HalfLife RotationPolicy = "half_life"
	// ThreeQuarterLife rotates once more than three quarters elapsed
	ThreeQuarterLife RotationPolicy = "three_quarter_life"
)

// ParseRotationPolicy accepts the policy names in snake or camel case
func ParseRotationPolicy(s string) (RotationPolicy, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "half_life", "halflife":
		return HalfLife, nil
	case "three_quarter_life", "threequarterlife":
		return ThreeQuarterLife, nil
	default:
		return "", failure(ErrInvalidConfiguration, "unknown refresh token rotation policy", map[string]any{
			"policy": s,
		})
	}
}

// Fraction of the lifetime that must elapse before rotation
func (p RotationPolicy) Fraction() float64 {
	if p == ThreeQuarterLife {
		return 0.75
	}
	return 0.5
}

// Threshold is the elapsed time after which a token of lifetime rotates
func (p RotationPolicy) Threshold(lifetime time.Duration) time.Duration {
	return time.Duration(float64(lifetime) * p.Fraction())
}

// IsDue reports whether token should rotate at now. The comparison is
// strict: a token exactly at the threshold is kept.
func (p RotationPolicy) IsDue(token *RefreshToken, now time.Time) bool {
	if token == nil {
		return false
	}
	elapsed := now.Sub(token.IssuedOnUTC)
	return elapsed > p.Threshold(token.Lifetime())
}

// RefreshPayloadSize is the number of random bytes in a payload
const RefreshPayloadSize = 64

// DefaultRefreshTokenLifetime is used when no lifetime is configured
const DefaultRefreshTokenLifetime = 7 * 24 * time.Hour

// RefreshTokenService manages the refresh token lifecycle. Every operation
// commits its own unit of work.
type RefreshTokenService struct {
	repo     RepositoryManager
	lifetime time.Duration
	policy   RotationPolicy
	now      func() time.Time
	random   io.Reader
	logger   Logger
	metrics  Metrics
}

// RefreshTokenOption configures a RefreshTokenService
type RefreshTokenOption func(*RefreshTokenService)

func WithRefreshLifetime(d time.Duration) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

func WithRotationPolicy(p RotationPolicy) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		if p != "" {
			s.policy = p
		}
	}
}

func WithRefreshClock(now func() time.Time) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRefreshRandom replaces crypto/rand as the payload source
func WithRefreshRandom(r io.Reader) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		if r != nil {
			s.random = r
		}
	}
}

func WithRefreshLogger(logger Logger) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRefreshMetrics(metrics Metrics) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

func NewRefreshTokenService(repo RepositoryManager, opts ...RefreshTokenOption) *RefreshTokenService {
	s := &RefreshTokenService{
		repo:     repo,
		lifetime: DefaultRefreshTokenLifetime,
		policy:   HalfLife,
		now:      time.Now,
		random:   rand.Reader,
		logger:   defLogger{name: "auth.refresh"},
		metrics:  NoopMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Policy returns the configured rotation policy
func (s *RefreshTokenService) Policy() RotationPolicy {
	return s.policy
}

// Issue creates a new refresh token for userID
func (s *RefreshTokenService) Issue(ctx context.Context, userID uuid.UUID) (*RefreshToken, error) {
	if userID == uuid.Nil {
		return nil, failure(ErrMissingInput, "user id is required", nil)
	}

	payload, err := s.newPayload()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token := &RefreshToken{
		ID:           uuid.New(),
		UserID:       userID,
		Payload:      payload,
		IssuedOnUTC:  now,
		ExpiresOnUTC: now.Add(s.lifetime),
		CreatedAt:    now,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.RefreshTokens().CreateTokenTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if created != nil {
			token = created
		}
		return nil
	})
	if err != nil {
		s.logger.Error("refresh token issue failed", "user_id", userID, "error", err)
		return nil, err
	}

	s.metrics.RefreshTokenOperation(RefreshOpIssued)
	return token, nil
}

// Find looks up the token by payload together with its owner and the
// owner's team. A mismatch on any of them is indistinguishable from a
// missing token.
func (s *RefreshTokenService) Find(ctx context.Context, payload string, userID, teamID uuid.UUID) (*RefreshToken, error) {
	if payload == "" || userID == uuid.Nil || teamID == uuid.Nil {
		return nil, ErrRefreshTokenNotFound
	}

	var token *RefreshToken
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := s.repo.RefreshTokens().FindTokenTx(ctx, tx, payload, userID, teamID)
		if err != nil {
			return err
		}
		token = found
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return token, nil
}

// RotateIfDue rotates token when the policy says so. The returned bool
// reports whether a rotation was written. Expired tokens are rejected.
func (s *RefreshTokenService) RotateIfDue(ctx context.Context, token *RefreshToken) (*RefreshToken, bool, error) {
	if token == nil {
		return nil, false, ErrRefreshTokenNotFound
	}

	now := s.now().UTC()
	if token.State(now) == RefreshTokenExpired {
		s.metrics.RefreshTokenOperation(RefreshOpExpired)
		return nil, false, failure(ErrRefreshTokenExpired, "", map[string]any{
			"expired_at": token.ExpiresOnUTC.Format(time.RFC3339),
		})
	}

	if !s.policy.IsDue(token, now) {
		s.metrics.RefreshTokenOperation(RefreshOpKept)
		return token, false, nil
	}

	payload, err := s.newPayload()
	if err != nil {
		return nil, false, err
	}

	rotated := *token
	rotated.User = nil
	rotated.Payload = payload
	rotated.IssuedOnUTC = now
	rotated.ExpiresOnUTC = now.Add(s.lifetime)

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.RefreshTokens().ReplacePayloadTx(ctx, tx, &rotated)
	})
	if err != nil {
		s.logger.Error("refresh token rotation failed", "token_id", token.ID, "error", err)
		return nil, false, err
	}

	s.metrics.RefreshTokenOperation(RefreshOpRotated)
	return &rotated, true, nil
}

// RevokeAll deletes every token owned by userID and returns how many
func (s *RefreshTokenService) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := s.repo.RefreshTokens().DeleteByUserTx(ctx, tx, userID)
		count = n
		return err
	})
	if err != nil {
		s.logger.Error("refresh token revocation failed", "user_id", userID, "error", err)
		return 0, err
	}

	s.metrics.RefreshTokenOperation(RefreshOpRevoked)
	return count, nil
}

func (s *RefreshTokenService) newPayload() (string, error) {
	buf := make([]byte, RefreshPayloadSize)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token payload")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
