package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-teamauth/claims"
	"github.com/google/uuid"
)

// TokenService issues and verifies access tokens
type TokenService interface {
	Generate(ctx context.Context, member *AppUser, team *Team) (string, error)
	SignClaims(claims jwt.MapClaims) (string, error)
	Validate(tokenString string) (claims.Set, error)
}

// TokenServiceImpl signs with the current key of a KeyRing and validates
// against every key of its pool
type TokenServiceImpl struct {
	keys      *KeyRing
	lifetime  time.Duration
	issuer    string
	audience  jwt.ClaimStrings
	decorator ClaimsDecorator
	logger    Logger
	now       func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

func WithTokenLifetime(d time.Duration) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if d > 0 {
			ts.lifetime = d
		}
	}
}

func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.issuer = issuer
	}
}

func WithTokenAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.audience = append(jwt.ClaimStrings(nil), audience...)
	}
}

// WithClaimsDecorator sets the decorator run before each token is signed
func WithClaimsDecorator(d ClaimsDecorator) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.decorator = normalizeClaimsDecorator(d)
	}
}

func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// DefaultAccessTokenLifetime is used when no lifetime is configured
const DefaultAccessTokenLifetime = 15 * time.Minute

// NewTokenService creates a new TokenService instance
func NewTokenService(keys *KeyRing, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		keys:      keys,
		lifetime:  DefaultAccessTokenLifetime,
		decorator: noopClaimsDecorator{},
		logger:    defLogger{name: "auth.tokens"},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// NewTokenServiceFromConfig builds the key ring and token service from cfg
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if cfg == nil {
		return nil, failure(ErrInvalidConfiguration, "config is required", nil)
	}

	pool, err := KeyPoolFromConfigs(KeyConfigFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	ring, err := NewKeyRing(pool)
	if err != nil {
		return nil, err
	}

	base := []TokenServiceOption{
		WithTokenLifetime(cfg.GetAccessTokenLifetime()),
		WithTokenIssuer(cfg.GetIssuer()),
		WithTokenAudience(cfg.GetAudience()...),
	}

	return NewTokenService(ring, append(base, opts...)...), nil
}

// KeyRing returns the ring, rotate it to roll signing keys
func (ts *TokenServiceImpl) KeyRing() *KeyRing {
	return ts.keys
}

// Generate creates an access token for member of team
func (ts *TokenServiceImpl) Generate(ctx context.Context, member *AppUser, team *Team) (string, error) {
	if member == nil || member.ID == uuid.Nil {
		return "", failure(ErrMissingInput, "member is required", nil)
	}

	now := ts.now().UTC()
	mc := jwt.MapClaims{
		claims.Subject:   member.ID.String(),
		claims.IssuedAt:  now.Unix(),
		claims.ExpiresAt: now.Add(ts.lifetime).Unix(),
		claims.TokenID:   uuid.NewString(),
	}

	if ts.issuer != "" {
		mc[claims.Issuer] = ts.issuer
	}
	if len(ts.audience) > 0 {
		mc[claims.Audience] = []string(append(jwt.ClaimStrings(nil), ts.audience...))
	}

	if member.Email != "" {
		mc[claims.Email] = member.Email
	}
	if member.Username != "" {
		mc[claims.Username] = member.Username
	}

	if team != nil {
		mc[claims.TeamID] = team.ID.String()
		mc[claims.TeamType] = team.Type.String()
		mc[claims.TeamPosition] = strconv.Itoa(member.TeamPosition)
		if team.IsLeader(member.ID) {
			mc[claims.Role] = claims.RoleLeader
		}
	}

	snapshot := captureProtectedClaims(mc)
	if err := ts.decorator.Decorate(ctx, member, mc); err != nil {
		return "", err
	}
	if err := snapshot.validate(mc); err != nil {
		ts.logger.Error("claims decorator mutated a protected claim", "error", err)
		return "", err
	}

	return ts.SignClaims(mc)
}

// SignClaims signs arbitrary JWT claims using the current signing key
func (ts *TokenServiceImpl) SignClaims(mc jwt.MapClaims) (string, error) {
	if mc == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	key, ok := ts.currentSigningKey()
	if !ok {
		return "", failure(ErrInvalidConfiguration, "no signing key configured", nil)
	}

	token := jwt.NewWithClaims(key.Method, mc)
	if key.KeyID != "" {
		token.Header["kid"] = key.KeyID
	}

	signedString, err := token.SignedString(key.Material)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string against the candidate keys
// for its kid header, returning the verified claim set
func (ts *TokenServiceImpl) Validate(tokenString string) (claims.Set, error) {
	if tokenString == "" {
		return nil, failure(ErrTokenMalformed, "token is empty", nil)
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, failure(ErrTokenMalformed, "", nil)
	}

	kid, _ := unverified.Header["kid"].(string)

	var pool *KeyPool
	if ts.keys != nil {
		pool = ts.keys.Current()
	}

	candidates := pool.Resolve(kid)
	if len(candidates) == 0 {
		ts.logger.Warn("no validation key matches token", "kid", kid)
		return nil, failure(ErrTokenMalformed, "", map[string]any{"kid": kid})
	}

	for _, key := range candidates {
		mc := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, mc, func(*jwt.Token) (any, error) {
			return key.VerificationMaterial(), nil
		}, ts.parserOptions(key)...)

		if err == nil && token.Valid {
			return claims.FromMapClaims(mc), nil
		}

		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
	}

	return nil, failure(ErrTokenMalformed, "", nil)
}

func (ts *TokenServiceImpl) parserOptions(key SecurityKey) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if key.Method != nil {
		opts = append(opts, jwt.WithValidMethods([]string{key.Method.Alg()}))
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience[0]))
	}
	return opts
}

func (ts *TokenServiceImpl) currentSigningKey() (SecurityKey, bool) {
	if ts.keys == nil {
		return SecurityKey{}, false
	}
	return ts.keys.Current().SigningKey()
}
