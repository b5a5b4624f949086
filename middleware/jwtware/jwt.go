package jwtware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-teamauth/claims"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization

	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	// ErrMissingClaim is returned when a verified token lacks a required claim
	ErrMissingClaim = errors.New("token is missing a required claim")
)

// TokenValidator verifies a raw token and returns its claim set. The auth
// TokenService satisfies it.
type TokenValidator interface {
	Validate(tokenString string) (claims.Set, error)
}

// ValidationListener is invoked after a token has been validated, before the
// claims are attached to the request.
type ValidationListener func(ctx router.Context, set claims.Set) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler

	// SigningKey, SigningKeys (by kid) and JWKSetURLs describe verification
	// keys when no TokenValidator or KeyFunc is given
	SigningKey  SigningKey
	SigningKeys map[string]SigningKey
	JWKSetURLs  []string
	KeyFunc     jwt.Keyfunc
	// ParserOptions apply to validators built from KeyFunc or the keys
	ParserOptions []jwt.ParserOption

	// TokenValidator verifies tokens. When nil, a validator is built from
	// KeyFunc, or from the SigningKey, SigningKeys and JWKSetURLs options.
	TokenValidator TokenValidator

	// RequiredClaims must carry a value in every accepted token, e.g.
	// claims.Subject and claims.TeamID for team scoped routes
	RequiredClaims []string

	ContextKey  string
	TokenLookup string
	AuthScheme  string

	// ContextEnricher propagates the claim set to the standard Go context
	// after successful validation.
	ContextEnricher func(c context.Context, set claims.Set) context.Context

	// ValidationListeners are invoked after token validation succeeds. Use them to
	// emit events or perform bookkeeping before the request proceeds.
	ValidationListeners []ValidationListener

	// OnKeyRefreshError receives background JWKS refresh failures
	OnKeyRefreshError func(error)
}

type SigningKey struct {
	JWTAlg string
	Key    any
}

// New returns the middleware. It panics when cfg names no way to verify
// tokens.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			set, err := cfg.authenticate(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, set)
			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), set))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func (cfg *Config) authenticate(ctx router.Context, extractors []JWTExtractor) (claims.Set, error) {
	raw, err := ExtractRawTokenFromContext(ctx, extractors)
	if err != nil {
		return nil, err
	}

	set, err := cfg.TokenValidator.Validate(raw)
	if err != nil {
		return nil, err
	}

	for _, name := range cfg.RequiredClaims {
		if !set.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrMissingClaim, name)
		}
	}

	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, set); err != nil {
			return nil, err
		}
	}

	return set, nil
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.OnKeyRefreshError == nil {
		cfg.OnKeyRefreshError = func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		}
	}

	if cfg.TokenValidator == nil {
		validator, err := cfg.buildValidator()
		if err != nil {
			panic("AUTH: JWT middleware configuration: " + err.Error())
		}
		cfg.TokenValidator = validator
	}

	return cfg
}

func defaultErrorHandler(c router.Context, err error) error {
	if errors.Is(err, ErrJWTMissingOrMalformed) {
		return c.Status(router.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
	}
	return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
}

func (cfg *Config) buildValidator() (TokenValidator, error) {
	if cfg.KeyFunc != nil {
		return KeyFuncValidator(cfg.KeyFunc, cfg.ParserOptions...), nil
	}

	switch {
	case len(cfg.JWKSetURLs) > 0:
		kf, err := multiKeyfunc(cfg.givenKeys(), cfg.JWKSetURLs, cfg.OnKeyRefreshError)
		if err != nil {
			return nil, err
		}
		cfg.KeyFunc = kf
	case len(cfg.SigningKeys) > 0:
		cfg.KeyFunc = keyfunc.NewGiven(cfg.givenKeys()).Keyfunc
	case cfg.SigningKey.Key != nil:
		cfg.KeyFunc = signingKeyFunc(cfg.SigningKey)
	default:
		return nil, errors.New("at least one of TokenValidator, KeyFunc, JWKSetURLs, SigningKeys or SigningKey is required")
	}

	return KeyFuncValidator(cfg.KeyFunc, cfg.ParserOptions...), nil
}

func (cfg *Config) givenKeys() map[string]keyfunc.GivenKey {
	if len(cfg.SigningKeys) == 0 {
		return nil
	}
	given := make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
	for kid, key := range cfg.SigningKeys {
		given[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
			Algorithm: key.JWTAlg,
		})
	}
	return given
}

// KeyFuncValidator verifies tokens with keyFunc and flattens their claims
func KeyFuncValidator(keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) TokenValidator {
	return validatorFunc(func(tokenString string) (claims.Set, error) {
		mc := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, mc, keyFunc, opts...)
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, ErrJWTMissingOrMalformed
		}
		return claims.FromMapClaims(mc), nil
	})
}

type validatorFunc func(tokenString string) (claims.Set, error)

func (f validatorFunc) Validate(tokenString string) (claims.Set, error) {
	return f(tokenString)
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, urls []string, onErr func(error)) (jwt.Keyfunc, error) {
	opts := keyfuncOptions(givenKeys, onErr)
	sets := make(map[string]keyfunc.Options, len(urls))
	for _, url := range urls {
		sets[url] = opts
	}
	multi, err := keyfunc.GetMultiple(sets, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}
	return multi.Keyfunc, nil
}

func keyfuncOptions(givenKeys map[string]keyfunc.GivenKey, onErr func(error)) keyfunc.Options {
	if onErr == nil {
		onErr = func(error) {}
	}
	return keyfunc.Options{
		GivenKeys:           givenKeys,
		RefreshErrorHandler: onErr,
		RefreshInterval:     time.Hour,
		RefreshRateLimit:    5 * time.Minute,
		RefreshTimeout:      10 * time.Second,
		RefreshUnknownKID:   true,
	}
}

func signingKeyFunc(key SigningKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if key.JWTAlg == "" {
			return key.Key, nil
		}
		alg, ok := token.Header["alg"].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected JWT signing method: expected %q got: missing alg header", key.JWTAlg)
		}
		if alg != key.JWTAlg {
			return nil, fmt.Errorf("unexpected jwt signing method: expected: %q: got: %q", key.JWTAlg, alg)
		}
		return key.Key, nil
	}
}
