package auth

import (
	"context"

	"github.com/goliatone/go-teamauth/claims"
	"github.com/goliatone/go-teamauth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores the verified claim set and its projected
// principal in the standard context. Set it as jwtware.Config.ContextEnricher
// so pipelines using ClaimsFromContext see the request's claims.
func ContextEnricherAdapter(c context.Context, set claims.Set) context.Context {
	if set == nil {
		return c
	}
	ctx := WithClaimSet(c, set)
	return WithPrincipal(ctx, ProjectPrincipal(set))
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// MiddlewareConfig returns a jwtware config that validates with tokens,
// enriches the std context and renders failures with FailureHandler.
func MiddlewareConfig(tokens TokenValidator, logger Logger, listeners ...ValidationListener) jwtware.Config {
	cfg := jwtware.Config{
		TokenValidator:  tokens,
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler:    FailureHandler(logger),
	}
	RegisterValidationListeners(&cfg, listeners...)
	return cfg
}

// TeamScopedMiddlewareConfig is MiddlewareConfig for routes that always act
// on behalf of a team member. Tokens without a subject or a known team are
// rejected before any listener runs.
func TeamScopedMiddlewareConfig(tokens TokenValidator, logger Logger, listeners ...ValidationListener) jwtware.Config {
	return MiddlewareConfig(RequireTeamClaims(tokens), logger, listeners...)
}
