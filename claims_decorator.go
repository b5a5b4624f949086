package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-teamauth/claims"
)

// ClaimsDecorator can add extension claims to an access token before it is
// signed. Identity and registered claims (sub, team_id, team_type,
// team_position, role, iss, aud, iat, exp) are guarded; changing any of them
// fails the issuance.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, member *AppUser, claims jwt.MapClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, member *AppUser, claims jwt.MapClaims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, member *AppUser, claims jwt.MapClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, member, claims)
}

// SubscriptionLookup returns the device ids of every active subscription
// plan of a member, keyed by plan
type SubscriptionLookup func(ctx context.Context, member *AppUser) (map[string][]string, error)

// SubscriptionClaimsDecorator writes one multi valued claim per active plan
func SubscriptionClaimsDecorator(lookup SubscriptionLookup) ClaimsDecorator {
	return ClaimsDecoratorFunc(func(ctx context.Context, member *AppUser, mc jwt.MapClaims) error {
		if lookup == nil {
			return nil
		}
		subs, err := lookup(ctx, member)
		if err != nil {
			return err
		}
		for plan, devices := range subs {
			if plan == "" {
				continue
			}
			mc[claims.SubscriptionClaim(plan)] = append([]string(nil), devices...)
		}
		return nil
	})
}

// ChainClaimsDecorators runs decorators in order, stopping on the first error
func ChainClaimsDecorators(decorators ...ClaimsDecorator) ClaimsDecorator {
	return ClaimsDecoratorFunc(func(ctx context.Context, member *AppUser, mc jwt.MapClaims) error {
		for _, d := range decorators {
			if d == nil {
				continue
			}
			if err := d.Decorate(ctx, member, mc); err != nil {
				return err
			}
		}
		return nil
	})
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *AppUser, jwt.MapClaims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}
