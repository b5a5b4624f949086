package auth

import "github.com/goliatone/go-teamauth/claims"

// TokenValidator verifies a raw access token and returns its claim set
type TokenValidator interface {
	Validate(tokenString string) (claims.Set, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (claims.Set, error)

func (f TokenValidatorFunc) Validate(tokenString string) (claims.Set, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// MultiTokenValidator accepts tokens from any of several issuers, for
// example while a deployment migrates between key configurations. A
// malformed result moves on to the next validator; any other failure, such
// as an expired token, is final.
type MultiTokenValidator struct {
	chain []TokenValidator
}

func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	m := &MultiTokenValidator{}
	for _, v := range validators {
		if v != nil {
			m.chain = append(m.chain, v)
		}
	}
	return m
}

func (m *MultiTokenValidator) Validate(tokenString string) (claims.Set, error) {
	var err error = ErrTokenMalformed
	for _, v := range m.chain {
		set, verr := v.Validate(tokenString)
		switch {
		case verr == nil:
			return set, nil
		case !IsMalformedError(verr):
			return nil, verr
		}
		err = verr
	}
	return nil, err
}

// RequireTeamClaims wraps next so that only tokens naming a subject and a
// team of a known type are accepted. Missing claims are reported as
// malformed tokens with the offending claim in the metadata.
func RequireTeamClaims(next TokenValidator) TokenValidator {
	return TokenValidatorFunc(func(tokenString string) (claims.Set, error) {
		if next == nil {
			return nil, ErrTokenMalformed
		}
		set, err := next.Validate(tokenString)
		if err != nil {
			return nil, err
		}

		for _, name := range []string{claims.Subject, claims.TeamID} {
			if v, ok := set.First(name); !ok || v == "" {
				return nil, failure(ErrTokenMalformed, "token has no "+name+" claim", map[string]any{
					"claim": name,
				})
			}
		}

		raw, _ := set.First(claims.TeamType)
		if _, ok := ParseTeamType(raw); !ok {
			return nil, failure(ErrTokenMalformed, "token carries an unknown team type", map[string]any{
				"claim": claims.TeamType,
				"value": raw,
			})
		}
		return set, nil
	})
}
