package jwtware

import (
	"strings"

	"github.com/goliatone/go-router"
)

// JWTExtractor pulls a raw token out of a request
type JWTExtractor func(c router.Context) (string, error)

// ExtractRawTokenFromContext returns the first token found by extractors
func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	err := ErrJWTMissingOrMalformed
	for _, extractor := range extractors {
		raw, extractErr := extractor(ctx)
		if raw != "" && extractErr == nil {
			return raw, nil
		}
		if extractErr != nil {
			err = extractErr
		}
	}
	return "", err
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// GetExtractors parses a lookup such as
// "header:Authorization,cookie:jwt,query:auth_token,param:token". Entries
// without a source name are ignored.
func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	var extractors []JWTExtractor
	for _, entry := range strings.Split(tokenLookup, ",") {
		source, name, ok := strings.Cut(strings.TrimSpace(entry), ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}

		switch strings.TrimSpace(source) {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

// jwtFromHeader reads "<scheme> <token>" from header
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c router.Context) (string, error) {
		if authScheme == "" {
			return "", ErrJWTMissingOrMalformed
		}
		value := c.GetString(header, "")
		l := len(authScheme)
		if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) {
			return strings.TrimSpace(value[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

func jwtFromQuery(param string) JWTExtractor {
	return nonEmpty(func(c router.Context) string { return c.Query(param, "") })
}

func jwtFromParam(param string) JWTExtractor {
	return nonEmpty(func(c router.Context) string { return c.Param(param) })
}

func jwtFromCookie(name string) JWTExtractor {
	return nonEmpty(func(c router.Context) string { return c.Cookies(name) })
}

func nonEmpty(read func(router.Context) string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := read(c)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
