package auth

import "strings"

// Environment names the hosting environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// ParseEnvironment normalizes common spellings ("Dev", "PROD", ...). Unknown
// values map to production so privileged bypasses stay closed.
func ParseEnvironment(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "develop", "development", "local":
		return EnvDevelopment
	case "test", "testing":
		return EnvTest
	case "stage", "staging":
		return EnvStaging
	default:
		return EnvProduction
	}
}

// IsDevelopment is true for development and test environments
func (e Environment) IsDevelopment() bool {
	return e == EnvDevelopment || e == EnvTest
}

func (e Environment) String() string {
	return string(e)
}
