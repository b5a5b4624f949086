package auth

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun"
)

// EnvPrefix is the environment variable prefix read by LoadConfig
const EnvPrefix = "TEAMAUTH"

// DefaultTeamCapacity applies to teams without an explicit capacity
const DefaultTeamCapacity = 50

// EnvConfig is the Config loaded from environment variables, e.g.
// TEAMAUTH_SIGNING_KEY or TEAMAUTH_PRIVATE_KEY_FILE.
type EnvConfig struct {
	Environment          string        `envconfig:"ENVIRONMENT" default:"production"`
	SigningKey           string        `envconfig:"SIGNING_KEY"`
	PublicKey            string        `envconfig:"PUBLIC_KEY"`
	PublicKeyFile        string        `envconfig:"PUBLIC_KEY_FILE"`
	PrivateKey           string        `envconfig:"PRIVATE_KEY"`
	PrivateKeyFile       string        `envconfig:"PRIVATE_KEY_FILE"`
	KeyID                string        `envconfig:"KEY_ID"`
	Issuer               string        `envconfig:"ISSUER" default:"teamauth"`
	Audience             []string      `envconfig:"AUDIENCE"`
	AccessTokenLifetime  time.Duration `envconfig:"ACCESS_TOKEN_LIFETIME" default:"15m"`
	RefreshTokenLifetime time.Duration `envconfig:"REFRESH_TOKEN_LIFETIME" default:"168h"`
	RotationPolicy       string        `envconfig:"ROTATION_POLICY" default:"half_life"`
	TeamCapacity         int           `envconfig:"TEAM_CAPACITY" default:"50"`
	DatabaseDriver       string        `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseDSN          string        `envconfig:"DATABASE_DSN"`

	policy RotationPolicy
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads the configuration from the environment. Key material
// may come inline (with literal \n sequences) or from the _FILE variants.
func LoadConfig() (*EnvConfig, error) {
	return LoadConfigWithPrefix(EnvPrefix)
}

func LoadConfigWithPrefix(prefix string) (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, failure(ErrInvalidConfiguration, err.Error(), nil)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *EnvConfig) resolve() error {
	var err error
	if c.PublicKey, err = keyFromEnv(c.PublicKey, c.PublicKeyFile, "public"); err != nil {
		return err
	}
	if c.PrivateKey, err = keyFromEnv(c.PrivateKey, c.PrivateKeyFile, "private"); err != nil {
		return err
	}

	if c.policy, err = ParseRotationPolicy(c.RotationPolicy); err != nil {
		return err
	}

	if c.SigningKey == "" && c.PublicKey == "" {
		return failure(ErrInvalidConfiguration, "either a signing key or a public key is required", nil)
	}

	if c.AccessTokenLifetime <= 0 || c.RefreshTokenLifetime <= 0 {
		return failure(ErrInvalidConfiguration, "token lifetimes must be positive", nil)
	}

	if c.TeamCapacity <= 0 {
		c.TeamCapacity = DefaultTeamCapacity
	}

	return nil
}

func keyFromEnv(value, path, class string) (string, error) {
	if value == "" && path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", failure(ErrInvalidConfiguration, class+" key file could not be read", map[string]any{
				"path": path,
			})
		}
		value = string(raw)
	}
	return strings.TrimSpace(strings.ReplaceAll(value, `\n`, "\n")), nil
}

func (c *EnvConfig) GetEnvironment() Environment { return ParseEnvironment(c.Environment) }
func (c *EnvConfig) GetSigningKey() string       { return c.SigningKey }
func (c *EnvConfig) GetPublicKey() string        { return c.PublicKey }
func (c *EnvConfig) GetPrivateKey() string       { return c.PrivateKey }
func (c *EnvConfig) GetKeyID() string            { return c.KeyID }
func (c *EnvConfig) GetIssuer() string           { return c.Issuer }
func (c *EnvConfig) GetAudience() []string       { return append([]string(nil), c.Audience...) }

func (c *EnvConfig) GetAccessTokenLifetime() time.Duration  { return c.AccessTokenLifetime }
func (c *EnvConfig) GetRefreshTokenLifetime() time.Duration { return c.RefreshTokenLifetime }

func (c *EnvConfig) GetRotationPolicy() RotationPolicy {
	if c.policy == "" {
		return HalfLife
	}
	return c.policy
}

func (c *EnvConfig) GetTeamCapacity() int {
	if c.TeamCapacity <= 0 {
		return DefaultTeamCapacity
	}
	return c.TeamCapacity
}

// OpenDatabase opens the configured database
func (c *EnvConfig) OpenDatabase() (*bun.DB, error) {
	return OpenDB(c.DatabaseDriver, c.DatabaseDSN)
}
