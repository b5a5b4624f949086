package auth_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	auth "github.com/goliatone/go-teamauth"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEAMAUTH_SIGNING_KEY", "s3cret")

	cfg, err := auth.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, auth.EnvProduction, cfg.GetEnvironment())
	assert.Equal(t, "s3cret", cfg.GetSigningKey())
	assert.Equal(t, "teamauth", cfg.GetIssuer())
	assert.Empty(t, cfg.GetAudience())
	assert.Equal(t, 15*time.Minute, cfg.GetAccessTokenLifetime())
	assert.Equal(t, 7*24*time.Hour, cfg.GetRefreshTokenLifetime())
	assert.Equal(t, auth.HalfLife, cfg.GetRotationPolicy())
	assert.Equal(t, auth.DefaultTeamCapacity, cfg.GetTeamCapacity())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TEAMAUTH_SIGNING_KEY", "s3cret")
	t.Setenv("TEAMAUTH_ENVIRONMENT", "dev")
	t.Setenv("TEAMAUTH_AUDIENCE", "api,admin")
	t.Setenv("TEAMAUTH_ACCESS_TOKEN_LIFETIME", "5m")
	t.Setenv("TEAMAUTH_ROTATION_POLICY", "three_quarter_life")
	t.Setenv("TEAMAUTH_TEAM_CAPACITY", "8")
	t.Setenv("TEAMAUTH_KEY_ID", "2026-01")

	cfg, err := auth.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, auth.EnvDevelopment, cfg.GetEnvironment())
	assert.Equal(t, []string{"api", "admin"}, cfg.GetAudience())
	assert.Equal(t, 5*time.Minute, cfg.GetAccessTokenLifetime())
	assert.Equal(t, auth.ThreeQuarterLife, cfg.GetRotationPolicy())
	assert.Equal(t, 8, cfg.GetTeamCapacity())
	assert.Equal(t, "2026-01", cfg.GetKeyID())
}

func TestLoadConfigKeyMaterial(t *testing.T) {
	key := testRSAKey(t, 1)

	t.Run("inline with escaped newlines", func(t *testing.T) {
		pem := publicPEM(t, &key.PublicKey)
		escaped := ""
		for _, r := range pem {
			if r == '\n' {
				escaped += `\n`
				continue
			}
			escaped += string(r)
		}
		t.Setenv("TEAMAUTH_PUBLIC_KEY", escaped)

		cfg, err := auth.LoadConfig()
		require.NoError(t, err)
		assert.Contains(t, cfg.GetPublicKey(), "\n")

		_, err = auth.ParseRSAPublicKey(cfg.GetPublicKey())
		assert.NoError(t, err)
	})

	t.Run("from files", func(t *testing.T) {
		dir := t.TempDir()
		privPath := filepath.Join(dir, "private.pem")
		pubPath := filepath.Join(dir, "public.pem")
		require.NoError(t, os.WriteFile(privPath, []byte(privatePEM(key)), 0o600))
		require.NoError(t, os.WriteFile(pubPath, []byte(publicPEM(t, &key.PublicKey)), 0o600))

		t.Setenv("TEAMAUTH_PRIVATE_KEY_FILE", privPath)
		t.Setenv("TEAMAUTH_PUBLIC_KEY_FILE", pubPath)

		cfg, err := auth.LoadConfig()
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.GetPrivateKey())

		ts, err := auth.NewTokenServiceFromConfig(cfg)
		require.NoError(t, err)
		_, ok := ts.KeyRing().Current().SigningKey()
		assert.True(t, ok)
	})

	t.Run("unreadable file", func(t *testing.T) {
		t.Setenv("TEAMAUTH_PUBLIC_KEY_FILE", filepath.Join(t.TempDir(), "missing.pem"))

		_, err := auth.LoadConfig()
		assert.ErrorIs(t, err, auth.ErrInvalidConfiguration)
	})
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("no key material", func(t *testing.T) {
		_, err := auth.LoadConfig()
		require.ErrorIs(t, err, auth.ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), "either a signing key or a public key is required")
	})

	t.Run("unknown rotation policy", func(t *testing.T) {
		t.Setenv("TEAMAUTH_SIGNING_KEY", "s3cret")
		t.Setenv("TEAMAUTH_ROTATION_POLICY", "always")

		_, err := auth.LoadConfig()
		assert.ErrorIs(t, err, auth.ErrInvalidConfiguration)
	})

	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("TEAMAUTH_SIGNING_KEY", "s3cret")
		t.Setenv("TEAMAUTH_REFRESH_TOKEN_LIFETIME", "a week")

		_, err := auth.LoadConfig()
		assert.ErrorIs(t, err, auth.ErrInvalidConfiguration)
	})

	t.Run("custom prefix", func(t *testing.T) {
		t.Setenv("IDENTITY_SIGNING_KEY", "s3cret")

		cfg, err := auth.LoadConfigWithPrefix("IDENTITY")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", cfg.GetSigningKey())
	})
}

func TestOpenDB(t *testing.T) {
	_, err := auth.OpenDB(auth.DriverSQLite, "")
	assert.ErrorIs(t, err, auth.ErrInvalidConfiguration)

	_, err = auth.OpenDB("oracle", "dsn")
	assert.ErrorIs(t, err, auth.ErrInvalidConfiguration)

	db, err := auth.OpenDB(auth.DriverPostgres, "postgres://localhost/teamauth?sslmode=disable")
	require.NoError(t, err, "opening does not connect")
	assert.Equal(t, dialect.PG, db.Dialect().Name())
	_ = db.Close()
}
