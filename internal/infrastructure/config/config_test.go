package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv removes all CARDSTASH_ environment variables and returns a map of
// the originals so tests can restore them.
func clearEnv(t *testing.T) map[string]string {
	t.Helper()
	original := make(map[string]string)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "CARDSTASH_") {
			parts := strings.SplitN(kv, "=", 2)
			original[parts[0]] = parts[1]
			os.Unsetenv(parts[0])
		}
	}
	return original
}

func restoreEnv(original map[string]string) {
	for k, v := range original {
		os.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	original := clearEnv(t)
	defer restoreEnv(original)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cardstash-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "cardstash", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins)

	assert.Equal(t, "awssm", cfg.Vault.Backend)
	assert.Equal(t, "us-east-1", cfg.Vault.Region)
	assert.Equal(t, "cardstash/vault", cfg.Vault.SecretPrefix)

	assert.Equal(t, "http://localhost:4000", cfg.Automation.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Automation.ProbeTimeout)

	assert.Equal(t, "https://api.ebay.com", cfg.Platforms.Ebay.BaseURL)
	assert.Equal(t, "EBAY_US", cfg.Platforms.Ebay.MarketplaceID)
	assert.Equal(t, "https://api-prod.buysportscards.com", cfg.Platforms.BuySportsCards.BaseURL)
	assert.Equal(t, 30, cfg.Platforms.Sportlots.TimeoutSeconds)
	assert.Equal(t, "https://myslabs.com/api/v2", cfg.Platforms.MySlabs.BaseURL)
	assert.Equal(t, "https://mycardpost.com", cfg.Platforms.MyCardPost.BaseURL)

	assert.Equal(t, 5*time.Minute, cfg.Taxonomy.L1TTL)
	assert.Equal(t, time.Hour, cfg.Taxonomy.L2TTL)
	assert.Equal(t, 1000, cfg.Taxonomy.L1MaxSize)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
}

func TestLoad_EnvOverrides(t *testing.T) {
	original := clearEnv(t)
	defer restoreEnv(original)

	os.Setenv("CARDSTASH_APP_PORT", "9090")
	os.Setenv("CARDSTASH_DATABASE_HOST", "db.internal")
	os.Setenv("CARDSTASH_DATABASE_PASSWORD", "s3cret")
	os.Setenv("CARDSTASH_VAULT_BACKEND", "memory")
	os.Setenv("CARDSTASH_PLATFORMS_EBAY_APP_TOKEN", "tok-123")
	os.Setenv("CARDSTASH_TAXONOMY_L1_TTL", "90s")
	defer func() {
		os.Unsetenv("CARDSTASH_APP_PORT")
		os.Unsetenv("CARDSTASH_DATABASE_HOST")
		os.Unsetenv("CARDSTASH_DATABASE_PASSWORD")
		os.Unsetenv("CARDSTASH_VAULT_BACKEND")
		os.Unsetenv("CARDSTASH_PLATFORMS_EBAY_APP_TOKEN")
		os.Unsetenv("CARDSTASH_TAXONOMY_L1_TTL")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "memory", cfg.Vault.Backend)
	assert.Equal(t, "tok-123", cfg.Platforms.Ebay.AppToken)
	assert.Equal(t, 90*time.Second, cfg.Taxonomy.L1TTL)
}

func TestLoad_InvalidVaultBackend(t *testing.T) {
	original := clearEnv(t)
	defer restoreEnv(original)

	os.Setenv("CARDSTASH_VAULT_BACKEND", "hashicorp")
	defer os.Unsetenv("CARDSTASH_VAULT_BACKEND")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault.backend")
}

func TestLoad_S3BackendRequiresBucketAndKey(t *testing.T) {
	original := clearEnv(t)
	defer restoreEnv(original)

	os.Setenv("CARDSTASH_VAULT_BACKEND", "s3")
	defer os.Unsetenv("CARDSTASH_VAULT_BACKEND")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault.bucket")

	os.Setenv("CARDSTASH_VAULT_BUCKET", "cardstash-secrets")
	defer os.Unsetenv("CARDSTASH_VAULT_BUCKET")

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault.encryption_key")
}

func TestLoad_ProductionValidation(t *testing.T) {
	original := clearEnv(t)
	defer restoreEnv(original)

	os.Setenv("CARDSTASH_APP_ENV", "production")
	defer os.Unsetenv("CARDSTASH_APP_ENV")

	t.Run("missing jwt secret", func(t *testing.T) {
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret")
	})

	os.Setenv("CARDSTASH_JWT_SECRET", strings.Repeat("x", 32))
	defer os.Unsetenv("CARDSTASH_JWT_SECRET")

	t.Run("missing database password", func(t *testing.T) {
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})

	os.Setenv("CARDSTASH_DATABASE_PASSWORD", "prod-pass")
	defer os.Unsetenv("CARDSTASH_DATABASE_PASSWORD")

	t.Run("sslmode disable rejected", func(t *testing.T) {
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")
	})

	os.Setenv("CARDSTASH_DATABASE_SSLMODE", "require")
	defer os.Unsetenv("CARDSTASH_DATABASE_SSLMODE")

	t.Run("memory vault rejected", func(t *testing.T) {
		os.Setenv("CARDSTASH_VAULT_BACKEND", "memory")
		defer os.Unsetenv("CARDSTASH_VAULT_BACKEND")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory")
	})

	t.Run("valid production config", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "p@ss/word",
		DBName:   "cardstash",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "sslmode=disable")
	// Special characters get URL-escaped
	assert.NotContains(t, dsn, "p@ss/word")
}
