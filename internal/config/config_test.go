package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: "9090"
  environment: production
postgres:
  host: db.internal
  port: 5432
  user: mealforge
  password: filepass
  dbname: mealforge
redis:
  host: cache.internal
auth:
  jwt_secret: file-secret
quota:
  tiers:
    free:
      daily_limit: 10
      window_limit: 5
      window_seconds: 60
    active:
      daily_limit: 100
      window_limit: 20
      window_seconds: 60
      features: [image_analysis]
    growth:
      daily_limit: 500
      window_limit: 60
      window_seconds: 60
      caps:
        search_results: 25
    thrive:
      daily_limit: -1
      window_limit: -1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.Postgres.DSN(), "host=db.internal")
	assert.Contains(t, cfg.Postgres.DSN(), "sslmode=disable")

	require.Len(t, cfg.Quota.Tiers, 4)
	assert.Equal(t, 10, cfg.Quota.Tiers["free"].DailyLimit)
	assert.Equal(t, []string{"image_analysis"}, cfg.Quota.Tiers["active"].Features)
	assert.Equal(t, 25, cfg.Quota.Tiers["growth"].Caps["search_results"])
	assert.Equal(t, -1, cfg.Quota.Tiers["thrive"].DailyLimit)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
auth:
  jwt_secret: s
quota:
  tiers:
    free:
      daily_limit: 1
      window_limit: 1
      window_seconds: 60
`))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
	assert.Equal(t, 24, cfg.Auth.JWTExpiryHours)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("POSTGRES_PASSWORD", "env-pass")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-pass", cfg.Postgres.Password)
}

func TestLoad_RequiresTiersAndSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(writeConfig(t, `
auth:
  jwt_secret: s
`))
	assert.ErrorContains(t, err, "quota tiers")

	_, err = Load(writeConfig(t, `
quota:
  tiers:
    free:
      daily_limit: 1
      window_limit: 1
      window_seconds: 60
`))
	assert.ErrorContains(t, err, "jwt secret")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.ErrorContains(t, err, "failed to parse config")
}
