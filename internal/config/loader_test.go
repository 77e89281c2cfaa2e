package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearPGEnv(t *testing.T) {
	for _, key := range []string{"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearPGEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
database:
  postgres:
    host: db.internal
    database: crm
    user: app
  redis:
    address: localhost:6379
geocoding:
  api_key: abc
  batch_delay: 250
matching:
  merge_floor: 0.97
logging:
  level: debug
  format: console
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "host=db.internal port=5432 user=app password= dbname=crm sslmode=disable", cfg.Database.Postgres.GetDSN())
	assert.True(t, cfg.Database.Redis.Enabled())
	assert.True(t, cfg.Geocoding.Enabled())
	assert.Equal(t, 250*time.Millisecond, GetDuration(cfg.Geocoding.BatchDelay))
	assert.Equal(t, 0.97, cfg.Matching.MergeFloor)
	assert.Equal(t, 0.7, cfg.Matching.FuzzyFloor)
	assert.Equal(t, 0.8, cfg.Matching.NameFloor)
	assert.Equal(t, 0.9, cfg.Matching.PhoneMatchScore)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Features.GeocodeOnUpload)
}

func TestLoadFromFileEnvOverride(t *testing.T) {
	clearPGEnv(t)
	t.Setenv("DATABASE_POSTGRES_HOST", "from-env")
	t.Setenv("MATCHING_FUZZY_FLOOR", "0.75")
	t.Setenv("FEATURES_AUDIT_ENABLED", "false")
	t.Setenv("PGDATABASE", "pgdb")

	cfg, err := LoadFromFile(writeConfig(t, "server:\n  port: 8000\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Postgres.Host)
	assert.Equal(t, "pgdb", cfg.Database.Postgres.Database)
	assert.Equal(t, 0.75, cfg.Matching.FuzzyFloor)
	assert.False(t, cfg.Features.AuditEnabled)
	assert.False(t, cfg.Database.Redis.Enabled())
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad provider", "geocoding:\n  provider: bing\n", "geocoding.provider"},
		{"threshold out of range", "matching:\n  name_floor: 1.5\n", "matching.name_floor"},
		{"merge below fuzzy", "matching:\n  merge_floor: 0.5\n", "matching.merge_floor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")

	assert.Equal(t, "value", GetEnv("TEST_STR", "x"))
	assert.Equal(t, "x", GetEnv("TEST_UNSET", "x"))
	assert.Equal(t, 42, GetEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("TEST_BAD_INT", 1))
}
