package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/reicrm/internal/match"
)

// Load reads .env, an optional config.yaml and environment overrides such
// as DATABASE_POSTGRES_HOST
func Load() (*Config, error) {
	LoadEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	LoadEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func build(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromPGEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "reicrm")
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.max_connections", 20)
	v.SetDefault("database.postgres.max_idle", 10)
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.redis.cache_ttl", 30*24*3600)

	v.SetDefault("geocoding.provider", ProviderGoogle)
	v.SetDefault("geocoding.base_url", "https://maps.googleapis.com")
	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("geocoding.timeout", 10000)
	v.SetDefault("geocoding.batch_delay", 100)
	v.SetDefault("geocoding.retry_count", 2)

	v.SetDefault("matching.fuzzy_floor", match.DefaultFuzzyFloor)
	v.SetDefault("matching.name_floor", match.DefaultNameFloor)
	v.SetDefault("matching.merge_floor", match.DefaultMergeFloor)
	v.SetDefault("matching.phone_match_score", match.DefaultPhoneMatchScore)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("features.geocode_on_upload", true)
	v.SetDefault("features.audit_enabled", true)
	v.SetDefault("features.manual_override_enabled", false)
}

// applyDefaults fills values a config file may have left at zero
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 10
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Geocoding.Provider == "" {
		cfg.Geocoding.Provider = ProviderGoogle
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	defaults := match.DefaultThresholds()
	if cfg.Matching.FuzzyFloor == 0 {
		cfg.Matching.FuzzyFloor = defaults.FuzzyFloor
	}
	if cfg.Matching.NameFloor == 0 {
		cfg.Matching.NameFloor = defaults.NameFloor
	}
	if cfg.Matching.MergeFloor == 0 {
		cfg.Matching.MergeFloor = defaults.MergeFloor
	}
	if cfg.Matching.PhoneMatchScore == 0 {
		cfg.Matching.PhoneMatchScore = defaults.PhoneMatchScore
	}
}

// overrideFromPGEnv honours the standard libpq variables
func overrideFromPGEnv(cfg *Config) {
	pg := &cfg.Database.Postgres
	pg.Host = GetEnv("PGHOST", pg.Host)
	pg.Port = GetEnvInt("PGPORT", pg.Port)
	pg.User = GetEnv("PGUSER", pg.User)
	pg.Password = GetEnv("PGPASSWORD", pg.Password)
	pg.Database = GetEnv("PGDATABASE", pg.Database)
	pg.SSLMode = GetEnv("PGSSLMODE", pg.SSLMode)

	if cfg.Geocoding.APIKey == "" {
		cfg.Geocoding.APIKey = GetEnv("GOOGLE_MAPS_API_KEY", "")
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}

	switch cfg.Geocoding.Provider {
	case ProviderGoogle, ProviderNone:
	default:
		return fmt.Errorf("geocoding.provider must be %q or %q, got %q", ProviderGoogle, ProviderNone, cfg.Geocoding.Provider)
	}

	m := cfg.Matching
	for name, val := range map[string]float64{
		"matching.fuzzy_floor":       m.FuzzyFloor,
		"matching.name_floor":        m.NameFloor,
		"matching.merge_floor":       m.MergeFloor,
		"matching.phone_match_score": m.PhoneMatchScore,
	} {
		if val < 0 || val > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, val)
		}
	}
	if m.MergeFloor < m.FuzzyFloor {
		return fmt.Errorf("matching.merge_floor (%v) must not be below matching.fuzzy_floor (%v)", m.MergeFloor, m.FuzzyFloor)
	}
	return nil
}

// findProjectRoot walks up from the working directory looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
