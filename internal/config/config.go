package config

import (
	"fmt"
	"time"

	"github.com/reicrm/internal/match"
)

// Config is the application configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Geocoding GeocodingConfig  `mapstructure:"geocoding"`
	Matching  match.Thresholds `mapstructure:"matching"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Features  FeaturesConfig   `mapstructure:"features"`
}

type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`
	StaticDir     string `mapstructure:"static_dir"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig is optional; without an address the geocode cache is off
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// GeocodingConfig configures the external geocoding provider. Provider
// "none" disables geocoding.
type GeocodingConfig struct {
	Provider   string `mapstructure:"provider"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"`     // milliseconds
	BatchDelay int    `mapstructure:"batch_delay"` // milliseconds
	RetryCount int    `mapstructure:"retry_count"`
}

// Enabled reports whether geocoding requests can be made
func (g GeocodingConfig) Enabled() bool {
	return g.Provider != ProviderNone && g.APIKey != ""
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type FeaturesConfig struct {
	GeocodeOnUpload       bool `mapstructure:"geocode_on_upload"`
	AuditEnabled          bool `mapstructure:"audit_enabled"`
	ManualOverrideEnabled bool `mapstructure:"manual_override_enabled"`
}

// Geocoding providers
const (
	ProviderGoogle = "google"
	ProviderNone   = "none"
)

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
