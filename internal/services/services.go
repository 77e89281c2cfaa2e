package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reicrm/internal/audit"
	"github.com/reicrm/internal/config"
	"github.com/reicrm/internal/db"
	"github.com/reicrm/internal/engine"
	"github.com/reicrm/internal/geocode"
	import_pkg "github.com/reicrm/internal/import"
	"github.com/reicrm/internal/store"
)

// Services is the fully wired application shared by the web server and CLI
type Services struct {
	Conn        *db.Connection
	Store       *store.PostgresStore
	Uploads     *import_pkg.UploadProcessor
	Importer    *import_pkg.FileImporter
	Editor      *engine.PropertyEditor
	Coordinates *geocode.CoordinateService // nil when geocoding is disabled
	Audit       *audit.Tracker             // nil when auditing is disabled

	redis  *redis.Client
	logger *zap.Logger
}

// New connects to PostgreSQL (and Redis when configured) and builds every
// service from cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	conn, err := db.NewConnection(ctx, cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Conn:   conn,
		Store:  store.NewPostgresStore(conn.DB),
		logger: logger,
	}

	owners := engine.NewOwnerDeduplicator(s.Store, cfg.Matching, logger)
	properties := engine.NewPropertyReconciler(s.Store, cfg.Matching, logger)
	s.Editor = engine.NewPropertyEditor(s.Store, logger)

	var opts []import_pkg.Option

	if cfg.Geocoding.Enabled() {
		provider, err := s.buildProvider(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Coordinates = geocode.NewCoordinateService(s.Store, provider,
			config.GetDuration(cfg.Geocoding.BatchDelay), logger)
		if cfg.Features.GeocodeOnUpload {
			opts = append(opts, import_pkg.WithGeocoder(s.Coordinates))
		}
	} else {
		logger.Info("geocoding disabled", zap.String("provider", cfg.Geocoding.Provider))
	}

	if cfg.Features.AuditEnabled {
		s.Audit = audit.NewTracker(conn.DB, logger)
		opts = append(opts, import_pkg.WithAudit(s.Audit))
	}

	s.Uploads = import_pkg.NewUploadProcessor(owners, properties, logger, opts...)
	s.Importer = import_pkg.NewFileImporter(s.Uploads, logger)
	return s, nil
}

func (s *Services) buildProvider(ctx context.Context, cfg *config.Config) (geocode.Provider, error) {
	var provider geocode.Provider = geocode.NewGoogleProvider(geocode.GoogleConfig{
		BaseURL:    cfg.Geocoding.BaseURL,
		APIKey:     cfg.Geocoding.APIKey,
		Timeout:    config.GetDuration(cfg.Geocoding.Timeout),
		RetryCount: cfg.Geocoding.RetryCount,
	}, s.logger)

	if !cfg.Database.Redis.Enabled() {
		return provider, nil
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Database.Redis.Address,
		Password: cfg.Database.Redis.Password,
		DB:       cfg.Database.Redis.DB,
	})
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Database.Redis.Address, err)
	}

	ttl := time.Duration(cfg.Database.Redis.CacheTTL) * time.Second
	s.logger.Info("geocode cache enabled", zap.String("redis", cfg.Database.Redis.Address), zap.Duration("ttl", ttl))
	return geocode.NewCachedProvider(provider, s.redis, ttl, s.logger), nil
}

// Close releases the database and Redis connections
func (s *Services) Close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	return s.Conn.Close()
}
