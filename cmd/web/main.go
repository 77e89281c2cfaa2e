package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/reicrm/internal/config"
	"github.com/reicrm/internal/logger"
	"github.com/reicrm/internal/services"
	"github.com/reicrm/internal/web"
)

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	ctx := context.Background()
	svc, err := services.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialise services", zap.Error(err))
	}
	defer svc.Close()

	deps := web.Deps{
		DB:      svc.Conn.DB,
		Uploads: svc.Uploads,
		Editor:  svc.Editor,
	}
	if svc.Coordinates != nil {
		deps.Geocoder = svc.Coordinates
	}
	if svc.Audit != nil {
		deps.Audit = svc.Audit
	}

	log.Info("features",
		zap.Bool("geocoding", svc.Coordinates != nil),
		zap.Bool("geocode_on_upload", cfg.Features.GeocodeOnUpload),
		zap.Bool("audit", cfg.Features.AuditEnabled),
		zap.Bool("manual_override", cfg.Features.ManualOverrideEnabled))

	server := web.NewServer(cfg, deps, log)
	if err := server.Start(); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
