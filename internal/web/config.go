package web

import (
	"github.com/reicrm/internal/config"
	"github.com/reicrm/internal/web/handlers"
)

// HandlerConfig converts application config into the subset handlers use
func HandlerConfig(cfg *config.Config) *handlers.Config {
	hc := &handlers.Config{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	}
	hc.Features.ManualOverrideEnabled = cfg.Features.ManualOverrideEnabled
	return hc
}
