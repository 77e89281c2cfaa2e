package web

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reicrm/internal/config"
	"github.com/reicrm/internal/web/handlers"
	"github.com/reicrm/internal/web/middleware"
)

// Deps are the services the HTTP API is built on. Geocoder and Audit may be
// nil when those features are off.
type Deps struct {
	DB       *sql.DB
	Uploads  handlers.UploadService
	Editor   handlers.PropertyUpdater
	Geocoder interface {
		handlers.BatchGeocoder
		handlers.CoordinateWriter
	}
	Audit handlers.DecisionHistory
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	httpServer *http.Server
	router     *mux.Router
	logger     *zap.Logger
}

// NewServer creates a new web server instance
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute, // uploads run synchronously
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	handlerConfig := HandlerConfig(s.config)

	apiHandler := &handlers.APIHandler{DB: s.deps.DB, Config: handlerConfig}
	uploadsHandler := &handlers.UploadsHandler{
		Uploads: s.deps.Uploads,
		Audit:   s.deps.Audit,
		Config:  handlerConfig,
		Logger:  s.logger,
	}
	propertiesHandler := &handlers.PropertiesHandler{
		Editor: s.deps.Editor,
		Config: handlerConfig,
		Logger: s.logger,
	}
	geocodeHandler := &handlers.GeocodeHandler{Logger: s.logger}
	if s.deps.Geocoder != nil {
		propertiesHandler.Coordinates = s.deps.Geocoder
		geocodeHandler.Coordinates = s.deps.Geocoder
	}

	// preflight requests only need the CORS headers
	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", apiHandler.Health).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/uploads", uploadsHandler.Upload).Methods("POST")
	api.HandleFunc("/uploads/headers", uploadsHandler.Headers).Methods("POST")
	api.HandleFunc("/uploads/mapping", uploadsHandler.SuggestMapping).Methods("POST")
	api.HandleFunc("/uploads/{id}/decisions", uploadsHandler.Decisions).Methods("GET")

	api.HandleFunc("/properties/{id:[0-9]+}", propertiesHandler.UpdateProperty).Methods("PUT")
	if s.config.Features.ManualOverrideEnabled && s.deps.Geocoder != nil {
		api.HandleFunc("/properties/{id:[0-9]+}/coordinates", propertiesHandler.SetCoordinates).Methods("PUT")
	}

	api.HandleFunc("/geocode/batch", geocodeHandler.Batch).Methods("POST")
	api.HandleFunc("/stats", apiHandler.GetStats).Methods("GET")

	if dir := s.config.Server.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(dir)))
		}
	}

	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigin))
	s.router.Use(middleware.RequestLogging(s.logger))
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("server stopped")
	return nil
}
