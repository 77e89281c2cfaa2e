package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/reicrm/internal/config"
	"github.com/reicrm/internal/geocode"
	"github.com/reicrm/internal/store"
)

type stubGeocoder struct {
	upserts int
}

func (s *stubGeocoder) GeocodeByIDs(ctx context.Context, ids []int64) (geocode.BatchResult, error) {
	return geocode.BatchResult{Success: len(ids), Errors: []string{}}, nil
}

func (s *stubGeocoder) GeocodeMissing(ctx context.Context, limit int) (geocode.BatchResult, error) {
	return geocode.BatchResult{Errors: []string{}}, nil
}

func (s *stubGeocoder) UpsertCoordinates(ctx context.Context, c store.Coordinate) error {
	s.upserts++
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.MaxUploadMB = 1
	cfg.Server.AllowedOrigin = "*"
	return cfg
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxUploadMB = 5
	cfg.Features.ManualOverrideEnabled = true

	hc := HandlerConfig(cfg)
	assert.Equal(t, int64(5<<20), hc.MaxUploadBytes)
	assert.True(t, hc.Features.ManualOverrideEnabled)
}

func TestRoutes(t *testing.T) {
	geo := &stubGeocoder{}
	s := NewServer(testConfig(), Deps{Geocoder: geo}, zap.NewNop())

	rec := serve(s, http.MethodPost, "/api/uploads/mapping", `{"headers": ["Zip"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(s, http.MethodPost, "/api/geocode/batch", `{"propertyIds": [1]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodOptions, "/api/uploads", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCoordinateOverrideRoute(t *testing.T) {
	geo := &stubGeocoder{}
	body := `{"latitude": 47.6, "longitude": -122.3}`

	s := NewServer(testConfig(), Deps{Geocoder: geo}, zap.NewNop())
	rec := serve(s, http.MethodPut, "/api/properties/3/coordinates", body)
	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Zero(t, geo.upserts)

	cfg := testConfig()
	cfg.Features.ManualOverrideEnabled = true
	s = NewServer(cfg, Deps{Geocoder: geo}, zap.NewNop())
	rec = serve(s, http.MethodPut, "/api/properties/3/coordinates", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, geo.upserts)
}
