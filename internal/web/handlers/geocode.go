package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/reicrm/internal/geocode"
)

const defaultBatchLimit = 50

// BatchGeocoder geocodes properties in bulk
type BatchGeocoder interface {
	GeocodeByIDs(ctx context.Context, ids []int64) (geocode.BatchResult, error)
	GeocodeMissing(ctx context.Context, limit int) (geocode.BatchResult, error)
}

// GeocodeHandler handles geocoding endpoints
type GeocodeHandler struct {
	Coordinates BatchGeocoder
	Logger      *zap.Logger
}

// BatchRequest selects properties to geocode. Without ids, up to Limit
// properties lacking coordinates are taken.
type BatchRequest struct {
	PropertyIDs []int64 `json:"propertyIds"`
	Limit       int     `json:"limit"`
}

// Batch geocodes a set of properties
func (h *GeocodeHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if h.Coordinates == nil {
		http.Error(w, "Geocoding disabled", http.StatusServiceUnavailable)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := context.WithoutCancel(r.Context())

	var result geocode.BatchResult
	var err error
	if len(req.PropertyIDs) > 0 {
		result, err = h.Coordinates.GeocodeByIDs(ctx, req.PropertyIDs)
	} else {
		limit := req.Limit
		if limit <= 0 {
			limit = parseIntParam(r.URL.Query().Get("limit"), defaultBatchLimit)
		}
		result, err = h.Coordinates.GeocodeMissing(ctx, limit)
	}
	if err != nil {
		h.Logger.Error("batch geocoding failed", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
