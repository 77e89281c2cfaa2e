package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/reicrm/internal/engine"
	"github.com/reicrm/internal/geocode"
	"github.com/reicrm/internal/store"
)

// PropertyUpdater applies combined property edits
type PropertyUpdater interface {
	UpdateProperty(ctx context.Context, propertyID int64, upd engine.PropertyUpdate) (*store.Property, error)
}

// CoordinateWriter overwrites stored coordinates
type CoordinateWriter interface {
	UpsertCoordinates(ctx context.Context, coord store.Coordinate) error
}

// PropertiesHandler handles property edit endpoints
type PropertiesHandler struct {
	Editor      PropertyUpdater
	Coordinates CoordinateWriter
	Config      *Config
	Logger      *zap.Logger
}

// UpdateProperty applies contact, note and field edits in one transaction
func (h *PropertiesHandler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid property ID", http.StatusBadRequest)
		return
	}

	var upd engine.PropertyUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	property, err := h.Editor.UpdateProperty(r.Context(), id, upd)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, property)
	case errors.Is(err, engine.ErrInvalidUpdate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Property not found", http.StatusNotFound)
	default:
		h.Logger.Error("property update failed", zap.Int64("property_id", id), zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
	}
}

// SetCoordinates manually overrides the coordinates of a property
func (h *PropertiesHandler) SetCoordinates(w http.ResponseWriter, r *http.Request) {
	if h.Config == nil || !h.Config.Features.ManualOverrideEnabled {
		http.Error(w, "Feature disabled", http.StatusForbidden)
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid property ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		Confidence string  `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		http.Error(w, "Coordinates out of range", http.StatusBadRequest)
		return
	}
	if req.Confidence == "" {
		req.Confidence = geocode.ConfidenceHigh
	}

	err = h.Coordinates.UpsertCoordinates(r.Context(), store.Coordinate{
		PropertyID: id,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Confidence: req.Confidence,
	})
	if err != nil {
		h.Logger.Error("coordinate override failed", zap.Int64("property_id", id), zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "coordinates_set",
		"propertyId": id,
		"latitude":   req.Latitude,
		"longitude":  req.Longitude,
		"timestamp":  time.Now(),
	})
}
