package geocode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reicrm/internal/metrics"
	"github.com/reicrm/internal/store"
)

// DefaultBatchDelay paces provider calls during batch geocoding
const DefaultBatchDelay = 100 * time.Millisecond

// Store is the persistence used by the coordinate service
type Store interface {
	store.CoordinateStore
	ListProperties(ctx context.Context, ids []int64) ([]store.Property, error)
	ListPropertiesWithoutCoordinates(ctx context.Context, limit int) ([]store.Property, error)
}

// BatchResult summarizes a batch geocoding run
type BatchResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// CoordinateService obtains coordinates for properties, storing every
// successful lookup so a property is geocoded at most once
type CoordinateService struct {
	store      Store
	provider   Provider
	batchDelay time.Duration
	logger     *zap.Logger
}

// NewCoordinateService creates a coordinate service around a provider
func NewCoordinateService(s Store, provider Provider, batchDelay time.Duration, logger *zap.Logger) *CoordinateService {
	return &CoordinateService{
		store:      s,
		provider:   provider,
		batchDelay: batchDelay,
		logger:     logger,
	}
}

// GetOrCreateCoordinates returns the stored coordinate of a property, or
// geocodes and stores one. Stored coordinates are returned as-is even when
// the address has since changed. A provider miss or failure returns nil
// without error.
func (s *CoordinateService) GetOrCreateCoordinates(ctx context.Context, propertyID int64, street, city string, state, zip *string) (*store.Coordinate, error) {
	existing, err := s.store.GetCoordinate(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load coordinates for property %d: %w", propertyID, err)
	}
	if existing != nil {
		metrics.GeocodeRequests.WithLabelValues(metrics.GeocodeStored).Inc()
		return existing, nil
	}

	result, err := s.provider.GeocodeProperty(ctx, street, city, state, zip)
	if err != nil || result == nil {
		if err == nil {
			err = ErrNoResult
			metrics.GeocodeRequests.WithLabelValues(metrics.GeocodeMissed).Inc()
		} else {
			metrics.GeocodeRequests.WithLabelValues(metrics.GeocodeError).Inc()
		}
		s.logger.Warn("geocoding failed",
			zap.Int64("property_id", propertyID),
			zap.String("address", ComposeAddress(street, city, state, zip)),
			zap.Error(err))
		return nil, nil
	}

	coord := &store.Coordinate{
		PropertyID: propertyID,
		Latitude:   result.Latitude,
		Longitude:  result.Longitude,
		Confidence: result.Confidence,
		PlaceID:    result.PlaceID,
	}
	if err := s.store.CreateCoordinate(ctx, coord); err != nil {
		return nil, fmt.Errorf("failed to store coordinates for property %d: %w", propertyID, err)
	}

	metrics.GeocodeRequests.WithLabelValues(metrics.GeocodeResolved).Inc()
	return coord, nil
}

// BatchGeocodeProperties geocodes properties that have no coordinates yet,
// pausing between provider calls. A failure is recorded and the batch moves
// on. Cancelling ctx stops the batch between items.
func (s *CoordinateService) BatchGeocodeProperties(ctx context.Context, properties []store.Property) BatchResult {
	result := BatchResult{Errors: []string{}}
	called := false

	for _, p := range properties {
		existing, err := s.store.GetCoordinate(ctx, p.ID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, batchError(p, err))
			continue
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if called {
			if err := sleepCtx(ctx, s.batchDelay); err != nil {
				s.logger.Info("batch geocoding cancelled", zap.Int("success", result.Success), zap.Int("failed", result.Failed))
				return result
			}
		}
		called = true

		geo, err := s.provider.GeocodeProperty(ctx, p.StreetAddress, p.City, p.State, zipString(p.ZipCode))
		if err == nil && geo == nil {
			err = ErrNoResult
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, batchError(p, err))
			continue
		}

		coord := &store.Coordinate{
			PropertyID: p.ID,
			Latitude:   geo.Latitude,
			Longitude:  geo.Longitude,
			Confidence: geo.Confidence,
			PlaceID:    geo.PlaceID,
		}
		if err := s.store.CreateCoordinate(ctx, coord); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, batchError(p, err))
			continue
		}
		result.Success++
	}

	s.logger.Info("batch geocoding complete",
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result
}

// GeocodeByIDs batch geocodes the given properties
func (s *CoordinateService) GeocodeByIDs(ctx context.Context, ids []int64) (BatchResult, error) {
	properties, err := s.store.ListProperties(ctx, ids)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to load properties: %w", err)
	}
	return s.BatchGeocodeProperties(ctx, properties), nil
}

// GeocodeMissing batch geocodes up to limit properties without coordinates
func (s *CoordinateService) GeocodeMissing(ctx context.Context, limit int) (BatchResult, error) {
	properties, err := s.store.ListPropertiesWithoutCoordinates(ctx, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list properties without coordinates: %w", err)
	}
	return s.BatchGeocodeProperties(ctx, properties), nil
}

// UpsertCoordinates stores coordinates for a property, replacing any
// existing row
func (s *CoordinateService) UpsertCoordinates(ctx context.Context, coord store.Coordinate) error {
	if err := s.store.UpsertCoordinate(ctx, &coord); err != nil {
		return fmt.Errorf("failed to upsert coordinates for property %d: %w", coord.PropertyID, err)
	}
	return nil
}

func batchError(p store.Property, err error) string {
	return fmt.Sprintf("Failed to geocode property %d (%s, %s): %v", p.ID, p.StreetAddress, p.City, err)
}

// zipString formats a stored zip, nil when unknown
func zipString(zip int) *string {
	if zip <= 0 {
		return nil
	}
	z := fmt.Sprintf("%05d", zip)
	return &z
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
