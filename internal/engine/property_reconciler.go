package engine

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/reicrm/internal/match"
	"github.com/reicrm/internal/normalize"
	"github.com/reicrm/internal/store"
)

// PropertyData is an incoming property record to reconcile
type PropertyData struct {
	StreetAddress      string
	City               string
	ZipCode            int
	State              *string
	ParcelID           *string
	NetOperatingIncome float64
	Price              float64
	ReturnOnInvestment float64
	NumberOfUnits      int
	SquareFeet         int
}

// PropertyOutcome reports how an incoming property was reconciled
type PropertyOutcome struct {
	Property *store.Property
	Action   string
	Match    *match.PropertyMatch
}

// PropertyReconciler decides whether incoming properties are new or already
// stored, and writes the result
type PropertyReconciler struct {
	store      store.PropertyStore
	thresholds match.Thresholds
	logger     *zap.Logger
}

// NewPropertyReconciler creates a reconciler over a property store
func NewPropertyReconciler(s store.PropertyStore, thresholds match.Thresholds, logger *zap.Logger) *PropertyReconciler {
	return &PropertyReconciler{store: s, thresholds: thresholds, logger: logger}
}

// FindMatchingProperty looks for an exact address match first, then the best
// fuzzy candidate in the same city and zip scoring above the fuzzy floor.
// Returns nil when neither exists.
func (r *PropertyReconciler) FindMatchingProperty(ctx context.Context, address, city string, zip int, state *string) (*match.PropertyMatch, error) {
	exact, err := r.store.FindPropertyExact(ctx, store.PropertyKey{
		StreetAddress: address,
		City:          city,
		ZipCode:       zip,
		State:         state,
	})
	if err != nil {
		return nil, err
	}
	if exact != nil {
		return &match.PropertyMatch{
			Property:    *exact,
			Confidence:  1.0,
			MatchReason: "Exact address match",
		}, nil
	}

	candidates, err := r.store.ListPropertyCandidates(ctx, city, zip, state)
	if err != nil {
		return nil, err
	}

	var best *match.PropertyMatch
	for _, candidate := range candidates {
		score := normalize.AddressSimilarity(address, candidate.StreetAddress)
		if score <= r.thresholds.FuzzyFloor {
			continue
		}
		if best == nil || score > best.Confidence {
			best = &match.PropertyMatch{
				Property:   candidate,
				Confidence: score,
			}
		}
	}

	if best != nil {
		best.MatchReason = fmt.Sprintf("Fuzzy address match (%d%% similarity)", int(math.Round(best.Confidence*100)))
	}
	return best, nil
}

// MergePropertyData folds incoming data into an existing property. Nothing
// is written when the merge changes no field.
func (r *PropertyReconciler) MergePropertyData(ctx context.Context, existing store.Property, incoming PropertyData) (*store.Property, error) {
	patch, changed := MergePropertyFields(existing, incoming)
	if !changed {
		return &existing, nil
	}

	updated, err := r.store.UpdateProperty(ctx, existing.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to merge property %d: %w", existing.ID, err)
	}
	return updated, nil
}

// CreateNewProperty inserts a property and links it to its owner
func (r *PropertyReconciler) CreateNewProperty(ctx context.Context, data PropertyData, ownerID int64) (*store.Property, error) {
	p := &store.Property{
		StreetAddress:      data.StreetAddress,
		City:               data.City,
		ZipCode:            data.ZipCode,
		State:              data.State,
		ParcelID:           data.ParcelID,
		NetOperatingIncome: data.NetOperatingIncome,
		Price:              data.Price,
		ReturnOnInvestment: data.ReturnOnInvestment,
		NumberOfUnits:      data.NumberOfUnits,
		SquareFeet:         data.SquareFeet,
	}
	if err := r.store.CreateProperty(ctx, p); err != nil {
		return nil, err
	}
	if err := r.store.ConnectOwner(ctx, p.ID, ownerID); err != nil {
		return nil, err
	}
	return p, nil
}

// ProcessProperty reconciles one incoming property. Only matches at or above
// the merge floor are merged; weaker matches still produce a new property.
func (r *PropertyReconciler) ProcessProperty(ctx context.Context, data PropertyData, ownerID int64) (*PropertyOutcome, error) {
	found, err := r.FindMatchingProperty(ctx, data.StreetAddress, data.City, data.ZipCode, data.State)
	if err != nil {
		return nil, err
	}

	if found != nil && found.Confidence >= r.thresholds.MergeFloor {
		merged, err := r.MergePropertyData(ctx, found.Property, data)
		if err != nil {
			return nil, err
		}
		if err := r.store.ConnectOwner(ctx, merged.ID, ownerID); err != nil {
			return nil, err
		}

		r.logger.Debug("merged property",
			zap.Int64("property_id", merged.ID),
			zap.String("reason", found.MatchReason),
			zap.Float64("confidence", found.Confidence))

		return &PropertyOutcome{Property: merged, Action: match.ActionMerged, Match: found}, nil
	}

	if found != nil {
		r.logger.Debug("match below merge floor, creating property",
			zap.Int64("candidate_id", found.Property.ID),
			zap.Float64("confidence", found.Confidence))
	}

	created, err := r.CreateNewProperty(ctx, data, ownerID)
	if err != nil {
		return nil, err
	}
	return &PropertyOutcome{Property: created, Action: match.ActionCreated, Match: found}, nil
}
