package geocode

import (
	"context"
	"errors"
	"strings"
)

// Confidence levels reported for a geocoding result
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ErrNoResult means the provider found nothing for an address
var ErrNoResult = errors.New("no geocoding result")

// Result is a geocoded location
type Result struct {
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lng"`
	Confidence       string  `json:"confidence"`
	PlaceID          *string `json:"placeId,omitempty"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
}

// Provider resolves a street address to coordinates. A provider that finds
// nothing returns nil, nil.
type Provider interface {
	GeocodeProperty(ctx context.Context, street, city string, state, zip *string) (*Result, error)
}

// ComposeAddress joins address parts into a single line, e.g.
// "123 Main St, Seattle, WA 98101". Blank parts are left out.
func ComposeAddress(street, city string, state, zip *string) string {
	var parts []string
	if s := strings.TrimSpace(street); s != "" {
		parts = append(parts, s)
	}
	if c := strings.TrimSpace(city); c != "" && !strings.EqualFold(c, "unknown") {
		parts = append(parts, c)
	}

	var region []string
	if state != nil && strings.TrimSpace(*state) != "" {
		region = append(region, strings.TrimSpace(*state))
	}
	if zip != nil && strings.TrimSpace(*zip) != "" {
		region = append(region, strings.TrimSpace(*zip))
	}
	if len(region) > 0 {
		parts = append(parts, strings.Join(region, " "))
	}

	return strings.Join(parts, ", ")
}
