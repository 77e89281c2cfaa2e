package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultGoogleBaseURL is the Google Maps Platform endpoint
const DefaultGoogleBaseURL = "https://maps.googleapis.com"

// GoogleConfig configures the Google geocoding client
type GoogleConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
}

// GoogleProvider geocodes addresses with the Google Geocoding API
type GoogleProvider struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewGoogleProvider creates a Google geocoding client
func NewGoogleProvider(cfg GoogleConfig, logger *zap.Logger) *GoogleProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &GoogleProvider{
		httpClient: client,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// GeocodeProperty looks up one address. ZERO_RESULTS yields nil, nil.
func (g *GoogleProvider) GeocodeProperty(ctx context.Context, street, city string, state, zip *string) (*Result, error) {
	address := ComposeAddress(street, city, state, zip)

	var response googleResponse
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetQueryParam("key", g.apiKey).
		SetResult(&response).
		Get("/maps/api/geocode/json")
	if err != nil {
		return nil, fmt.Errorf("failed to call geocoding API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocoding API returned HTTP %d", resp.StatusCode())
	}

	switch response.Status {
	case "OK":
	case "ZERO_RESULTS":
		g.logger.Debug("no geocoding result", zap.String("address", address))
		return nil, nil
	default:
		return nil, fmt.Errorf("geocoding API error: %s %s", response.Status, response.ErrorMessage)
	}
	if len(response.Results) == 0 {
		return nil, nil
	}

	first := response.Results[0]
	result := &Result{
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
		Confidence:       confidenceFor(first.Geometry.LocationType),
		FormattedAddress: first.FormattedAddress,
	}
	if first.PlaceID != "" {
		placeID := first.PlaceID
		result.PlaceID = &placeID
	}
	return result, nil
}

func confidenceFor(locationType string) string {
	switch locationType {
	case "ROOFTOP":
		return ConfidenceHigh
	case "RANGE_INTERPOLATED", "GEOMETRIC_CENTER":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
