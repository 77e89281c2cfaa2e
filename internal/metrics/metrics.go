package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reicrm_uploads_total",
			Help: "Total number of uploads processed",
		},
		[]string{"format", "status"},
	)

	UploadRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reicrm_upload_rows_total",
			Help: "Upload rows by outcome",
		},
		[]string{"outcome"},
	)

	ReconciliationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reicrm_reconciliation_actions_total",
			Help: "Owner and property reconciliation outcomes",
		},
		[]string{"entity", "action"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reicrm_upload_duration_seconds",
			Help:    "Duration of upload processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"format"},
	)

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reicrm_geocode_requests_total",
			Help: "Geocoding lookups by result",
		},
		[]string{"result"},
	)
)

// Row outcome labels
const (
	RowProcessed = "processed"
	RowInvalid   = "invalid"
	RowDuplicate = "duplicate"
	RowFailed    = "failed"
)

// Geocode result labels
const (
	GeocodeCached   = "cached"
	GeocodeStored   = "stored"
	GeocodeResolved = "resolved"
	GeocodeMissed   = "missed"
	GeocodeError    = "error"
)
