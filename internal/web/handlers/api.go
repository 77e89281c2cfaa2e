package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
)

// Config carries the server settings handlers need
type Config struct {
	MaxUploadBytes int64
	Features       struct {
		ManualOverrideEnabled bool `json:"manual_override_enabled"`
	} `json:"features"`
}

// APIHandler handles general API endpoints
type APIHandler struct {
	DB     *sql.DB
	Config *Config
}

// StatsResponse represents overall statistics
type StatsResponse struct {
	TotalOwners        int            `json:"total_owners"`
	TotalProperties    int            `json:"total_properties"`
	TotalContacts      int            `json:"total_contacts"`
	GeocodedProperties int            `json:"geocoded_properties"`
	GeocodeRate        float64        `json:"geocode_rate"`
	Uploads            int            `json:"uploads"`
	ByConfidence       map[string]int `json:"by_confidence"`
}

// GetStats returns overall system statistics
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats StatsResponse

	query := `
		SELECT
			(SELECT COUNT(*) FROM owners),
			(SELECT COUNT(*) FROM properties),
			(SELECT COUNT(*) FROM contacts),
			(SELECT COUNT(*) FROM coordinates),
			(SELECT COUNT(*) FROM upload_runs)
	`
	err := h.DB.QueryRowContext(r.Context(), query).Scan(
		&stats.TotalOwners,
		&stats.TotalProperties,
		&stats.TotalContacts,
		&stats.GeocodedProperties,
		&stats.Uploads,
	)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if stats.TotalProperties > 0 {
		stats.GeocodeRate = float64(stats.GeocodedProperties) / float64(stats.TotalProperties) * 100
	}

	// Geocoding quality breakdown
	stats.ByConfidence = make(map[string]int)
	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT confidence, COUNT(*)
		FROM coordinates
		GROUP BY confidence
	`)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var confidence string
		var count int
		if err := rows.Scan(&confidence, &count); err != nil {
			continue
		}
		stats.ByConfidence[confidence] = count
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Health reports whether the database is reachable
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if val, err := strconv.Atoi(s); err == nil && val > 0 {
		return val
	}
	return defaultVal
}
