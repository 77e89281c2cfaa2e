package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/reicrm/internal/audit"
	import_pkg "github.com/reicrm/internal/import"
)

const defaultMaxUpload = 32 << 20

// UploadService runs spreadsheet uploads
type UploadService interface {
	Process(ctx context.Context, name string, file io.Reader, mapping import_pkg.ColumnMapping) *import_pkg.UploadResult
	ProcessXLSX(ctx context.Context, name string, file io.Reader, mapping import_pkg.ColumnMapping) *import_pkg.UploadResult
}

// DecisionHistory lists the audit trail of an upload
type DecisionHistory interface {
	DecisionHistory(ctx context.Context, uploadID uuid.UUID) ([]audit.RunHistoryEntry, error)
}

// UploadsHandler handles spreadsheet upload endpoints
type UploadsHandler struct {
	Uploads UploadService
	Audit   DecisionHistory
	Config  *Config
	Logger  *zap.Logger
}

// MappingRequest asks for a suggested column mapping
type MappingRequest struct {
	Headers []string `json:"headers"`
	Fields  []string `json:"fields"`
}

// HeadersResponse lists the headers of an uploaded file
type HeadersResponse struct {
	Headers          []string               `json:"headers"`
	SuggestedMapping import_pkg.ColumnMapping `json:"suggestedMapping"`
}

// Upload processes a multipart upload with an optional JSON "mapping" field.
// Processing continues even if the client disconnects.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	var mapping import_pkg.ColumnMapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			http.Error(w, "Invalid mapping JSON", http.StatusBadRequest)
			return
		}
	}

	ctx := context.WithoutCancel(r.Context())

	var result *import_pkg.UploadResult
	if import_pkg.DetectFormat(header.Filename) == import_pkg.FormatXLSX {
		result = h.Uploads.ProcessXLSX(ctx, header.Filename, file, mapping)
	} else {
		result = h.Uploads.Process(ctx, header.Filename, file, mapping)
	}

	status := http.StatusOK
	if !result.Success {
		h.Logger.Error("upload failed", zap.String("file", header.Filename), zap.String("message", result.Message))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// Headers returns the header row of an uploaded file and a suggested mapping
func (h *UploadsHandler) Headers(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	var headers []string
	var err error
	if import_pkg.DetectFormat(header.Filename) == import_pkg.FormatXLSX {
		headers, err = import_pkg.ExtractSheetHeaders(file)
	} else {
		headers, err = import_pkg.ExtractHeaders(file)
	}
	if err != nil {
		http.Error(w, "Unable to read file headers", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, HeadersResponse{
		Headers:          headers,
		SuggestedMapping: import_pkg.SuggestColumnMapping(headers, import_pkg.Fields),
	})
}

// SuggestMapping maps headers onto target fields, defaulting to the
// importer's own field list
func (h *UploadsHandler) SuggestMapping(w http.ResponseWriter, r *http.Request) {
	var req MappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Fields) == 0 {
		req.Fields = import_pkg.Fields
	}

	writeJSON(w, http.StatusOK, import_pkg.SuggestColumnMapping(req.Headers, req.Fields))
}

// Decisions returns the reconciliation decisions recorded for an upload
func (h *UploadsHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		http.Error(w, "Feature disabled", http.StatusForbidden)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid upload ID", http.StatusBadRequest)
		return
	}

	history, err := h.Audit.DecisionHistory(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to load decisions", zap.String("upload_id", id.String()), zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []audit.RunHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, history)
}

func (h *UploadsHandler) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	limit := int64(defaultMaxUpload)
	if h.Config != nil && h.Config.MaxUploadBytes > 0 {
		limit = h.Config.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		http.Error(w, "Invalid multipart upload", http.StatusBadRequest)
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return nil, nil, false
	}
	return file, header, true
}
