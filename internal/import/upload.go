package import_pkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reicrm/internal/audit"
	"github.com/reicrm/internal/engine"
	"github.com/reicrm/internal/match"
	"github.com/reicrm/internal/metrics"
	"github.com/reicrm/internal/store"
	"github.com/reicrm/internal/validation"
)

const (
	duplicateMessage = "Duplicate address - only first occurrence will be processed"
	unknownAddress   = "Unknown Address"
	genericRowError  = "Database error occurred"
	unknownCity      = "unknown"
	unknownZip       = -1
)

// ErrorEntry describes a row that failed validation or processing
type ErrorEntry struct {
	Row     int      `json:"row"`
	Address string   `json:"address"`
	Errors  []string `json:"errors"`
}

// DuplicateEntry describes a row skipped as a repeat address
type DuplicateEntry struct {
	Row     int    `json:"row"`
	Address string `json:"address"`
	Message string `json:"message"`
}

// ReconciliationSummary breaks down create and merge outcomes
type ReconciliationSummary struct {
	PropertiesCreated int `json:"propertiesCreated"`
	PropertiesMerged  int `json:"propertiesMerged"`
	OwnersCreated     int `json:"ownersCreated"`
	OwnersMerged      int `json:"ownersMerged"`
}

// UploadResult is returned once per upload
type UploadResult struct {
	UploadID              string                `json:"uploadId"`
	Success               bool                  `json:"success"`
	Message               string                `json:"message"`
	ProcessedRows         int                   `json:"processedRows"`
	Errors                []ErrorEntry          `json:"errors"`
	Duplicates            []DuplicateEntry      `json:"duplicates"`
	CreatedOwners         int                   `json:"createdOwners"`
	CreatedProperties     int                   `json:"createdProperties"`
	CreatedContacts       int                   `json:"createdContacts"`
	GeocodedProperties    int                   `json:"geocodedProperties"`
	GeocodingErrors       []string              `json:"geocodingErrors"`
	MergedProperties      int                   `json:"mergedProperties"`
	MergedOwners          int                   `json:"mergedOwners"`
	ReconciliationSummary ReconciliationSummary `json:"reconciliationSummary"`
}

func newUploadResult(id uuid.UUID) *UploadResult {
	return &UploadResult{
		UploadID:        id.String(),
		Errors:          []ErrorEntry{},
		Duplicates:      []DuplicateEntry{},
		GeocodingErrors: []string{},
	}
}

// failedUpload reports a fatal error with every counter at zero
func failedUpload(id uuid.UUID, err error) *UploadResult {
	result := newUploadResult(id)
	result.Message = err.Error()
	return result
}

// OwnerProcessor deduplicates incoming owners
type OwnerProcessor interface {
	ProcessOwner(ctx context.Context, data engine.OwnerData) (*engine.OwnerOutcome, error)
}

// PropertyProcessor reconciles incoming properties
type PropertyProcessor interface {
	ProcessProperty(ctx context.Context, data engine.PropertyData, ownerID int64) (*engine.PropertyOutcome, error)
}

// Geocoder fetches or creates the coordinates of a property
type Geocoder interface {
	GetOrCreateCoordinates(ctx context.Context, propertyID int64, street, city string, state, zip *string) (*store.Coordinate, error)
}

// AuditRecorder receives the run lifecycle and row decisions
type AuditRecorder interface {
	StartRun(ctx context.Context, uploadID uuid.UUID, source, format string) error
	RecordDecisions(ctx context.Context, decisions []audit.Decision) error
	CompleteRun(ctx context.Context, uploadID uuid.UUID, summary audit.RunSummary) error
}

// UploadProcessor runs uploaded spreadsheets through validation, owner
// deduplication, property reconciliation and geocoding
type UploadProcessor struct {
	owners     OwnerProcessor
	properties PropertyProcessor
	geocoder   Geocoder
	audit      AuditRecorder
	logger     *zap.Logger
}

// Option configures an UploadProcessor
type Option func(*UploadProcessor)

// WithGeocoder enables geocoding of processed properties
func WithGeocoder(g Geocoder) Option {
	return func(p *UploadProcessor) { p.geocoder = g }
}

// WithAudit records every run and decision
func WithAudit(a AuditRecorder) Option {
	return func(p *UploadProcessor) { p.audit = a }
}

// NewUploadProcessor creates an upload processor
func NewUploadProcessor(owners OwnerProcessor, properties PropertyProcessor, logger *zap.Logger, opts ...Option) *UploadProcessor {
	p := &UploadProcessor{
		owners:     owners,
		properties: properties,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles a CSV upload. Row failures are reported in the result and
// never stop the upload; only an unreadable file yields Success=false.
func (p *UploadProcessor) Process(ctx context.Context, name string, file io.Reader, mapping ColumnMapping) *UploadResult {
	id := uuid.New()

	lines, err := readLines(file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(FormatCSV, "failed").Inc()
		return failedUpload(id, err)
	}

	headers := ParseCSVLine(lines[0])
	var rows [][]string
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, ParseCSVLine(line))
	}

	return p.run(ctx, id, name, FormatCSV, headers, rows, mapping)
}

type validRow struct {
	number  int
	address string
	row     CSVRow
}

func (p *UploadProcessor) run(ctx context.Context, id uuid.UUID, name, format string, headers []string, rows [][]string, mapping ColumnMapping) *UploadResult {
	start := time.Now()
	log := p.logger.With(zap.String("upload_id", id.String()), zap.String("source", name))
	log.Info("processing upload", zap.String("format", format), zap.Int("rows", len(rows)))

	if p.audit != nil {
		if err := p.audit.StartRun(ctx, id, name, format); err != nil {
			log.Warn("failed to start audit run", zap.Error(err))
		}
	}

	result := newUploadResult(id)
	resolver := NewRowResolver(headers, mapping)

	// Pass 1: validate and drop repeated addresses
	seen := make(map[string]bool)
	var valid []validRow
	for i, values := range rows {
		number := i + 2
		row := resolver.Resolve(values)
		address := displayAddress(row)

		if key := strings.ToLower(strings.TrimSpace(rawAddress(row))); key != "" {
			if seen[key] {
				result.Duplicates = append(result.Duplicates, DuplicateEntry{
					Row:     number,
					Address: address,
					Message: duplicateMessage,
				})
				metrics.UploadRows.WithLabelValues(metrics.RowDuplicate).Inc()
				continue
			}
			seen[key] = true
		}

		if v := validation.ValidateRow(row); !v.IsValid {
			result.Errors = append(result.Errors, ErrorEntry{Row: number, Address: address, Errors: v.Errors})
			metrics.UploadRows.WithLabelValues(metrics.RowInvalid).Inc()
			continue
		}

		valid = append(valid, validRow{number: number, address: address, row: row})
	}

	// Pass 2: reconcile and persist in file order
	for _, vr := range valid {
		if err := p.processRow(ctx, id, vr, result); err != nil {
			msg := err.Error()
			if msg == "" {
				msg = genericRowError
			}
			log.Warn("row failed", zap.Int("row", vr.number), zap.String("address", vr.address), zap.Error(err))
			result.Errors = append(result.Errors, ErrorEntry{Row: vr.number, Address: vr.address, Errors: []string{msg}})
			metrics.UploadRows.WithLabelValues(metrics.RowFailed).Inc()
			continue
		}
		metrics.UploadRows.WithLabelValues(metrics.RowProcessed).Inc()
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully processed %d of %d rows", result.ProcessedRows, len(rows))
	result.ReconciliationSummary = ReconciliationSummary{
		PropertiesCreated: result.CreatedProperties,
		PropertiesMerged:  result.MergedProperties,
		OwnersCreated:     result.CreatedOwners,
		OwnersMerged:      result.MergedOwners,
	}

	if p.audit != nil {
		if err := p.audit.CompleteRun(ctx, id, summarize(result)); err != nil {
			log.Warn("failed to complete audit run", zap.Error(err))
		}
	}

	metrics.UploadsTotal.WithLabelValues(format, "success").Inc()
	metrics.UploadDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())

	log.Info("upload complete",
		zap.Int("processed", result.ProcessedRows),
		zap.Int("errors", len(result.Errors)),
		zap.Int("duplicates", len(result.Duplicates)),
		zap.Int("owners_created", result.CreatedOwners),
		zap.Int("owners_merged", result.MergedOwners),
		zap.Int("properties_created", result.CreatedProperties),
		zap.Int("properties_merged", result.MergedProperties),
		zap.Duration("elapsed", time.Since(start)))

	return result
}

// processRow reconciles one validated row. Counters are only touched once
// the owner and property are both stored.
func (p *UploadProcessor) processRow(ctx context.Context, id uuid.UUID, vr validRow, result *UploadResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing row", zap.Int("row", vr.number), zap.Any("panic", r))
			err = errors.New(genericRowError)
		}
	}()

	ownerData, propertyData := buildRowData(vr.row)

	ownerOut, err := p.owners.ProcessOwner(ctx, ownerData)
	if err != nil {
		return err
	}

	propOut, err := p.properties.ProcessProperty(ctx, propertyData, ownerOut.Owner.ID)
	if err != nil {
		return err
	}

	switch ownerOut.Action {
	case match.ActionMerged:
		result.MergedOwners++
	default:
		result.CreatedOwners++
	}
	switch propOut.Action {
	case match.ActionMerged:
		result.MergedProperties++
	default:
		result.CreatedProperties++
	}
	result.CreatedContacts += ownerOut.ContactsAdded
	metrics.ReconciliationActions.WithLabelValues("owner", ownerOut.Action).Inc()
	metrics.ReconciliationActions.WithLabelValues("property", propOut.Action).Inc()

	if p.geocoder != nil {
		p.geocodeRow(ctx, propOut.Property, vr.address, result)
	}

	if p.audit != nil {
		if err := p.audit.RecordDecisions(ctx, rowDecisions(id, vr.number, ownerOut, propOut)); err != nil {
			p.logger.Warn("failed to record decisions", zap.Int("row", vr.number), zap.Error(err))
		}
	}

	result.ProcessedRows++
	return nil
}

func (p *UploadProcessor) geocodeRow(ctx context.Context, property *store.Property, address string, result *UploadResult) {
	var zip *string
	if property.ZipCode > 0 {
		z := fmt.Sprintf("%05d", property.ZipCode)
		zip = &z
	}

	coord, err := p.geocoder.GetOrCreateCoordinates(ctx, property.ID, property.StreetAddress, property.City, property.State, zip)
	switch {
	case err != nil:
		result.GeocodingErrors = append(result.GeocodingErrors, fmt.Sprintf("Failed to geocode %s: %v", address, err))
	case coord == nil:
		result.GeocodingErrors = append(result.GeocodingErrors, fmt.Sprintf("Failed to geocode %s", address))
	default:
		result.GeocodedProperties++
	}
}

// buildRowData turns a validated row into owner and property inputs
func buildRowData(row CSVRow) (engine.OwnerData, engine.PropertyData) {
	processedOwner, processedProperty := ProcessRow(row)

	if processedProperty.ZipCode == 0 {
		processedProperty.ZipCode = unknownZip
	}
	if strings.TrimSpace(processedProperty.City) == "" {
		processedProperty.City = unknownCity
	}

	parsed := ParseOwnerName(row[ColOwnerName])

	phone := row.get(ColWireless1)
	if phone == nil {
		phone = row.get(ColLandline1)
	}

	ownerData := engine.OwnerData{
		FirstName:     parsed.FirstName,
		LastName:      parsed.LastName,
		FullName:      processedOwner.FullName,
		LLCContact:    processedOwner.LLCContact,
		StreetAddress: processedOwner.StreetAddress,
		City:          processedOwner.City,
		State:         processedOwner.State,
		ZipCode:       processedOwner.ZipCode,
		Phone:         phone,
		Email:         row.get(ColEmail1),
		Contacts:      ContactsFromRow(row),
	}

	propertyData := engine.PropertyData{
		StreetAddress: strings.TrimSpace(processedProperty.StreetAddress),
		City:          processedProperty.City,
		ZipCode:       processedProperty.ZipCode,
		State:         processedProperty.State,
		ParcelID:      processedProperty.ParcelID,
	}

	return ownerData, propertyData
}

func rowDecisions(id uuid.UUID, row int, owner *engine.OwnerOutcome, property *engine.PropertyOutcome) []audit.Decision {
	now := time.Now()

	ownerDecision := audit.Decision{
		UploadID:   id,
		Row:        row,
		Entity:     "owner",
		EntityID:   owner.Owner.ID,
		Action:     owner.Action,
		Candidates: len(owner.Matches),
		Details:    map[string]interface{}{"contacts_added": owner.ContactsAdded},
		DecidedAt:  now,
	}
	if len(owner.Matches) > 0 {
		ownerDecision.Confidence = owner.Matches[0].Confidence
		ownerDecision.Reason = owner.Matches[0].MatchReason
		ownerDecision.Details["best_candidate_id"] = owner.Matches[0].Owner.ID
	}

	propertyDecision := audit.Decision{
		UploadID:  id,
		Row:       row,
		Entity:    "property",
		EntityID:  property.Property.ID,
		Action:    property.Action,
		DecidedAt: now,
	}
	if property.Match != nil {
		propertyDecision.Candidates = 1
		propertyDecision.Confidence = property.Match.Confidence
		propertyDecision.Reason = property.Match.MatchReason
		propertyDecision.Details = map[string]interface{}{"candidate_id": property.Match.Property.ID}
	}

	return []audit.Decision{ownerDecision, propertyDecision}
}

func summarize(r *UploadResult) audit.RunSummary {
	return audit.RunSummary{
		Success:            r.Success,
		Message:            r.Message,
		ProcessedRows:      r.ProcessedRows,
		ErrorRows:          len(r.Errors),
		DuplicateRows:      len(r.Duplicates),
		CreatedOwners:      r.CreatedOwners,
		MergedOwners:       r.MergedOwners,
		CreatedProperties:  r.CreatedProperties,
		MergedProperties:   r.MergedProperties,
		CreatedContacts:    r.CreatedContacts,
		GeocodedProperties: r.GeocodedProperties,
	}
}

// rawAddress is the mapped street address, empty when absent
func rawAddress(row CSVRow) string {
	if v := strings.TrimSpace(row[colStreetAddress]); v != "" {
		return v
	}
	return strings.TrimSpace(row[ColAddress])
}

func displayAddress(row CSVRow) string {
	if a := rawAddress(row); a != "" {
		return a
	}
	return unknownAddress
}
