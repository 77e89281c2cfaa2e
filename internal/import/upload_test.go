package import_pkg

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/reicrm/internal/audit"
	"github.com/reicrm/internal/engine"
	"github.com/reicrm/internal/match"
	"github.com/reicrm/internal/store"
)

const johnSmithCSV = "OwnerName,Address,City,Zip,Email 1,Wireless 1\n" +
	"John Smith,123 Main St,Seattle,98101,john@email.com,206-555-0101\n"

type fakeGeocoder struct {
	calls []int64
	err   error
	miss  bool
}

func (g *fakeGeocoder) GetOrCreateCoordinates(ctx context.Context, propertyID int64, street, city string, state, zip *string) (*store.Coordinate, error) {
	g.calls = append(g.calls, propertyID)
	if g.err != nil {
		return nil, g.err
	}
	if g.miss {
		return nil, nil
	}
	return &store.Coordinate{PropertyID: propertyID, Latitude: 47.6, Longitude: -122.3, Confidence: "high"}, nil
}

type fakeAudit struct {
	started   []uuid.UUID
	decisions []audit.Decision
	summary   *audit.RunSummary
}

func (a *fakeAudit) StartRun(ctx context.Context, id uuid.UUID, source, format string) error {
	a.started = append(a.started, id)
	return nil
}

func (a *fakeAudit) RecordDecisions(ctx context.Context, decisions []audit.Decision) error {
	a.decisions = append(a.decisions, decisions...)
	return nil
}

func (a *fakeAudit) CompleteRun(ctx context.Context, id uuid.UUID, summary audit.RunSummary) error {
	a.summary = &summary
	return nil
}

type failingOwners struct {
	err   error
	panic bool
}

func (f failingOwners) ProcessOwner(ctx context.Context, data engine.OwnerData) (*engine.OwnerOutcome, error) {
	if f.panic {
		panic("nil map write")
	}
	return nil, f.err
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func newTestProcessor(s *store.MemoryStore, opts ...Option) *UploadProcessor {
	logger := zap.NewNop()
	owners := engine.NewOwnerDeduplicator(s, match.DefaultThresholds(), logger)
	properties := engine.NewPropertyReconciler(s, match.DefaultThresholds(), logger)
	return NewUploadProcessor(owners, properties, logger, opts...)
}

func TestProcessSingleRow(t *testing.T) {
	s := store.NewMemoryStore()
	geo := &fakeGeocoder{}
	p := newTestProcessor(s, WithGeocoder(geo))

	result := p.Process(context.Background(), "owners.csv", strings.NewReader(johnSmithCSV), nil)

	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, result.ProcessedRows)
	assert.Equal(t, 1, result.CreatedOwners)
	assert.Equal(t, 1, result.CreatedProperties)
	assert.Equal(t, 2, result.CreatedContacts)
	assert.Equal(t, 1, result.GeocodedProperties)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Duplicates)
	assert.Empty(t, result.GeocodingErrors)
	assert.Equal(t, ReconciliationSummary{PropertiesCreated: 1, OwnersCreated: 1}, result.ReconciliationSummary)
	assert.NotEmpty(t, result.UploadID)

	owners, properties, contacts := s.Counts()
	assert.Equal(t, 1, owners)
	assert.Equal(t, 1, properties)
	assert.Equal(t, 2, contacts)

	prop, err := s.FindPropertyExact(context.Background(), store.PropertyKey{StreetAddress: "123 Main St", City: "Seattle", ZipCode: 98101})
	require.NoError(t, err)
	require.NotNil(t, prop)
	assert.Zero(t, prop.Price)
	require.Len(t, s.PropertyOwners(prop.ID), 1)

	stored, err := s.ListContacts(context.Background(), s.PropertyOwners(prop.ID)[0])
	require.NoError(t, err)
	require.Len(t, stored, 2)
	// listed by type, so Cell sorts before Email
	assert.Equal(t, store.ContactCell, stored[0].Type)
	assert.Equal(t, "2065550101", *stored[0].Phone)
	assert.Nil(t, stored[0].Email)
	assert.Equal(t, 1, stored[0].Priority)
	assert.Equal(t, store.ContactEmail, stored[1].Type)
	assert.Equal(t, "john@email.com", *stored[1].Email)
	assert.Nil(t, stored[1].Phone)
	assert.Equal(t, 1, stored[1].Priority)

	assert.Equal(t, []int64{prop.ID}, geo.calls)
}

func TestProcessDuplicateAddress(t *testing.T) {
	csv := "OwnerName,Address,City,Zip\n" +
		"John Smith,123 Main St,Seattle,98101\n" +
		"\n" +
		"Jane Doe, 123 MAIN ST ,Seattle,98101\n"

	result := newTestProcessor(store.NewMemoryStore()).
		Process(context.Background(), "dupes.csv", strings.NewReader(csv), nil)

	require.True(t, result.Success)
	assert.Equal(t, 1, result.ProcessedRows)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, DuplicateEntry{
		Row:     3,
		Address: "123 MAIN ST",
		Message: "Duplicate address - only first occurrence will be processed",
	}, result.Duplicates[0])
	assert.Empty(t, result.Errors)
}

func TestProcessInvalidRow(t *testing.T) {
	csv := "OwnerName,Address,City,Zip,Email 1\n" +
		",9 Elm Rd,Seattle,98101,\n" +
		"Ann Lee,,Seattle,981,not-an-email\n"

	result := newTestProcessor(store.NewMemoryStore()).
		Process(context.Background(), "bad.csv", strings.NewReader(csv), nil)

	require.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedRows)
	require.Len(t, result.Errors, 2)

	assert.Equal(t, ErrorEntry{Row: 2, Address: "9 Elm Rd", Errors: []string{"OwnerName is required"}}, result.Errors[0])

	assert.Equal(t, 3, result.Errors[1].Row)
	assert.Equal(t, "Unknown Address", result.Errors[1].Address)
	assert.Equal(t, []string{
		"Address is required",
		"Zip code must be in valid format (e.g., 12345 or 12345-6789)",
		"Email 1 is not in valid format",
	}, result.Errors[1].Errors)
}

func TestProcessSecondUploadMerges(t *testing.T) {
	s := store.NewMemoryStore()
	p := newTestProcessor(s)

	first := p.Process(context.Background(), "a.csv", strings.NewReader(johnSmithCSV), nil)
	require.Equal(t, 1, first.CreatedOwners)

	second := p.Process(context.Background(), "b.csv", strings.NewReader(johnSmithCSV), nil)
	require.True(t, second.Success)
	assert.Equal(t, 1, second.ProcessedRows)
	assert.Equal(t, 1, second.MergedOwners)
	assert.Equal(t, 1, second.MergedProperties)
	assert.Equal(t, 0, second.CreatedOwners)
	assert.Equal(t, 0, second.CreatedProperties)
	assert.Equal(t, 0, second.CreatedContacts)
	assert.Equal(t, ReconciliationSummary{PropertiesMerged: 1, OwnersMerged: 1}, second.ReconciliationSummary)
	assert.NotEqual(t, first.UploadID, second.UploadID)

	owners, properties, contacts := s.Counts()
	assert.Equal(t, 1, owners)
	assert.Equal(t, 1, properties)
	assert.Equal(t, 2, contacts)
}

func TestProcessMissingCityAndZip(t *testing.T) {
	s := store.NewMemoryStore()
	csv := "OwnerName,Address\nJohn Smith,123 Main St\n"

	result := newTestProcessor(s).Process(context.Background(), "a.csv", strings.NewReader(csv), nil)
	require.Equal(t, 1, result.ProcessedRows)

	prop, err := s.FindPropertyExact(context.Background(), store.PropertyKey{StreetAddress: "123 Main St", City: "unknown", ZipCode: -1})
	require.NoError(t, err)
	assert.NotNil(t, prop)
}

func TestProcessGeocodingFailureKeepsRow(t *testing.T) {
	tests := []struct {
		name string
		geo  *fakeGeocoder
		want string
	}{
		{"provider error", &fakeGeocoder{err: errors.New("quota exceeded")}, "Failed to geocode 123 Main St: quota exceeded"},
		{"no result", &fakeGeocoder{miss: true}, "Failed to geocode 123 Main St"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(store.NewMemoryStore(), WithGeocoder(tt.geo))
			result := p.Process(context.Background(), "a.csv", strings.NewReader(johnSmithCSV), nil)

			assert.Equal(t, 1, result.ProcessedRows)
			assert.Equal(t, 0, result.GeocodedProperties)
			assert.Equal(t, []string{tt.want}, result.GeocodingErrors)
		})
	}
}

func TestProcessRowErrors(t *testing.T) {
	tests := []struct {
		name   string
		owners failingOwners
		want   string
	}{
		{"error message kept", failingOwners{err: engine.ErrMergeTargetNotFound}, "Target owner not found for merge"},
		{"blank message", failingOwners{err: errors.New("")}, "Database error occurred"},
		{"panic", failingOwners{panic: true}, "Database error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			properties := engine.NewPropertyReconciler(s, match.DefaultThresholds(), zap.NewNop())
			p := NewUploadProcessor(tt.owners, properties, zap.NewNop())

			csv := johnSmithCSV + "Jane Doe,9 Elm Rd,Seattle,98101,,\n"
			result := p.Process(context.Background(), "a.csv", strings.NewReader(csv), nil)

			require.True(t, result.Success)
			assert.Equal(t, 0, result.ProcessedRows)
			require.Len(t, result.Errors, 2)
			assert.Equal(t, ErrorEntry{Row: 2, Address: "123 Main St", Errors: []string{tt.want}}, result.Errors[0])
			assert.Equal(t, 3, result.Errors[1].Row)
			assert.Equal(t, 0, result.CreatedOwners)
		})
	}
}

func TestProcessReadFailure(t *testing.T) {
	result := newTestProcessor(store.NewMemoryStore()).
		Process(context.Background(), "a.csv", errReader{}, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "connection reset")
	assert.Equal(t, 0, result.ProcessedRows)
	assert.Equal(t, 0, result.CreatedOwners)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Duplicates)
}

func TestProcessWithMapping(t *testing.T) {
	s := store.NewMemoryStore()
	csv := "Owner,Site Address,Town,Mobile\n" +
		"\"Smith, John\",\"123 Main St\",Seattle,2065550101\n"

	headers, err := ExtractHeaders(strings.NewReader(csv))
	require.NoError(t, err)
	mapping := SuggestColumnMapping(headers, Fields)
	owner, address, city, wireless := ColOwnerName, ColAddress, ColCity, ColWireless1
	mapping["Owner"] = &owner
	mapping["Site Address"] = &address
	mapping["Town"] = &city
	mapping["Mobile"] = &wireless

	result := newTestProcessor(s).Process(context.Background(), "a.csv", strings.NewReader(csv), mapping)
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.ProcessedRows)
	assert.Equal(t, 1, result.CreatedContacts)

	prop, err := s.FindPropertyExact(context.Background(), store.PropertyKey{StreetAddress: "123 Main St", City: "Seattle", ZipCode: -1})
	require.NoError(t, err)
	assert.NotNil(t, prop)
}

func TestProcessRecordsAudit(t *testing.T) {
	rec := &fakeAudit{}
	p := newTestProcessor(store.NewMemoryStore(), WithAudit(rec))

	result := p.Process(context.Background(), "a.csv", strings.NewReader(johnSmithCSV), nil)

	require.Len(t, rec.started, 1)
	assert.Equal(t, result.UploadID, rec.started[0].String())

	require.Len(t, rec.decisions, 2)
	assert.Equal(t, "owner", rec.decisions[0].Entity)
	assert.Equal(t, match.ActionCreated, rec.decisions[0].Action)
	assert.Equal(t, 2, rec.decisions[0].Row)
	assert.Equal(t, "property", rec.decisions[1].Entity)

	require.NotNil(t, rec.summary)
	assert.True(t, rec.summary.Success)
	assert.Equal(t, 1, rec.summary.ProcessedRows)
	assert.Equal(t, 2, rec.summary.CreatedContacts)
}

func TestProcessXLSXMatchesCSV(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"OwnerName", "Address", "City", "Zip", "Email 1", "Wireless 1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"John Smith", "123 Main St", "Seattle", "98101", "john@email.com", "206-555-0101"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"Jane Doe", "123 main st", "Seattle", "98101"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	xlsx := newTestProcessor(store.NewMemoryStore()).
		ProcessXLSX(context.Background(), "owners.xlsx", bytes.NewReader(buf.Bytes()), nil)
	require.True(t, xlsx.Success, xlsx.Message)

	csv := newTestProcessor(store.NewMemoryStore()).
		Process(context.Background(), "owners.csv", strings.NewReader(johnSmithCSV+"Jane Doe,123 main st,Seattle,98101,,\n"), nil)

	assert.Equal(t, csv.ProcessedRows, xlsx.ProcessedRows)
	assert.Equal(t, csv.CreatedOwners, xlsx.CreatedOwners)
	assert.Equal(t, csv.CreatedContacts, xlsx.CreatedContacts)
	assert.Equal(t, csv.Errors, xlsx.Errors)
	assert.Equal(t, csv.Duplicates, xlsx.Duplicates)
}

func TestProcessXLSXBadWorkbook(t *testing.T) {
	result := newTestProcessor(store.NewMemoryStore()).
		ProcessXLSX(context.Background(), "bad.xlsx", strings.NewReader("not a workbook"), nil)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("Owners.XLSX"))
	assert.Equal(t, FormatCSV, DetectFormat("owners.csv"))
	assert.Equal(t, FormatCSV, DetectFormat("owners"))
}
