package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reicrm/internal/match"
	"github.com/reicrm/internal/store"
)

func seedProperty(t *testing.T, s *store.MemoryStore, address, city string, zip int) *store.Property {
	t.Helper()
	p := &store.Property{StreetAddress: address, City: city, ZipCode: zip}
	require.NoError(t, s.CreateProperty(context.Background(), p))
	return p
}

func newReconciler(s *store.MemoryStore) *PropertyReconciler {
	return NewPropertyReconciler(s, match.DefaultThresholds(), zap.NewNop())
}

func TestFindMatchingPropertyPrefersExact(t *testing.T) {
	s := store.NewMemoryStore()
	seedProperty(t, s, "123 Main Street", "Seattle", 98101)
	exact := seedProperty(t, s, "123 Main St", "Seattle", 98101)

	got, err := newReconciler(s).FindMatchingProperty(context.Background(), "123 Main St", "Seattle", 98101, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, exact.ID, got.Property.ID)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "Exact address match", got.MatchReason)
}

func TestFindMatchingPropertyFuzzy(t *testing.T) {
	s := store.NewMemoryStore()
	seedProperty(t, s, "999 Other Rd", "Seattle", 98101)
	near := seedProperty(t, s, "123 Main St Apt", "Seattle", 98101)
	seedProperty(t, s, "123 Main St", "Tacoma", 98101)

	got, err := newReconciler(s).FindMatchingProperty(context.Background(), "123 Main St", "Seattle", 98101, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, near.ID, got.Property.ID)
	assert.InDelta(t, 0.875, got.Confidence, 1e-9)
	assert.Equal(t, "Fuzzy address match (88% similarity)", got.MatchReason)
}

func TestFindMatchingPropertyFloorIsExclusive(t *testing.T) {
	s := store.NewMemoryStore()
	// 7 of 10 tokens shared, no house numbers: exactly 0.7
	seedProperty(t, s, "alpha bravo charlie delta echo foxtrot golf kilo lima mike", "Spokane", 99201)

	got, err := newReconciler(s).FindMatchingProperty(context.Background(),
		"alpha bravo charlie delta echo foxtrot golf hotel india juliet", "Spokane", 99201, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProcessPropertyBelowMergeFloorCreates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	// 4 of 5 tokens shared: 0.8
	existing := seedProperty(t, s, "alpha bravo charlie delta echo", "Olympia", 98501)

	out, err := newReconciler(s).ProcessProperty(ctx, PropertyData{
		StreetAddress: "alpha bravo charlie delta xray",
		City:          "Olympia",
		ZipCode:       98501,
	}, 42)
	require.NoError(t, err)

	assert.Equal(t, match.ActionCreated, out.Action)
	require.NotNil(t, out.Match)
	assert.InDelta(t, 0.8, out.Match.Confidence, 1e-9)
	assert.NotEqual(t, existing.ID, out.Property.ID)
	assert.Equal(t, []int64{42}, s.PropertyOwners(out.Property.ID))

	_, properties, _ := s.Counts()
	assert.Equal(t, 2, properties)
}

func TestProcessPropertyExactMerges(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	existing := seedProperty(t, s, "123 Main St", "Seattle", 98101)
	require.NoError(t, s.ConnectOwner(ctx, existing.ID, 1))

	parcel := "APN-77"
	out, err := newReconciler(s).ProcessProperty(ctx, PropertyData{
		StreetAddress: "123 Main St",
		City:          "Seattle",
		ZipCode:       98101,
		ParcelID:      &parcel,
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, match.ActionMerged, out.Action)
	assert.Equal(t, existing.ID, out.Property.ID)
	require.NotNil(t, out.Property.ParcelID)
	assert.Equal(t, "APN-77", *out.Property.ParcelID)
	assert.Equal(t, []int64{1, 2}, s.PropertyOwners(existing.ID))
}

func TestProcessPropertyNoMatchCreatesWithZeroFinancials(t *testing.T) {
	s := store.NewMemoryStore()

	out, err := newReconciler(s).ProcessProperty(context.Background(), PropertyData{
		StreetAddress: "1 First Ave",
		City:          "unknown",
		ZipCode:       -1,
	}, 9)
	require.NoError(t, err)

	assert.Equal(t, match.ActionCreated, out.Action)
	assert.Nil(t, out.Match)
	assert.Zero(t, out.Property.Price)
	assert.Zero(t, out.Property.SquareFeet)
	assert.Equal(t, -1, out.Property.ZipCode)
}

func TestMergePropertyFields(t *testing.T) {
	existingParcel := "OLD"
	newParcel := "NEW"

	t.Run("no changes", func(t *testing.T) {
		patch, changed := MergePropertyFields(store.Property{Price: 100}, PropertyData{})
		assert.False(t, changed)
		assert.True(t, patch.Empty())
	})

	t.Run("parcel fills only when empty", func(t *testing.T) {
		_, changed := MergePropertyFields(store.Property{ParcelID: &existingParcel}, PropertyData{ParcelID: &newParcel})
		assert.False(t, changed)

		patch, changed := MergePropertyFields(store.Property{}, PropertyData{ParcelID: &newParcel})
		assert.True(t, changed)
		assert.Equal(t, "NEW", *patch.ParcelID)
	})

	t.Run("non-zero financials overwrite", func(t *testing.T) {
		patch, changed := MergePropertyFields(
			store.Property{Price: 100, SquareFeet: 900},
			PropertyData{Price: 250, NumberOfUnits: 4},
		)
		assert.True(t, changed)
		assert.Equal(t, 250.0, *patch.Price)
		assert.Equal(t, 4, *patch.NumberOfUnits)
		assert.Nil(t, patch.SquareFeet)
	})
}
