package match

import (
	"sort"

	"github.com/reicrm/internal/store"
)

// Default reconciliation policy values
const (
	DefaultFuzzyFloor      = 0.7  // exclusive floor for a fuzzy address match
	DefaultNameFloor       = 0.8  // inclusive floor for an owner name match
	DefaultMergeFloor      = 0.95 // inclusive floor for merging owners or properties
	DefaultPhoneMatchScore = 0.9  // confidence granted by a shared phone number
)

// Reconciliation outcomes reported per entity
const (
	ActionCreated = "created"
	ActionMerged  = "merged"
)

// Owner conflict resolution values
const (
	ResolveCreateNew = "create_new"
	ResolveMerge     = "merge"
	ResolutionAddNew = "add_new"
)

// Thresholds holds the tunable confidence cut-offs used by reconciliation
type Thresholds struct {
	FuzzyFloor      float64 `mapstructure:"fuzzy_floor" json:"fuzzy_floor"`
	NameFloor       float64 `mapstructure:"name_floor" json:"name_floor"`
	MergeFloor      float64 `mapstructure:"merge_floor" json:"merge_floor"`
	PhoneMatchScore float64 `mapstructure:"phone_match_score" json:"phone_match_score"`
}

// DefaultThresholds returns the production policy values
func DefaultThresholds() Thresholds {
	return Thresholds{
		FuzzyFloor:      DefaultFuzzyFloor,
		NameFloor:       DefaultNameFloor,
		MergeFloor:      DefaultMergeFloor,
		PhoneMatchScore: DefaultPhoneMatchScore,
	}
}

// PropertyMatch is an existing property judged to be the incoming address
type PropertyMatch struct {
	Property    store.Property `json:"property"`
	Confidence  float64        `json:"confidence"`
	MatchReason string         `json:"matchReason"`
}

// OwnerMatch is an existing owner that may be the incoming owner
type OwnerMatch struct {
	Owner         store.Owner `json:"owner"`
	Confidence    float64     `json:"confidence"`
	MatchReason   string      `json:"matchReason"`
	PhoneConflict bool        `json:"phoneConflict"`
	EmailConflict bool        `json:"emailConflict"`
}

// ConflictResolution decides what to do with an incoming owner
type ConflictResolution struct {
	Action          string `json:"action"`
	TargetOwnerID   int64  `json:"targetOwnerId,omitempty"`
	PhoneResolution string `json:"phoneResolution,omitempty"`
	EmailResolution string `json:"emailResolution,omitempty"`
}

// SortOwnerMatches orders matches by confidence, highest first, keeping
// discovery order for ties
func SortOwnerMatches(matches []OwnerMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
}
