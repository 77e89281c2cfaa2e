package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reicrm/internal/match"
	"github.com/reicrm/internal/normalize"
	"github.com/reicrm/internal/store"
)

// ErrMergeTargetNotFound is returned when the owner chosen for a merge has
// disappeared from the store
var ErrMergeTargetNotFound = errors.New("Target owner not found for merge")

// OwnerData is an incoming owner record to deduplicate. Phone and Email are
// the legacy single-value contact fields; Contacts holds explicit seeds.
type OwnerData struct {
	FirstName     string
	LastName      string
	FullName      *string
	LLCContact    *string
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
	Phone         *string
	Email         *string
	Contacts      []store.ContactSeed
}

// displayName is the name compared against stored owners
func (d OwnerData) displayName() string {
	if !isBlank(d.FullName) {
		return *d.FullName
	}
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// OwnerOutcome reports how an incoming owner was reconciled
type OwnerOutcome struct {
	Owner         *store.Owner
	Action        string
	Matches       []match.OwnerMatch
	ContactsAdded int
}

// OwnerDeduplicator finds existing owners matching incoming data and either
// merges into them or creates a new owner
type OwnerDeduplicator struct {
	store      store.Store
	thresholds match.Thresholds
	logger     *zap.Logger
}

// NewOwnerDeduplicator creates a deduplicator over a store
func NewOwnerDeduplicator(s store.Store, thresholds match.Thresholds, logger *zap.Logger) *OwnerDeduplicator {
	return &OwnerDeduplicator{store: s, thresholds: thresholds, logger: logger}
}

// FindPotentialDuplicates returns candidate owners matched by name and by
// phone, sorted by confidence descending
func (d *OwnerDeduplicator) FindPotentialDuplicates(ctx context.Context, data OwnerData) ([]match.OwnerMatch, error) {
	candidates, err := d.store.FindOwnersByName(ctx, data.FullName, data.FirstName, data.LastName)
	if err != nil {
		return nil, err
	}

	incomingName := data.displayName()
	var matches []match.OwnerMatch

	for _, owner := range candidates {
		score := normalize.NameSimilarity(incomingName, storedName(owner))
		if score < d.thresholds.NameFloor {
			continue
		}
		matches = append(matches, match.OwnerMatch{
			Owner:         owner,
			Confidence:    score,
			MatchReason:   "Name match",
			PhoneConflict: !isBlank(data.Phone) && hasPhone(owner.Contacts, *data.Phone),
			EmailConflict: !isBlank(data.Email) && hasEmail(owner.Contacts, *data.Email),
		})
	}

	if !isBlank(data.Phone) {
		phone := normalize.NormalizePhone(*data.Phone)
		if phone != "" {
			byPhone, err := d.store.FindOwnersByPhone(ctx, phone)
			if err != nil {
				return nil, err
			}
			for _, owner := range byPhone {
				matches = d.addPhoneMatch(matches, owner)
			}
		}
	}

	match.SortOwnerMatches(matches)
	return matches, nil
}

func (d *OwnerDeduplicator) addPhoneMatch(matches []match.OwnerMatch, owner store.Owner) []match.OwnerMatch {
	for i := range matches {
		if matches[i].Owner.ID == owner.ID {
			if matches[i].Confidence < d.thresholds.PhoneMatchScore {
				matches[i].Confidence = d.thresholds.PhoneMatchScore
			}
			matches[i].MatchReason = "Name and phone match"
			matches[i].PhoneConflict = true
			return matches
		}
	}
	return append(matches, match.OwnerMatch{
		Owner:         owner,
		Confidence:    d.thresholds.PhoneMatchScore,
		MatchReason:   "Phone number match",
		PhoneConflict: true,
	})
}

// ResolvePhoneConflicts picks create or merge for an incoming owner. Only a
// best match at or above the merge floor merges. Phone and email always
// resolve to add_new.
func (d *OwnerDeduplicator) ResolvePhoneConflicts(data OwnerData, matches []match.OwnerMatch) match.ConflictResolution {
	if len(matches) == 0 {
		return match.ConflictResolution{Action: match.ResolveCreateNew}
	}

	best := matches[0]
	if best.Confidence >= d.thresholds.MergeFloor {
		// TODO: branch on PhoneConflict/EmailConflict once a keep-existing
		// resolution is agreed with the product owners
		return match.ConflictResolution{
			Action:          match.ResolveMerge,
			TargetOwnerID:   best.Owner.ID,
			PhoneResolution: match.ResolutionAddNew,
			EmailResolution: match.ResolutionAddNew,
		}
	}

	return match.ConflictResolution{Action: match.ResolveCreateNew}
}

// MergeOwnerData fills empty fields of an existing owner from incoming data.
// Nothing is written when no field changes.
func (d *OwnerDeduplicator) MergeOwnerData(ctx context.Context, existing store.Owner, incoming OwnerData) (*store.Owner, error) {
	patch, changed := MergeOwnerFields(existing, incoming)
	if !changed {
		return &existing, nil
	}

	updated, err := d.store.UpdateOwner(ctx, existing.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to merge owner %d: %w", existing.ID, err)
	}
	return updated, nil
}

// AddContactsToOwner attaches new contacts to an owner, skipping seeds
// without a phone or email and any whose normalized phone or lowercased
// email is already present. Returns the number of contacts inserted.
func (d *OwnerDeduplicator) AddContactsToOwner(ctx context.Context, ownerID int64, seeds []store.ContactSeed) (int, error) {
	existing, err := d.store.ListContacts(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	var toAdd []store.ContactSeed
	for _, seed := range seeds {
		phoneBlank, emailBlank := isBlank(seed.Phone), isBlank(seed.Email)
		if phoneBlank && emailBlank {
			continue
		}
		if !phoneBlank && hasPhone(existing, *seed.Phone) {
			continue
		}
		if !emailBlank && hasEmail(existing, *seed.Email) {
			continue
		}

		toAdd = append(toAdd, seed)
		// later seeds in the same batch are compared against this one too
		existing = append(existing, store.Contact{Phone: seed.Phone, Email: seed.Email})
	}

	if len(toAdd) == 0 {
		return 0, nil
	}
	return d.store.CreateContacts(ctx, ownerID, toAdd)
}

// ProcessOwner deduplicates one incoming owner, creating or merging it and
// attaching its contacts
func (d *OwnerDeduplicator) ProcessOwner(ctx context.Context, data OwnerData) (*OwnerOutcome, error) {
	// Explicit seeds go first so a legacy contact repeating one of them is
	// dropped as a duplicate
	seeds := make([]store.ContactSeed, 0, len(data.Contacts)+1)
	seeds = append(seeds, data.Contacts...)
	if legacy, ok := legacyContact(data); ok {
		seeds = append(seeds, legacy)
	}

	matches, err := d.FindPotentialDuplicates(ctx, data)
	if err != nil {
		return nil, err
	}

	resolution := d.ResolvePhoneConflicts(data, matches)
	if resolution.Action != match.ResolveMerge {
		return d.createOwner(ctx, data, seeds, matches)
	}

	target, err := d.store.GetOwner(ctx, resolution.TargetOwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMergeTargetNotFound
	}
	if err != nil {
		return nil, err
	}

	merged, err := d.MergeOwnerData(ctx, *target, data)
	if err != nil {
		return nil, err
	}

	added, err := d.AddContactsToOwner(ctx, merged.ID, seeds)
	if err != nil {
		return nil, err
	}
	if err := d.reloadContacts(ctx, merged); err != nil {
		return nil, err
	}

	d.logger.Debug("merged owner",
		zap.Int64("owner_id", merged.ID),
		zap.String("reason", matches[0].MatchReason),
		zap.Float64("confidence", matches[0].Confidence),
		zap.Int("contacts_added", added))

	return &OwnerOutcome{Owner: merged, Action: match.ActionMerged, Matches: matches, ContactsAdded: added}, nil
}

func (d *OwnerDeduplicator) createOwner(ctx context.Context, data OwnerData, seeds []store.ContactSeed, matches []match.OwnerMatch) (*OwnerOutcome, error) {
	owner := &store.Owner{
		FirstName:     data.FirstName,
		LastName:      data.LastName,
		FullName:      data.FullName,
		LLCContact:    data.LLCContact,
		StreetAddress: data.StreetAddress,
		City:          data.City,
		State:         data.State,
		ZipCode:       data.ZipCode,
	}
	if err := d.store.CreateOwner(ctx, owner); err != nil {
		return nil, err
	}

	added, err := d.AddContactsToOwner(ctx, owner.ID, seeds)
	if err != nil {
		return nil, err
	}
	if err := d.reloadContacts(ctx, owner); err != nil {
		return nil, err
	}

	return &OwnerOutcome{Owner: owner, Action: match.ActionCreated, Matches: matches, ContactsAdded: added}, nil
}

func (d *OwnerDeduplicator) reloadContacts(ctx context.Context, owner *store.Owner) error {
	contacts, err := d.store.ListContacts(ctx, owner.ID)
	if err != nil {
		return err
	}
	owner.Contacts = contacts
	return nil
}

// legacyContact turns the single phone/email fields into a contact seed
func legacyContact(data OwnerData) (store.ContactSeed, bool) {
	switch {
	case !isBlank(data.Phone):
		seed := store.ContactSeed{
			Phone:    ptr(normalize.NormalizePhone(*data.Phone)),
			Type:     store.ContactCell,
			Priority: 1,
		}
		if !isBlank(data.Email) {
			seed.Email = ptr(strings.TrimSpace(*data.Email))
		}
		return seed, true
	case !isBlank(data.Email):
		return store.ContactSeed{
			Email:    ptr(strings.TrimSpace(*data.Email)),
			Type:     store.ContactEmail,
			Priority: 1,
		}, true
	}
	return store.ContactSeed{}, false
}

func storedName(o store.Owner) string {
	if !isBlank(o.FullName) {
		return *o.FullName
	}
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

func hasPhone(contacts []store.Contact, phone string) bool {
	want := normalize.NormalizePhone(phone)
	if want == "" {
		return false
	}
	for _, c := range contacts {
		if c.Phone != nil && normalize.NormalizePhone(*c.Phone) == want {
			return true
		}
	}
	return false
}

func hasEmail(contacts []store.Contact, email string) bool {
	want := strings.ToLower(strings.TrimSpace(email))
	if want == "" {
		return false
	}
	for _, c := range contacts {
		if c.Email != nil && strings.ToLower(strings.TrimSpace(*c.Email)) == want {
			return true
		}
	}
	return false
}
