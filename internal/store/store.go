package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get lookups when no row exists
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a create collides with an existing row
var ErrDuplicate = errors.New("record already exists")

// Contact types used by ingestion and manual editing
const (
	ContactEmail    = "Email"
	ContactCell     = "Cell"
	ContactLandline = "Landline"
	ContactHome     = "Home"
	ContactWork     = "Work"
	ContactFax      = "Fax"
	ContactBusiness = "Business"
	ContactPersonal = "Personal"
)

// Contact labels describe the relationship of a contact to the owner.
// Only set through manual edits.
var ContactLabels = []string{
	"primary", "secondary", "husband", "wife", "son", "daughter",
	"property_manager", "attorney", "tenant", "grandson", "granddaughter", "other",
}

// Coordinate confidence levels
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Owner is a person or business that owns one or more properties
type Owner struct {
	ID            int64     `json:"id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	FullName      *string   `json:"fullName,omitempty"`
	LLCContact    *string   `json:"llcContact,omitempty"`
	StreetAddress *string   `json:"streetAddress,omitempty"`
	City          *string   `json:"city,omitempty"`
	State         *string   `json:"state,omitempty"`
	ZipCode       *string   `json:"zipCode,omitempty"`
	Contacts      []Contact `json:"contacts"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Contact is a phone number or email address belonging to an owner
type Contact struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"ownerId"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Type      string    `json:"type"`
	Label     *string   `json:"label,omitempty"`
	Priority  int       `json:"priority"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContactSeed is a contact derived from an upload row before it is attached
// to an owner. Exactly one of Phone or Email is set for upload data.
type ContactSeed struct {
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Type     string  `json:"type"`
	Priority int     `json:"priority"`
}

// Property is a parcel of real estate, shared between owners
type Property struct {
	ID                 int64     `json:"id"`
	StreetAddress      string    `json:"streetAddress"`
	City               string    `json:"city"`
	ZipCode            int       `json:"zipCode"`
	State              *string   `json:"state,omitempty"`
	ParcelID           *string   `json:"parcelId,omitempty"`
	NetOperatingIncome float64   `json:"netOperatingIncome"`
	Price              float64   `json:"price"`
	ReturnOnInvestment float64   `json:"returnOnInvestment"`
	NumberOfUnits      int       `json:"numberOfUnits"`
	SquareFeet         int       `json:"squareFeet"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// PropertyKey identifies a property by address
type PropertyKey struct {
	StreetAddress string
	City          string
	ZipCode       int
	State         *string
}

// Coordinate holds the geocoded position of a property
type Coordinate struct {
	PropertyID int64     `json:"propertyId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Confidence string    `json:"confidence"`
	PlaceID    *string   `json:"placeId,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Note is free text attached to a property
type Note struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"propertyId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// OwnerPatch lists owner fields to set. Nil fields are left untouched.
type OwnerPatch struct {
	LLCContact    *string
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
}

// Empty reports whether the patch changes nothing
func (p OwnerPatch) Empty() bool {
	return p.LLCContact == nil && p.StreetAddress == nil && p.City == nil &&
		p.State == nil && p.ZipCode == nil
}

// PropertyPatch lists property fields to set. Nil fields are left untouched.
type PropertyPatch struct {
	StreetAddress      *string  `json:"streetAddress,omitempty"`
	City               *string  `json:"city,omitempty"`
	ZipCode            *int     `json:"zipCode,omitempty"`
	State              *string  `json:"state,omitempty"`
	ParcelID           *string  `json:"parcelId,omitempty"`
	NetOperatingIncome *float64 `json:"netOperatingIncome,omitempty"`
	Price              *float64 `json:"price,omitempty"`
	ReturnOnInvestment *float64 `json:"returnOnInvestment,omitempty"`
	NumberOfUnits      *int     `json:"numberOfUnits,omitempty"`
	SquareFeet         *int     `json:"squareFeet,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p PropertyPatch) Empty() bool {
	return p.StreetAddress == nil && p.City == nil && p.ZipCode == nil &&
		p.State == nil && p.ParcelID == nil && p.NetOperatingIncome == nil &&
		p.Price == nil && p.ReturnOnInvestment == nil && p.NumberOfUnits == nil &&
		p.SquareFeet == nil
}

// OwnerStore persists owners
type OwnerStore interface {
	// FindOwnersByName returns owners whose full name equals fullName, or whose
	// first and last name both match. Contacts are loaded.
	FindOwnersByName(ctx context.Context, fullName *string, firstName, lastName string) ([]Owner, error)
	// FindOwnersByPhone returns owners with any contact phone containing phone.
	FindOwnersByPhone(ctx context.Context, phone string) ([]Owner, error)
	GetOwner(ctx context.Context, id int64) (*Owner, error)
	CreateOwner(ctx context.Context, owner *Owner) error
	UpdateOwner(ctx context.Context, id int64, patch OwnerPatch) (*Owner, error)
}

// ContactStore persists owner contacts
type ContactStore interface {
	ListContacts(ctx context.Context, ownerID int64) ([]Contact, error)
	// CreateContacts bulk inserts seeds for an owner, silently skipping rows
	// that collide with an existing phone or email. Returns rows inserted.
	CreateContacts(ctx context.Context, ownerID int64, seeds []ContactSeed) (int, error)
	CreateContact(ctx context.Context, contact *Contact) error
	UpdateContact(ctx context.Context, contact *Contact) error
	DeleteContact(ctx context.Context, id int64) error
}

// PropertyStore persists properties and their owner links
type PropertyStore interface {
	// FindPropertyExact returns nil without error when nothing matches.
	FindPropertyExact(ctx context.Context, key PropertyKey) (*Property, error)
	// ListPropertyCandidates returns properties in the same city and zip,
	// and state when given.
	ListPropertyCandidates(ctx context.Context, city string, zip int, state *string) ([]Property, error)
	GetProperty(ctx context.Context, id int64) (*Property, error)
	ListProperties(ctx context.Context, ids []int64) ([]Property, error)
	ListPropertiesWithoutCoordinates(ctx context.Context, limit int) ([]Property, error)
	CreateProperty(ctx context.Context, property *Property) error
	UpdateProperty(ctx context.Context, id int64, patch PropertyPatch) (*Property, error)
	ConnectOwner(ctx context.Context, propertyID, ownerID int64) error
}

// CoordinateStore persists geocoding results
type CoordinateStore interface {
	// GetCoordinate returns nil without error when the property has none.
	GetCoordinate(ctx context.Context, propertyID int64) (*Coordinate, error)
	CreateCoordinate(ctx context.Context, coord *Coordinate) error
	UpsertCoordinate(ctx context.Context, coord *Coordinate) error
}

// NoteStore persists property notes
type NoteStore interface {
	CreateNote(ctx context.Context, note *Note) error
	UpdateNote(ctx context.Context, note *Note) error
	DeleteNote(ctx context.Context, id int64) error
}

// Store is the full persistence surface used by the ingestion services
type Store interface {
	OwnerStore
	ContactStore
	PropertyStore
	CoordinateStore
	NoteStore

	// WithTx runs fn against a store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
