package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and dry runs
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state memoryState
	now   func() time.Time
}

type memoryState struct {
	owners         map[int64]Owner
	contacts       map[int64]Contact
	properties     map[int64]Property
	propertyOwners map[int64]map[int64]bool
	coordinates    map[int64]Coordinate
	notes          map[int64]Note
	nextID         int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			owners:         map[int64]Owner{},
			contacts:       map[int64]Contact{},
			properties:     map[int64]Property{},
			propertyOwners: map[int64]map[int64]bool{},
			coordinates:    map[int64]Coordinate{},
			notes:          map[int64]Note{},
		},
		now: time.Now,
	}
}

func (st *memoryState) clone() memoryState {
	c := memoryState{
		owners:         make(map[int64]Owner, len(st.owners)),
		contacts:       make(map[int64]Contact, len(st.contacts)),
		properties:     make(map[int64]Property, len(st.properties)),
		propertyOwners: make(map[int64]map[int64]bool, len(st.propertyOwners)),
		coordinates:    make(map[int64]Coordinate, len(st.coordinates)),
		notes:          make(map[int64]Note, len(st.notes)),
		nextID:         st.nextID,
	}
	for k, v := range st.owners {
		c.owners[k] = v
	}
	for k, v := range st.contacts {
		c.contacts[k] = v
	}
	for k, v := range st.properties {
		c.properties[k] = v
	}
	for k, v := range st.propertyOwners {
		links := make(map[int64]bool, len(v))
		for o := range v {
			links[o] = true
		}
		c.propertyOwners[k] = links
	}
	for k, v := range st.coordinates {
		c.coordinates[k] = v
	}
	for k, v := range st.notes {
		c.notes[k] = v
	}
	return c
}

func (s *MemoryStore) id() int64 {
	s.state.nextID++
	return s.state.nextID
}

// WithTx snapshots the store and restores it when fn fails.
// Transactions are serialized.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) ownerWithContacts(o Owner) Owner {
	o.Contacts = s.contactsFor(o.ID)
	return o
}

func (s *MemoryStore) contactsFor(ownerID int64) []Contact {
	contacts := []Contact{}
	for _, c := range s.state.contacts {
		if c.OwnerID == ownerID {
			contacts = append(contacts, c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].Type != contacts[j].Type {
			return contacts[i].Type < contacts[j].Type
		}
		if contacts[i].Priority != contacts[j].Priority {
			return contacts[i].Priority < contacts[j].Priority
		}
		return contacts[i].ID < contacts[j].ID
	})
	return contacts
}

func (s *MemoryStore) sortedOwners(keep func(Owner) bool) []Owner {
	var owners []Owner
	for _, o := range s.state.owners {
		if keep(o) {
			owners = append(owners, s.ownerWithContacts(o))
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].ID < owners[j].ID })
	return owners
}

func (s *MemoryStore) FindOwnersByName(ctx context.Context, fullName *string, firstName, lastName string) ([]Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedOwners(func(o Owner) bool {
		if fullName != nil && o.FullName != nil && *o.FullName == *fullName {
			return true
		}
		return o.FirstName == firstName && o.LastName == lastName
	}), nil
}

func (s *MemoryStore) FindOwnersByPhone(ctx context.Context, phone string) ([]Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedOwners(func(o Owner) bool {
		for _, c := range s.state.contacts {
			if c.OwnerID == o.ID && c.Phone != nil && strings.Contains(*c.Phone, phone) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) GetOwner(ctx context.Context, id int64) (*Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.state.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = s.ownerWithContacts(o)
	return &o, nil
}

func (s *MemoryStore) CreateOwner(ctx context.Context, owner *Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner.ID = s.id()
	owner.CreatedAt = s.now()
	owner.UpdatedAt = owner.CreatedAt
	stored := *owner
	stored.Contacts = nil
	s.state.owners[owner.ID] = stored
	return nil
}

func (s *MemoryStore) UpdateOwner(ctx context.Context, id int64, patch OwnerPatch) (*Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.state.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	setString(&o.LLCContact, patch.LLCContact)
	setString(&o.StreetAddress, patch.StreetAddress)
	setString(&o.City, patch.City)
	setString(&o.State, patch.State)
	setString(&o.ZipCode, patch.ZipCode)
	o.UpdatedAt = s.now()
	s.state.owners[id] = o

	o = s.ownerWithContacts(o)
	return &o, nil
}

func (s *MemoryStore) ListContacts(ctx context.Context, ownerID int64) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contactsFor(ownerID), nil
}

// CreateContacts mirrors the unique (owner_id, phone) and
// (owner_id, lower(email)) indexes of the SQL schema.
func (s *MemoryStore) CreateContacts(ctx context.Context, ownerID int64, seeds []ContactSeed) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, seed := range seeds {
		if s.contactExists(ownerID, seed.Phone, seed.Email) {
			continue
		}
		now := s.now()
		c := Contact{
			ID:        s.id(),
			OwnerID:   ownerID,
			Phone:     copyString(seed.Phone),
			Email:     copyString(seed.Email),
			Type:      seed.Type,
			Priority:  seed.Priority,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.state.contacts[c.ID] = c
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) contactExists(ownerID int64, phone, email *string) bool {
	for _, c := range s.state.contacts {
		if c.OwnerID != ownerID {
			continue
		}
		if phone != nil && c.Phone != nil && *c.Phone == *phone {
			return true
		}
		if email != nil && c.Email != nil && strings.EqualFold(*c.Email, *email) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateContact(ctx context.Context, contact *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact.ID = s.id()
	contact.CreatedAt = s.now()
	contact.UpdatedAt = contact.CreatedAt
	s.state.contacts[contact.ID] = *contact
	return nil
}

func (s *MemoryStore) UpdateContact(ctx context.Context, contact *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.state.contacts[contact.ID]
	if !ok {
		return ErrNotFound
	}
	contact.OwnerID = existing.OwnerID
	contact.CreatedAt = existing.CreatedAt
	contact.UpdatedAt = s.now()
	s.state.contacts[contact.ID] = *contact
	return nil
}

func (s *MemoryStore) DeleteContact(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.contacts, id)
	return nil
}

func (s *MemoryStore) FindPropertyExact(ctx context.Context, key PropertyKey) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.sortedProperties() {
		if p.StreetAddress == key.StreetAddress && p.City == key.City && p.ZipCode == key.ZipCode &&
			stateMatches(p.State, key.State) {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListPropertyCandidates(ctx context.Context, city string, zip int, state *string) ([]Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Property
	for _, p := range s.sortedProperties() {
		if p.City == city && p.ZipCode == zip && stateMatches(p.State, state) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetProperty(ctx context.Context, id int64) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.state.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProperties(ctx context.Context, ids []int64) ([]Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Property
	for _, p := range s.sortedProperties() {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPropertiesWithoutCoordinates(ctx context.Context, limit int) ([]Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Property
	for _, p := range s.sortedProperties() {
		if _, ok := s.state.coordinates[p.ID]; ok {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateProperty(ctx context.Context, p *Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.state.properties[p.ID] = *p
	return nil
}

func (s *MemoryStore) UpdateProperty(ctx context.Context, id int64, patch PropertyPatch) (*Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.StreetAddress != nil {
		p.StreetAddress = *patch.StreetAddress
	}
	if patch.City != nil {
		p.City = *patch.City
	}
	if patch.ZipCode != nil {
		p.ZipCode = *patch.ZipCode
	}
	setString(&p.State, patch.State)
	setString(&p.ParcelID, patch.ParcelID)
	if patch.NetOperatingIncome != nil {
		p.NetOperatingIncome = *patch.NetOperatingIncome
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.ReturnOnInvestment != nil {
		p.ReturnOnInvestment = *patch.ReturnOnInvestment
	}
	if patch.NumberOfUnits != nil {
		p.NumberOfUnits = *patch.NumberOfUnits
	}
	if patch.SquareFeet != nil {
		p.SquareFeet = *patch.SquareFeet
	}
	p.UpdatedAt = s.now()
	s.state.properties[id] = p
	return &p, nil
}

func (s *MemoryStore) ConnectOwner(ctx context.Context, propertyID, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.properties[propertyID]; !ok {
		return ErrNotFound
	}
	links := s.state.propertyOwners[propertyID]
	if links == nil {
		links = map[int64]bool{}
		s.state.propertyOwners[propertyID] = links
	}
	links[ownerID] = true
	return nil
}

// PropertyOwners lists owner IDs linked to a property
func (s *MemoryStore) PropertyOwners(propertyID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id := range s.state.propertyOwners[propertyID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *MemoryStore) GetCoordinate(ctx context.Context, propertyID int64) (*Coordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.state.coordinates[propertyID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) CreateCoordinate(ctx context.Context, c *Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.coordinates[c.PropertyID]; ok {
		return ErrDuplicate
	}
	c.UpdatedAt = s.now()
	s.state.coordinates[c.PropertyID] = *c
	return nil
}

func (s *MemoryStore) UpsertCoordinate(ctx context.Context, c *Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.UpdatedAt = s.now()
	s.state.coordinates[c.PropertyID] = *c
	return nil
}

func (s *MemoryStore) CreateNote(ctx context.Context, n *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.properties[n.PropertyID]; !ok {
		return ErrNotFound
	}
	n.ID = s.id()
	n.CreatedAt = s.now()
	n.UpdatedAt = n.CreatedAt
	s.state.notes[n.ID] = *n
	return nil
}

func (s *MemoryStore) UpdateNote(ctx context.Context, n *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.state.notes[n.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Content = n.Content
	existing.UpdatedAt = s.now()
	s.state.notes[n.ID] = existing
	*n = existing
	return nil
}

func (s *MemoryStore) DeleteNote(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.notes, id)
	return nil
}

// Notes lists the notes of a property in creation order
func (s *MemoryStore) Notes(propertyID int64) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notes []Note
	for _, n := range s.state.notes {
		if n.PropertyID == propertyID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

// Counts reports the number of stored owners, properties and contacts
func (s *MemoryStore) Counts() (owners, properties, contacts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.owners), len(s.state.properties), len(s.state.contacts)
}

func (s *MemoryStore) sortedProperties() []Property {
	out := make([]Property, 0, len(s.state.properties))
	for _, p := range s.state.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func stateMatches(have, want *string) bool {
	if want == nil {
		return true
	}
	return have != nil && *have == *want
}

func setString(dst **string, v *string) {
	if v != nil {
		*dst = copyString(v)
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
