package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store on PostgreSQL through lib/pq
type PostgresStore struct {
	db *sql.DB
	q  querier
}

// NewPostgresStore creates a store on an open database handle
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// WithTx runs fn inside a database transaction
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.db == nil {
		// already inside a transaction
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const ownerColumns = `o.id, o.first_name, o.last_name, o.full_name, o.llc_contact,
	o.street_address, o.city, o.state, o.zip_code, o.created_at, o.updated_at`

func scanOwner(row interface{ Scan(...interface{}) error }) (Owner, error) {
	var o Owner
	var fullName, llc, street, city, state, zip sql.NullString
	err := row.Scan(&o.ID, &o.FirstName, &o.LastName, &fullName, &llc,
		&street, &city, &state, &zip, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.FullName = nullString(fullName)
	o.LLCContact = nullString(llc)
	o.StreetAddress = nullString(street)
	o.City = nullString(city)
	o.State = nullString(state)
	o.ZipCode = nullString(zip)
	return o, nil
}

func (s *PostgresStore) queryOwners(ctx context.Context, query string, args ...interface{}) ([]Owner, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range owners {
		contacts, err := s.ListContacts(ctx, owners[i].ID)
		if err != nil {
			return nil, err
		}
		owners[i].Contacts = contacts
	}
	return owners, nil
}

// FindOwnersByName looks owners up by full name or first/last pair
func (s *PostgresStore) FindOwnersByName(ctx context.Context, fullName *string, firstName, lastName string) ([]Owner, error) {
	owners, err := s.queryOwners(ctx, `
		SELECT `+ownerColumns+`
		FROM owners o
		WHERE o.full_name = $1 OR (o.first_name = $2 AND o.last_name = $3)
		ORDER BY o.id
	`, nullable(fullName), firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to find owners by name: %w", err)
	}
	return owners, nil
}

// FindOwnersByPhone looks owners up through their contact phones
func (s *PostgresStore) FindOwnersByPhone(ctx context.Context, phone string) ([]Owner, error) {
	owners, err := s.queryOwners(ctx, `
		SELECT `+ownerColumns+`
		FROM owners o
		WHERE EXISTS (
			SELECT 1 FROM contacts c
			WHERE c.owner_id = o.id AND position($1 in c.phone) > 0
		)
		ORDER BY o.id
	`, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to find owners by phone: %w", err)
	}
	return owners, nil
}

// GetOwner loads one owner with contacts
func (s *PostgresStore) GetOwner(ctx context.Context, id int64) (*Owner, error) {
	owners, err := s.queryOwners(ctx, `SELECT `+ownerColumns+` FROM owners o WHERE o.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner %d: %w", id, err)
	}
	if len(owners) == 0 {
		return nil, ErrNotFound
	}
	return &owners[0], nil
}

// CreateOwner inserts an owner and sets its ID and timestamps
func (s *PostgresStore) CreateOwner(ctx context.Context, owner *Owner) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO owners (
			first_name, last_name, full_name, llc_contact,
			street_address, city, state, zip_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, owner.FirstName, owner.LastName, nullable(owner.FullName), nullable(owner.LLCContact),
		nullable(owner.StreetAddress), nullable(owner.City), nullable(owner.State),
		nullable(owner.ZipCode)).Scan(&owner.ID, &owner.CreatedAt, &owner.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert owner: %w", err)
	}
	return nil
}

// UpdateOwner applies a patch and returns the updated owner
func (s *PostgresStore) UpdateOwner(ctx context.Context, id int64, patch OwnerPatch) (*Owner, error) {
	set := newSetBuilder()
	set.add("llc_contact", patch.LLCContact)
	set.add("street_address", patch.StreetAddress)
	set.add("city", patch.City)
	set.add("state", patch.State)
	set.add("zip_code", patch.ZipCode)

	if err := s.applyUpdate(ctx, "owners", id, set); err != nil {
		return nil, fmt.Errorf("failed to update owner %d: %w", id, err)
	}
	return s.GetOwner(ctx, id)
}

// ListContacts returns an owner's contacts ordered by type and priority
func (s *PostgresStore) ListContacts(ctx context.Context, ownerID int64) ([]Contact, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, phone, email, type, label, priority, notes, created_at, updated_at
		FROM contacts
		WHERE owner_id = $1
		ORDER BY type, priority, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var c Contact
		var phone, email, label, notes sql.NullString
		if err := rows.Scan(&c.ID, &c.OwnerID, &phone, &email, &c.Type, &label,
			&c.Priority, &notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		c.Phone = nullString(phone)
		c.Email = nullString(email)
		c.Label = nullString(label)
		c.Notes = nullString(notes)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// CreateContacts inserts all seeds in one statement. The unique indexes on
// (owner_id, phone) and (owner_id, lower(email)) drop duplicates.
func (s *PostgresStore) CreateContacts(ctx context.Context, ownerID int64, seeds []ContactSeed) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}

	phones := make([]sql.NullString, len(seeds))
	emails := make([]sql.NullString, len(seeds))
	types := make([]string, len(seeds))
	priorities := make([]int64, len(seeds))
	for i, seed := range seeds {
		phones[i] = toNullString(seed.Phone)
		emails[i] = toNullString(seed.Email)
		types[i] = seed.Type
		priorities[i] = int64(seed.Priority)
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO contacts (owner_id, phone, email, type, priority)
		SELECT $1, c.phone, c.email, c.type, c.priority
		FROM unnest($2::text[], $3::text[], $4::text[], $5::int[]) AS c(phone, email, type, priority)
		ON CONFLICT DO NOTHING
	`, ownerID, pq.Array(phones), pq.Array(emails), pq.Array(types), pq.Array(priorities))
	if err != nil {
		return 0, fmt.Errorf("failed to insert contacts: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CreateContact inserts a single manually edited contact
func (s *PostgresStore) CreateContact(ctx context.Context, contact *Contact) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO contacts (owner_id, phone, email, type, label, priority, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, contact.OwnerID, nullable(contact.Phone), nullable(contact.Email), contact.Type,
		nullable(contact.Label), contact.Priority, nullable(contact.Notes)).
		Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// UpdateContact overwrites every editable field of a contact
func (s *PostgresStore) UpdateContact(ctx context.Context, contact *Contact) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE contacts
		SET phone = $2, email = $3, type = $4, label = $5, priority = $6, notes = $7,
			updated_at = NOW()
		WHERE id = $1
	`, contact.ID, nullable(contact.Phone), nullable(contact.Email), contact.Type,
		nullable(contact.Label), contact.Priority, nullable(contact.Notes))
	if err != nil {
		return fmt.Errorf("failed to update contact %d: %w", contact.ID, err)
	}
	return requireRow(res)
}

// DeleteContact removes a contact
func (s *PostgresStore) DeleteContact(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact %d: %w", id, err)
	}
	return requireRow(res)
}

// setBuilder accumulates "column = $n" fragments for partial updates
type setBuilder struct {
	cols []string
	args []interface{}
}

func newSetBuilder() *setBuilder {
	return &setBuilder{}
}

func (b *setBuilder) add(col string, value interface{}) {
	switch v := value.(type) {
	case *string:
		if v == nil {
			return
		}
		value = *v
	case *int:
		if v == nil {
			return
		}
		value = *v
	case *float64:
		if v == nil {
			return
		}
		value = *v
	}
	b.args = append(b.args, value)
	b.cols = append(b.cols, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (s *PostgresStore) applyUpdate(ctx context.Context, table string, id int64, set *setBuilder) error {
	if len(set.cols) == 0 {
		return nil
	}
	args := append(set.args, id)
	query := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d",
		table, strings.Join(set.cols, ", "), len(args))

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullable converts optional values to driver values, mapping nil to NULL
func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
