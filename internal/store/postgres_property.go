package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const propertyColumns = `id, street_address, city, zip_code, state, parcel_id,
	net_operating_income, price, return_on_investment, number_of_units, square_feet,
	created_at, updated_at`

func scanProperty(row interface{ Scan(...interface{}) error }) (Property, error) {
	var p Property
	var state, parcel sql.NullString
	err := row.Scan(&p.ID, &p.StreetAddress, &p.City, &p.ZipCode, &state, &parcel,
		&p.NetOperatingIncome, &p.Price, &p.ReturnOnInvestment, &p.NumberOfUnits, &p.SquareFeet,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.State = nullString(state)
	p.ParcelID = nullString(parcel)
	return p, nil
}

func (s *PostgresStore) queryProperties(ctx context.Context, query string, args ...interface{}) ([]Property, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// FindPropertyExact matches street, city and zip exactly, plus state when given
func (s *PostgresStore) FindPropertyExact(ctx context.Context, key PropertyKey) (*Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties
		WHERE street_address = $1 AND city = $2 AND zip_code = $3`
	args := []interface{}{key.StreetAddress, key.City, key.ZipCode}
	if key.State != nil {
		query += ` AND state = $4`
		args = append(args, *key.State)
	}
	query += ` ORDER BY id LIMIT 1`

	p, err := scanProperty(s.q.QueryRowContext(ctx, query, args...))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find property: %w", err)
	}
	return &p, nil
}

// ListPropertyCandidates returns fuzzy match candidates sharing city and zip
func (s *PostgresStore) ListPropertyCandidates(ctx context.Context, city string, zip int, state *string) ([]Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE city = $1 AND zip_code = $2`
	args := []interface{}{city, zip}
	if state != nil {
		query += ` AND state = $3`
		args = append(args, *state)
	}
	query += ` ORDER BY id`

	properties, err := s.queryProperties(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list property candidates: %w", err)
	}
	return properties, nil
}

// GetProperty loads one property
func (s *PostgresStore) GetProperty(ctx context.Context, id int64) (*Property, error) {
	p, err := scanProperty(s.q.QueryRowContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property %d: %w", id, err)
	}
	return &p, nil
}

// ListProperties loads the given properties in id order
func (s *PostgresStore) ListProperties(ctx context.Context, ids []int64) ([]Property, error) {
	properties, err := s.queryProperties(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return properties, nil
}

// ListPropertiesWithoutCoordinates returns up to limit properties that have
// never been geocoded
func (s *PostgresStore) ListPropertiesWithoutCoordinates(ctx context.Context, limit int) ([]Property, error) {
	properties, err := s.queryProperties(ctx, `
		SELECT `+propertyColumns+` FROM properties p
		WHERE NOT EXISTS (SELECT 1 FROM coordinates c WHERE c.property_id = p.id)
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ungeocoded properties: %w", err)
	}
	return properties, nil
}

// CreateProperty inserts a property and sets its ID and timestamps
func (s *PostgresStore) CreateProperty(ctx context.Context, p *Property) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO properties (
			street_address, city, zip_code, state, parcel_id,
			net_operating_income, price, return_on_investment, number_of_units, square_feet
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, p.StreetAddress, p.City, p.ZipCode, nullable(p.State), nullable(p.ParcelID),
		p.NetOperatingIncome, p.Price, p.ReturnOnInvestment, p.NumberOfUnits, p.SquareFeet).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

// UpdateProperty applies a patch and returns the updated property
func (s *PostgresStore) UpdateProperty(ctx context.Context, id int64, patch PropertyPatch) (*Property, error) {
	set := newSetBuilder()
	set.add("street_address", patch.StreetAddress)
	set.add("city", patch.City)
	set.add("zip_code", patch.ZipCode)
	set.add("state", patch.State)
	set.add("parcel_id", patch.ParcelID)
	set.add("net_operating_income", patch.NetOperatingIncome)
	set.add("price", patch.Price)
	set.add("return_on_investment", patch.ReturnOnInvestment)
	set.add("number_of_units", patch.NumberOfUnits)
	set.add("square_feet", patch.SquareFeet)

	if err := s.applyUpdate(ctx, "properties", id, set); err != nil {
		return nil, fmt.Errorf("failed to update property %d: %w", id, err)
	}
	return s.GetProperty(ctx, id)
}

// ConnectOwner links an owner to a property. Linking twice is a no-op.
func (s *PostgresStore) ConnectOwner(ctx context.Context, propertyID, ownerID int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO property_owners (property_id, owner_id)
		VALUES ($1, $2)
		ON CONFLICT (property_id, owner_id) DO NOTHING
	`, propertyID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to connect owner %d to property %d: %w", ownerID, propertyID, err)
	}
	return nil
}

// GetCoordinate returns the stored coordinate for a property, if any
func (s *PostgresStore) GetCoordinate(ctx context.Context, propertyID int64) (*Coordinate, error) {
	var c Coordinate
	var placeID sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT property_id, latitude, longitude, confidence, place_id, updated_at
		FROM coordinates WHERE property_id = $1
	`, propertyID).Scan(&c.PropertyID, &c.Latitude, &c.Longitude, &c.Confidence, &placeID, &c.UpdatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coordinate for property %d: %w", propertyID, err)
	}
	c.PlaceID = nullString(placeID)
	return &c, nil
}

// CreateCoordinate inserts a new coordinate row
func (s *PostgresStore) CreateCoordinate(ctx context.Context, c *Coordinate) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO coordinates (property_id, latitude, longitude, confidence, place_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING updated_at
	`, c.PropertyID, c.Latitude, c.Longitude, c.Confidence, nullable(c.PlaceID)).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert coordinate: %w", err)
	}
	return nil
}

// UpsertCoordinate inserts or replaces the coordinate of a property
func (s *PostgresStore) UpsertCoordinate(ctx context.Context, c *Coordinate) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO coordinates (property_id, latitude, longitude, confidence, place_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (property_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			confidence = EXCLUDED.confidence,
			place_id = EXCLUDED.place_id,
			updated_at = NOW()
		RETURNING updated_at
	`, c.PropertyID, c.Latitude, c.Longitude, c.Confidence, nullable(c.PlaceID)).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert coordinate: %w", err)
	}
	return nil
}

// CreateNote inserts a property note
func (s *PostgresStore) CreateNote(ctx context.Context, n *Note) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO notes (property_id, content) VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, n.PropertyID, n.Content).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// UpdateNote replaces the content of a note
func (s *PostgresStore) UpdateNote(ctx context.Context, n *Note) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notes SET content = $2, updated_at = NOW() WHERE id = $1`, n.ID, n.Content)
	if err != nil {
		return fmt.Errorf("failed to update note %d: %w", n.ID, err)
	}
	return requireRow(res)
}

// DeleteNote removes a note
func (s *PostgresStore) DeleteNote(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note %d: %w", id, err)
	}
	return requireRow(res)
}
