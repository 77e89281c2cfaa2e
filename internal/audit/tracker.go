package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker records upload runs and the reconciliation decisions made while
// processing them
type Tracker struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTracker creates a new audit tracker
func NewTracker(db *sql.DB, logger *zap.Logger) *Tracker {
	return &Tracker{db: db, logger: logger}
}

// Decision is one create-or-merge outcome for an owner or property
type Decision struct {
	UploadID   uuid.UUID
	Row        int
	Entity     string // "owner" or "property"
	EntityID   int64
	Action     string // "created" or "merged"
	Confidence float64
	Reason     string
	Candidates int
	Details    map[string]interface{}
	DecidedAt  time.Time
}

// RunSummary is the final accounting of an upload run
type RunSummary struct {
	Success            bool
	Message            string
	ProcessedRows      int
	ErrorRows          int
	DuplicateRows      int
	CreatedOwners      int
	MergedOwners       int
	CreatedProperties  int
	MergedProperties   int
	CreatedContacts    int
	GeocodedProperties int
}

// StartRun registers a new upload run
func (t *Tracker) StartRun(ctx context.Context, uploadID uuid.UUID, source, format string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO upload_runs (upload_id, source_name, format, started_at)
		VALUES ($1, $2, $3, $4)
	`, uploadID, source, format, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert upload run: %w", err)
	}
	return nil
}

// RecordDecisions saves the decisions made for one row in a single
// transaction
func (t *Tracker) RecordDecisions(ctx context.Context, decisions []Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range decisions {
		details, err := json.Marshal(d.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal decision details: %w", err)
		}
		decidedAt := d.DecidedAt
		if decidedAt.IsZero() {
			decidedAt = time.Now()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reconciliation_audit (
				upload_id, row_number, entity, entity_id, action,
				confidence, reason, candidates, details, decided_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, d.UploadID, d.Row, d.Entity, d.EntityID, d.Action,
			d.Confidence, d.Reason, d.Candidates, details, decidedAt)
		if err != nil {
			return fmt.Errorf("failed to insert %s decision: %w", d.Entity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decisions: %w", err)
	}

	t.logger.Debug("recorded decisions",
		zap.String("upload_id", decisions[0].UploadID.String()),
		zap.Int("row", decisions[0].Row),
		zap.Int("count", len(decisions)))
	return nil
}

// CompleteRun stores the final counters of an upload run
func (t *Tracker) CompleteRun(ctx context.Context, uploadID uuid.UUID, summary RunSummary) error {
	res, err := t.db.ExecContext(ctx, `
		UPDATE upload_runs SET
			completed_at = $2,
			success = $3,
			message = $4,
			processed_rows = $5,
			error_rows = $6,
			duplicate_rows = $7,
			created_owners = $8,
			merged_owners = $9,
			created_properties = $10,
			merged_properties = $11,
			created_contacts = $12,
			geocoded_properties = $13
		WHERE upload_id = $1
	`, uploadID, time.Now(), summary.Success, summary.Message, summary.ProcessedRows,
		summary.ErrorRows, summary.DuplicateRows, summary.CreatedOwners, summary.MergedOwners,
		summary.CreatedProperties, summary.MergedProperties, summary.CreatedContacts,
		summary.GeocodedProperties)
	if err != nil {
		return fmt.Errorf("failed to complete upload run: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("upload run %s not found", uploadID)
	}
	return nil
}

// RunHistoryEntry is one decision returned by DecisionHistory
type RunHistoryEntry struct {
	Row        int       `json:"row"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entityId"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	DecidedAt  time.Time `json:"decidedAt"`
}

// DecisionHistory lists the decisions of an upload in row order
func (t *Tracker) DecisionHistory(ctx context.Context, uploadID uuid.UUID) ([]RunHistoryEntry, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT row_number, entity, entity_id, action, confidence, reason, decided_at
		FROM reconciliation_audit
		WHERE upload_id = $1
		ORDER BY row_number, id
	`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision history: %w", err)
	}
	defer rows.Close()

	var history []RunHistoryEntry
	for rows.Next() {
		var e RunHistoryEntry
		if err := rows.Scan(&e.Row, &e.Entity, &e.EntityID, &e.Action, &e.Confidence, &e.Reason, &e.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}
