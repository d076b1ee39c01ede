package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// -----------------------------------------------------------------------------
// Run Methods
// -----------------------------------------------------------------------------

// StartSeries creates a new audit run for role and points the role's checkpoint at it with done = 0
func (db *DB) StartSeries(ctx context.Context, role, model string) (uuid.UUID, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_runs (id, role, model, status) VALUES ($1, $2, $3, $4)`,
		id, role, model, RunStatusRunning,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create audit run: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_checkpoints (role, series_id, done) VALUES ($1, $2, 0)
		 ON CONFLICT (role) DO UPDATE SET series_id = $2, done = 0, updated_at = NOW()`,
		role, id,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to reset checkpoint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// GetAuditRun retrieves an audit run by ID
func (db *DB) GetAuditRun(ctx context.Context, id uuid.UUID) (*AuditRun, error) {
	var run AuditRun
	err := db.pool.QueryRow(ctx,
		`SELECT id, role, model, status, created_at, completed_at FROM audit_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Role, &run.Model, &run.Status, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get audit run: %w", err)
	}
	return &run, nil
}

// LatestSeries returns the most recent audit run of role, or nil
func (db *DB) LatestSeries(ctx context.Context, role string) (*AuditRun, error) {
	var run AuditRun
	err := db.pool.QueryRow(ctx,
		`SELECT id, role, model, status, created_at, completed_at
		 FROM audit_runs WHERE role = $1 ORDER BY created_at DESC LIMIT 1`,
		role,
	).Scan(&run.ID, &run.Role, &run.Model, &run.Status, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest audit run: %w", err)
	}
	return &run, nil
}

// -----------------------------------------------------------------------------
// Checkpoint Methods
// -----------------------------------------------------------------------------

// GetCheckpoint returns the role's checkpoint, or nil when the role has none
func (db *DB) GetCheckpoint(ctx context.Context, role string) (*Checkpoint, error) {
	var cp Checkpoint
	err := db.pool.QueryRow(ctx,
		`SELECT role, series_id, done, updated_at FROM audit_checkpoints WHERE role = $1`,
		role,
	).Scan(&cp.Role, &cp.SeriesID, &cp.Done, &cp.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint moves the role's checkpoint forward to done.
// It returns ErrStaleCheckpoint when the stored value is already higher.
func (db *DB) SaveCheckpoint(ctx context.Context, role string, done int) error {
	return saveCheckpoint(ctx, db.pool, role, done)
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func saveCheckpoint(ctx context.Context, q querier, role string, done int) error {
	tag, err := q.Exec(ctx,
		`UPDATE audit_checkpoints SET done = $2, updated_at = NOW() WHERE role = $1 AND done <= $2`,
		role, done,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %s done=%d: %w", role, done, ErrStaleCheckpoint)
	}
	return nil
}

// ClearCheckpoint removes the role's checkpoint and marks its series completed
func (db *DB) ClearCheckpoint(ctx context.Context, role string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seriesID uuid.UUID
	err = tx.QueryRow(ctx,
		`DELETE FROM audit_checkpoints WHERE role = $1 RETURNING series_id`, role,
	).Scan(&seriesID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE audit_runs SET status = $1, completed_at = NOW() WHERE id = $2`,
		RunStatusCompleted, seriesID,
	); err != nil {
		return fmt.Errorf("failed to complete audit run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Record Methods
// -----------------------------------------------------------------------------

// InsertRecord stores a record without touching the checkpoint
func (db *DB) InsertRecord(ctx context.Context, seriesID uuid.UUID, rec *RecordInput) error {
	return insertRecord(ctx, db.pool, seriesID, rec)
}

// CommitRecord inserts the record and advances the role's checkpoint to its
// global index in one transaction.
func (db *DB) CommitRecord(ctx context.Context, seriesID uuid.UUID, rec *RecordInput) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertRecord(ctx, tx, seriesID, rec); err != nil {
		return err
	}
	if err := saveCheckpoint(ctx, tx, rec.Role, rec.GlobalIndex); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertRecord(ctx context.Context, q querier, seriesID uuid.UUID, rec *RecordInput) error {
	selected := []byte("[]")
	if rec.SelectedPersonaIDs != nil {
		var err error
		selected, err = json.Marshal(rec.SelectedPersonaIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal selection: %w", err)
		}
	}

	if _, err := q.Exec(ctx,
		`INSERT INTO invocation_records
		     (series_id, global_index, run_id, scenario_id, role, prompt_style,
		      response_text, selected_persona_ids, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		seriesID, rec.GlobalIndex, rec.RunID, rec.ScenarioID, rec.Role, rec.PromptStyle,
		rec.ResponseText, selected, rec.Payload,
	); err != nil {
		return fmt.Errorf("failed to insert record %d: %w", rec.GlobalIndex, err)
	}
	return nil
}

// LastRecordIndex returns the highest global index stored for the series, or 0
func (db *DB) LastRecordIndex(ctx context.Context, seriesID uuid.UUID) (int, error) {
	var last int
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(global_index), 0) FROM invocation_records WHERE series_id = $1`,
		seriesID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to get last record index: %w", err)
	}
	return last, nil
}

// ListRecordSummaries returns the accounting view of every record in the series, by global index
func (db *DB) ListRecordSummaries(ctx context.Context, seriesID uuid.UUID) ([]RecordSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT global_index, response_text = '' FROM invocation_records
		 WHERE series_id = $1 ORDER BY global_index`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []RecordSummary
	for rows.Next() {
		var s RecordSummary
		if err := rows.Scan(&s.GlobalIndex, &s.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return out, nil
}
