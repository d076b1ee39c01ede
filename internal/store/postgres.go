package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/db"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// PostgresStore keeps records and the checkpoint in PostgreSQL. Commit writes both in
// one transaction.
type PostgresStore struct {
	db     *db.DB
	role   types.Role
	logger *zap.Logger

	mu         sync.Mutex
	seriesID   uuid.UUID
	done       int
	lastLogged int
}

// OpenPostgresStore resumes the role's active series or starts a new one. The store
// takes ownership of database and closes it on Close.
func OpenPostgresStore(ctx context.Context, database *db.DB, role types.Role, model string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PostgresStore{db: database, role: role, logger: logger.With(zap.String("role", string(role)))}

	cp, err := database.GetCheckpoint(ctx, string(role))
	if err != nil {
		return nil, err
	}

	if cp == nil {
		id, err := database.StartSeries(ctx, string(role), model)
		if err != nil {
			return nil, err
		}
		s.seriesID = id
		s.logger.Info("started audit series", zap.String("series", id.String()))
		return s, nil
	}

	s.seriesID, s.done = cp.SeriesID, cp.Done
	last, err := database.LastRecordIndex(ctx, cp.SeriesID)
	if err != nil {
		return nil, err
	}
	s.lastLogged = last
	if last > s.done {
		s.logger.Info("checkpoint behind records, advancing",
			zap.Int("checkpoint", s.done),
			zap.Int("last_logged", last))
		if err := database.SaveCheckpoint(ctx, string(role), last); err != nil {
			return nil, err
		}
		s.done = last
	}
	s.logger.Info("resuming audit series", zap.String("series", s.seriesID.String()), zap.Int("done", s.done))
	return s, nil
}

// Load returns the current checkpoint
func (s *PostgresStore) Load(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, nil
}

// Save moves the checkpoint forward
func (s *PostgresStore) Save(ctx context.Context, done int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if done < s.done {
		return fmt.Errorf("save %d below %d: %w", done, s.done, ErrCheckpointRegressed)
	}
	if err := s.db.SaveCheckpoint(ctx, string(s.role), done); err != nil {
		return mapStale(err)
	}
	s.done = done
	return nil
}

// Clear deletes the checkpoint and completes the series
func (s *PostgresStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.ClearCheckpoint(ctx, string(s.role)); err != nil {
		return err
	}
	s.done = 0
	return nil
}

// Append stores rec without advancing the checkpoint
func (s *PostgresStore) Append(ctx context.Context, rec *types.InvocationRecord) error {
	in, err := recordInput(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.InsertRecord(ctx, s.seriesID, in); err != nil {
		return err
	}
	s.lastLogged = max(s.lastLogged, rec.GlobalIndex)
	return nil
}

// Commit stores rec and advances the checkpoint atomically
func (s *PostgresStore) Commit(ctx context.Context, rec *types.InvocationRecord) error {
	in, err := recordInput(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.GlobalIndex <= s.done {
		return fmt.Errorf("record %d at or below checkpoint %d: %w", rec.GlobalIndex, s.done, ErrCheckpointRegressed)
	}
	if err := s.db.CommitRecord(ctx, s.seriesID, in); err != nil {
		return mapStale(err)
	}
	s.done = rec.GlobalIndex
	s.lastLogged = rec.GlobalIndex
	return nil
}

// LastLogged returns the highest global index stored in the active series
func (s *PostgresStore) LastLogged(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLogged, nil
}

// Location names the active series
func (s *PostgresStore) Location() string {
	return seriesLocation(s.seriesID.String(), "")
}

// Close releases the database pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func recordInput(rec *types.InvocationRecord) (*db.RecordInput, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %d: %w", rec.GlobalIndex, err)
	}
	return &db.RecordInput{
		GlobalIndex:        rec.GlobalIndex,
		RunID:              rec.RunID,
		ScenarioID:         rec.ScenarioID,
		Role:               string(rec.Role),
		PromptStyle:        rec.PromptStyle,
		ResponseText:       rec.ResponseText,
		SelectedPersonaIDs: rec.SelectedPersonaIDs,
		Payload:            payload,
	}, nil
}

func mapStale(err error) error {
	if errors.Is(err, db.ErrStaleCheckpoint) {
		return fmt.Errorf("%w: %w", ErrCheckpointRegressed, err)
	}
	return err
}
