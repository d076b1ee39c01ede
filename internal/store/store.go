// Package store persists invocation records and the per-role checkpoint.
//
// A record is always made durable before the checkpoint moves past it, so a crash
// between the two leaves the log ahead of the checkpoint, never behind it. Stores
// reconcile that case when they are opened.
package store

import (
	"context"
	"errors"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// ErrCheckpointRegressed is returned when a save would move the checkpoint backwards
var ErrCheckpointRegressed = errors.New("checkpoint cannot move backwards")

// CheckpointStore holds the number of scenarios fully processed for one role
type CheckpointStore interface {
	// Load returns the current checkpoint. Absent means 0.
	Load(ctx context.Context) (int, error)
	// Save durably replaces the checkpoint. Lower values are rejected.
	Save(ctx context.Context, done int) error
	// Clear removes the checkpoint after the feed has been fully processed
	Clear(ctx context.Context) error
}

// RecordLog is the append-only sink of invocation records
type RecordLog interface {
	// Append durably writes one record
	Append(ctx context.Context, rec *types.InvocationRecord) error
	// LastLogged returns the highest global index durably present in the active log
	LastLogged(ctx context.Context) (int, error)
	Close() error
}

// Store combines the record log and checkpoint for one role
type Store interface {
	CheckpointStore
	RecordLog
	// Commit appends rec and then advances the checkpoint to rec.GlobalIndex
	Commit(ctx context.Context, rec *types.InvocationRecord) error
	// Location describes where records go, for logs and summaries
	Location() string
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
