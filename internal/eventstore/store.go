// Package eventstore persists build history: every task run and transform outcome
// published on the event bus is appended to a SQLite table and can be summarised per
// build for the history command.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving history records.
type Store interface {
	// Append adds a new record to the store.
	Append(ctx context.Context, rec Record) error

	// GetByBuildID retrieves all records of one task run, oldest first.
	GetByBuildID(ctx context.Context, buildID string) ([]Record, error)

	// GetRange retrieves records within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Record, error)

	// RecentBuildIDs returns the IDs of the last n task runs, newest first.
	RecentBuildIDs(ctx context.Context, n int) ([]string, error)

	// Prune deletes records older than before and reports how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
