// Package ledger persists per-unit upsert status between ingestion runs.
//
// The vector backend overwrites on key, so the ledger is not needed for
// correctness. Its job is economy: a re-run after a partial failure can skip
// the embedding and upsert calls for units that were already indexed with
// unchanged content.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Status values recorded per unit.
const (
	StatusIndexed = "indexed"
	StatusFailed  = "failed"
)

// Ledger is a SQLite-backed upsert ledger keyed by
// (source_name, sequence_index).
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS upserts (
	source_name    TEXT    NOT NULL,
	sequence_index INTEGER NOT NULL,
	content_hash   TEXT    NOT NULL,
	status         TEXT    NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	PRIMARY KEY (source_name, sequence_index)
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ShouldSkip reports whether the unit was already indexed with the same
// content hash. Only successfully indexed entries count; a previous failure
// is always retried.
func (l *Ledger) ShouldSkip(ctx context.Context, sourceName string, sequenceIndex int, contentHash string) (bool, error) {
	var hash, status string
	err := l.db.QueryRowContext(ctx,
		`SELECT content_hash, status FROM upserts WHERE source_name = ? AND sequence_index = ?`,
		sourceName, sequenceIndex,
	).Scan(&hash, &status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return status == StatusIndexed && hash == contentHash, nil
}

// Record upserts the unit's status.
func (l *Ledger) Record(ctx context.Context, sourceName string, sequenceIndex int, contentHash, status string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO upserts (source_name, sequence_index, content_hash, status, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source_name, sequence_index)
		 DO UPDATE SET content_hash = excluded.content_hash, status = excluded.status, updated_at = excluded.updated_at`,
		sourceName, sequenceIndex, contentHash, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ledger record failed: %w", err)
	}
	return nil
}

// Forget removes every entry for a source, forcing the next run to re-index
// it from scratch.
func (l *Ledger) Forget(ctx context.Context, sourceName string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM upserts WHERE source_name = ?`, sourceName); err != nil {
		return fmt.Errorf("ledger forget failed: %w", err)
	}
	return nil
}
