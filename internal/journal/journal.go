// Package journal records pool lifecycle events to a local SQLite database,
// grounded on the teacher's internal/search/database.go sql.Open("sqlite3",
// ...) pattern but repurposed from an embeddings cache into an append-only
// event log for observability (SPEC_FULL.md Part C).
package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Event reasons recorded against a pool container lifecycle transition.
const (
	ReasonCreated         = "created"
	ReasonEvictedCapacity = "evicted_capacity"
	ReasonEvictedAge      = "evicted_age"
	ReasonDeletedOnReturn = "deleted_on_return"
	ReasonTeardownFailed  = "teardown_failed"
	ReasonStragglerKilled = "straggler_killed"
)

// Journal is an append-only sink for pool events. A nil *Journal is valid
// and every method on it is a no-op, so callers that run without
// observability enabled never need a nil check.
type Journal struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the SQLite database at path,
// creating its containing directory and the events table.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS pool_events (
		id TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		pool_key TEXT NOT NULL,
		container_name TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pool_events_key ON pool_events(pool_key);
	CREATE INDEX IF NOT EXISTS idx_pool_events_reason ON pool_events(reason);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Record appends a single lifecycle event. Failures are not returned to the
// caller: the journal is an observability aid, not pool state, and its
// callers (acquire.go, release.go, gc.go, teardown.go) run on the hot path
// where a journal write must never fail an operation.
func (j *Journal) Record(reason, key, containerName string) {
	if j == nil || j.db == nil {
		return
	}
	_, _ = j.db.Exec(
		`INSERT INTO pool_events (id, reason, pool_key, container_name, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), reason, key, containerName, time.Now().Unix(),
	)
}

// Close closes the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// CountByReason returns the number of recorded events for reason. The pool's
// own Stats counters do not read the journal.
func (j *Journal) CountByReason(reason string) (int64, error) {
	if j == nil || j.db == nil {
		return 0, nil
	}
	var n int64
	err := j.db.QueryRow(`SELECT COUNT(*) FROM pool_events WHERE reason = ?`, reason).Scan(&n)
	return n, err
}
