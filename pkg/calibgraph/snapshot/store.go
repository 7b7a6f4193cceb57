// Package snapshot persists vertex execution results and hands back the
// numeric index the orchestrator uses as the execution history item id.
package snapshot

import (
	"errors"
	"time"
)

// Store persists snapshots.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists s and returns its index. Indexes are positive and strictly
	// increasing across the whole store. The returned index is also written to s.Index.
	Save(s *Snapshot) (int64, error)

	// Load retrieves a snapshot by index.
	// Returns ErrNotFound if it doesn't exist.
	Load(index int64) (*Snapshot, error)

	// Latest returns the most recent snapshot of a vertex across all runs.
	// Returns ErrNotFound if the vertex has never been saved.
	Latest(vertex string) (*Snapshot, error)

	// List returns the snapshots of a run, ordered by index.
	// Returns an empty slice (not an error) if the run has none.
	List(runID string) ([]Info, error)

	// DeleteRun removes all snapshots of a run.
	// Returns nil if the run has none.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without decoding the snapshot body.
type Info struct {
	Index     int64
	RunID     string
	Vertex    string
	Status    string
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for snapshot operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")

	// ErrNilSnapshot indicates Save was called with nil.
	ErrNilSnapshot = errors.New("snapshot is nil")
)
