package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists snapshots to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite snapshot store.
// The path should be a file path (e.g., "./snapshots.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			idx INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			vertex TEXT NOT NULL,
			status TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_vertex ON snapshots(vertex)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(snap *Snapshot) (int64, error) {
	if snap == nil {
		return 0, ErrNilSnapshot
	}
	data, err := snap.Marshal()
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.Exec(`
		INSERT INTO snapshots (run_id, vertex, status, timestamp, data)
		VALUES (?, ?, ?, ?, ?)
	`, snap.RunID, snap.Vertex, snap.Status, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	idx, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read snapshot index: %w", err)
	}
	snap.Index = idx
	return idx, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(index int64) (*Snapshot, error) {
	return s.queryOne(`SELECT idx, data FROM snapshots WHERE idx = ?`, index)
}

// Latest implements Store.
func (s *SQLiteStore) Latest(vertex string) (*Snapshot, error) {
	return s.queryOne(`
		SELECT idx, data FROM snapshots
		WHERE vertex = ?
		ORDER BY idx DESC
		LIMIT 1
	`, vertex)
}

func (s *SQLiteStore) queryOne(query string, arg any) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		idx  int64
		data []byte
	)
	err := s.db.QueryRow(query, arg).Scan(&idx, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decode(idx, data)
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT idx, vertex, status, timestamp, LENGTH(data)
		FROM snapshots
		WHERE run_id = ?
		ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info      Info
			timestamp string
		)
		if err := rows.Scan(&info.Index, &info.Vertex, &info.Status, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot info: %w", err)
		}
		info.RunID = runID
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return infos, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run snapshots: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
