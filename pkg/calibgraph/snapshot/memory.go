package snapshot

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory snapshot store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records []storedSnapshot // ordered by index, index = position + 1
	closed  bool
}

type storedSnapshot struct {
	runID     string
	vertex    string
	status    string
	data      []byte
	timestamp time.Time
	deleted   bool
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store.
func (m *MemoryStore) Save(s *Snapshot) (int64, error) {
	if s == nil {
		return 0, ErrNilSnapshot
	}
	data, err := s.Marshal()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	m.records = append(m.records, storedSnapshot{
		runID:     s.RunID,
		vertex:    s.Vertex,
		status:    s.Status,
		data:      data,
		timestamp: time.Now().UTC(),
	})
	s.Index = int64(len(m.records))
	return s.Index, nil
}

// Load implements Store.
func (m *MemoryStore) Load(index int64) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if index < 1 || index > int64(len(m.records)) || m.records[index-1].deleted {
		return nil, ErrNotFound
	}
	return decode(index, m.records[index-1].data)
}

// Latest implements Store.
func (m *MemoryStore) Latest(vertex string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if !rec.deleted && rec.vertex == vertex {
			return decode(int64(i+1), rec.data)
		}
	}
	return nil, ErrNotFound
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var infos []Info
	for i, rec := range m.records {
		if rec.deleted || rec.runID != runID {
			continue
		}
		infos = append(infos, Info{
			Index:     int64(i + 1),
			RunID:     rec.runID,
			Vertex:    rec.vertex,
			Status:    rec.status,
			Timestamp: rec.timestamp,
			Size:      int64(len(rec.data)),
		})
	}
	return infos, nil
}

// DeleteRun implements Store.
// Indexes of deleted snapshots are never reused.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for i := range m.records {
		if m.records[i].runID == runID {
			m.records[i].deleted = true
			m.records[i].data = nil
		}
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}

// Len returns the number of live snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.records {
		if !rec.deleted {
			count++
		}
	}
	return count
}

func decode(index int64, data []byte) (*Snapshot, error) {
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	s.Index = index
	return s, nil
}
