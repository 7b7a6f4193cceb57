package benchmarks

import (
	"path/filepath"
	"testing"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/snapshot"
)

func newSnapshot() *snapshot.Snapshot {
	targets := qubits(32)
	outcomes := make(map[string]string, len(targets))
	for i, t := range targets {
		if i%4 == 0 {
			outcomes[t] = "failed"
		} else {
			outcomes[t] = "successful"
		}
	}
	return snapshot.New("run-1", "resonator_spectroscopy", "finished", targets, outcomes)
}

func createSQLiteStore(b *testing.B) *snapshot.SQLiteStore {
	b.Helper()
	store, err := snapshot.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })
	return store
}

// BenchmarkMemoryStore_Save measures in-memory snapshot save.
func BenchmarkMemoryStore_Save(b *testing.B) {
	store := snapshot.NewMemoryStore()
	snap := newSnapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Save(snap)
	}
}

// BenchmarkMemoryStore_Load measures in-memory snapshot load.
func BenchmarkMemoryStore_Load(b *testing.B) {
	store := snapshot.NewMemoryStore()
	idx, err := store.Save(newSnapshot())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load(idx)
	}
}

// BenchmarkSQLiteStore_Save measures SQLite snapshot save.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	store := createSQLiteStore(b)
	snap := newSnapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Save(snap)
	}
}

// BenchmarkSQLiteStore_Load measures SQLite snapshot load.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	store := createSQLiteStore(b)
	idx, err := store.Save(newSnapshot())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load(idx)
	}
}

// BenchmarkTraverse_WithMemorySnapshots measures the snapshot overhead of a traversal.
func BenchmarkTraverse_WithMemorySnapshots(b *testing.B) {
	benchmarkTraverse(b, buildLinearGraph(b, 10), qubits(8),
		calibgraph.WithSnapshotStore(snapshot.NewMemoryStore()))
}

// BenchmarkTraverse_WithSQLiteSnapshots measures a traversal persisting to SQLite.
func BenchmarkTraverse_WithSQLiteSnapshots(b *testing.B) {
	benchmarkTraverse(b, buildLinearGraph(b, 10), qubits(8),
		calibgraph.WithSnapshotStore(createSQLiteStore(b)))
}
