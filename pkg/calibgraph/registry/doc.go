// Package registry provides a generic thread-safe registry for values indexed
// by key, and the Library of named calibration nodes and graphs built on it.
//
// Registry is designed for read-heavy workloads using sync.RWMutex. Keys are
// ordered so that listings are deterministic.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	r.Register("q1", 1)
//
//	value, ok := r.Get("q1")
//
// # Library
//
// A Library is the explicit catalogue a tracker, scheduler, or CLI resolves
// runnables from. There is no process-wide active library: create one and
// pass it where it is needed.
//
//	lib := registry.NewLibrary()
//	_ = lib.AddNode(rabi)
//	_ = lib.AddGraph("single_qubit_tuneup", demo.TuneUp)
//
//	g, err := lib.Graph("single_qubit_tuneup")
//
// Graph factories run once per name; the finalized graph is cached and
// shared, since graphs are immutable after Finalize. Rebuild reruns a
// factory and Remove unregisters a name.
//
// # Thread Safety
//
// All Registry and Library methods are safe for concurrent use. Range
// iterates over a snapshot, so the callback may mutate the registry.
package registry
