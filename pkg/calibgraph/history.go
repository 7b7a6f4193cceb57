package calibgraph

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// HistoryItem records one vertex execution. A retried vertex produces one
// item per pass; a skipped vertex produces one item with StatusSkipped and
// no targets.
type HistoryItem struct {
	// ID is the snapshot index when a snapshot store is configured, otherwise
	// a per-orchestrator counter. Zero when a snapshot could not be saved.
	ID          int64
	Vertex      string
	Graph       string // path of the containing graph, "outer/inner"
	Description string
	RunStart    time.Time
	RunEnd      time.Time
	Status      Status
	Attempt     int
	Targets     []string
	Outcomes    map[string]Outcome
	Err         error
}

// Duration returns how long the vertex ran.
func (i HistoryItem) Duration() time.Duration {
	return i.RunEnd.Sub(i.RunStart)
}

func (i HistoryItem) clone() HistoryItem {
	i.Targets = slices.Clone(i.Targets)
	i.Outcomes = maps.Clone(i.Outcomes)
	return i
}

// History is the append-only, execution-ordered log of a traversal.
// It is safe for one writer and concurrent readers; readers get copies.
type History struct {
	mu    sync.RWMutex
	items []HistoryItem
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

func (h *History) append(item HistoryItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, item.clone())
}

// Len returns the number of recorded executions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Items returns the items in execution order.
func (h *History) Items() []HistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryItem, len(h.items))
	for i, item := range h.items {
		out[i] = item.clone()
	}
	return out
}

// Reversed returns the items newest first.
func (h *History) Reversed() []HistoryItem {
	out := h.Items()
	slices.Reverse(out)
	return out
}

// ForVertex returns the items of one vertex in execution order.
func (h *History) ForVertex(name string) []HistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []HistoryItem
	for _, item := range h.items {
		if item.Vertex == name {
			out = append(out, item.clone())
		}
	}
	return out
}

// Last returns the most recent item.
func (h *History) Last() (HistoryItem, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return HistoryItem{}, false
	}
	return h.items[len(h.items)-1].clone(), true
}
