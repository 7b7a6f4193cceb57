package runstate

import (
	"strings"
	"sync"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
)

// progressObserver turns vertex events into Progress. A vertex counts as
// completed the first time it reaches a terminal status, so loop passes do
// not push the percentage past 100.
type progressObserver struct {
	mu        sync.Mutex
	total     int
	current   string
	completed map[string]bool
}

func newProgressObserver(total int) *progressObserver {
	return &progressObserver{total: total, completed: make(map[string]bool)}
}

func vertexKey(ev calibgraph.VertexEvent) string {
	// Drop the top-level graph name so nested keys read "inner/vertex".
	if _, rest, ok := strings.Cut(ev.Graph, "/"); ok {
		return rest + "/" + ev.Vertex
	}
	return ev.Vertex
}

func (p *progressObserver) VertexStarted(ev calibgraph.VertexEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = vertexKey(ev)
}

func (p *progressObserver) VertexFinished(ev calibgraph.VertexEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed[vertexKey(ev)] = true
}

func (p *progressObserver) snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	pr := Progress{
		CurrentVertex: p.current,
		Completed:     len(p.completed),
		Total:         p.total,
	}
	if p.total > 0 {
		pr.Percent = min(100, float64(pr.Completed)*100/float64(p.total))
	}
	return pr
}
