package action

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/registry"
)

// Registry resolves pipeline IDs to pipelines.
type Registry struct {
	pipelines *registry.Registry[string, *Pipeline]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: registry.New[string, *Pipeline]()}
}

// Add registers p under its ID.
func (r *Registry) Add(p *Pipeline) error {
	if err := r.pipelines.Add(p.ID().String(), p); err != nil {
		return fmt.Errorf("pipeline %s: %w", p.Name(), err)
	}
	return nil
}

// Lookup returns the pipeline with the given ID.
func (r *Registry) Lookup(id uuid.UUID) (*Pipeline, bool) {
	return r.pipelines.Get(id.String())
}

// PipelineOf returns the pipeline a step belongs to.
func (r *Registry) PipelineOf(s *Step) (*Pipeline, bool) {
	return r.Lookup(s.PipelineID())
}
