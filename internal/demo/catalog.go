package demo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/action"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/registry"
)

// Graph names.
const (
	Coherence         = "coherence"
	SingleQubitTuneup = "single_qubit_tuneup"
)

// Catalog is the set of runnables built for one device.
type Catalog struct {
	Device    *Device
	Library   *registry.Library
	Pipelines *action.Registry

	pipelineIDs map[string]uuid.UUID
}

// NewCatalog builds every demo node and registers them, together with the
// demo graphs, in a fresh library.
func NewCatalog(dev *Device) (*Catalog, error) {
	c := &Catalog{
		Device:    dev,
		Library:   registry.NewLibrary(),
		Pipelines: action.NewRegistry(),

		pipelineIDs: make(map[string]uuid.UUID, len(procedures)),
	}

	nodes := make(map[string]calibgraph.Node, len(procedures)+1)
	for _, p := range procedures {
		n, id, err := newProcedureNode(dev, c.Pipelines, p)
		if err != nil {
			return nil, err
		}
		nodes[p.name] = n
		c.pipelineIDs[p.name] = id
	}
	nodes[FlagForReview] = newFlagNode(dev)

	for _, n := range nodes {
		if err := c.Library.AddNode(n); err != nil {
			return nil, err
		}
	}

	coherence := func() (*calibgraph.Graph, error) { return coherenceGraph(nodes) }
	if err := c.Library.AddGraph(Coherence, coherence); err != nil {
		return nil, err
	}
	if err := c.Library.AddGraph(SingleQubitTuneup, func() (*calibgraph.Graph, error) {
		sub, err := coherence()
		if err != nil {
			return nil, err
		}
		return tuneupGraph(nodes, sub)
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Steps returns the pipeline step names of a procedure node, or nil for
// nodes that are not pipelines.
func (c *Catalog) Steps(node string) []string {
	id, ok := c.pipelineIDs[node]
	if !ok {
		return nil
	}
	p, ok := c.Pipelines.Lookup(id)
	if !ok {
		return nil
	}
	steps := p.Steps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name()
	}
	return names
}

// coherenceGraph measures T2* then T2. A qubit without Ramsey fringes is
// retried up to three times.
func coherenceGraph(nodes map[string]calibgraph.Node) (*calibgraph.Graph, error) {
	return calibgraph.Build(Coherence, func(b *calibgraph.Builder) error {
		return errors.Join(
			b.AddVertex(nodes[Ramsey]),
			b.AddVertex(nodes[Echo]),
			b.Connect(Ramsey, Echo),
			b.Loop(Ramsey, -1, false, calibgraph.WithCondition(calibgraph.MaxAttempts(3))),
		)
	}, calibgraph.WithDescription("Coherence characterisation"))
}

// tuneupGraph brings up a qubit from resonator search to coherence.
//
//	resonator_spectroscopy (loop 2) -> qubit_spectroscopy -> rabi -> coherence
//	                     \--failed--> flag_for_review <--failed--/
func tuneupGraph(nodes map[string]calibgraph.Node, coherence *calibgraph.Graph) (*calibgraph.Graph, error) {
	g, err := calibgraph.Build(SingleQubitTuneup, func(b *calibgraph.Builder) error {
		return errors.Join(
			b.AddVertex(nodes[ResonatorSpectroscopy]),
			b.AddVertex(nodes[QubitSpectroscopy]),
			b.AddVertex(nodes[Rabi]),
			b.AddVertex(coherence),
			b.AddVertex(nodes[FlagForReview]),
			b.Loop(ResonatorSpectroscopy, 2, false),
			b.Connect(ResonatorSpectroscopy, QubitSpectroscopy),
			b.ConnectOnFailure(ResonatorSpectroscopy, FlagForReview),
			b.Connect(QubitSpectroscopy, Rabi),
			b.Connect(Rabi, Coherence),
			b.ConnectOnFailure(Rabi, FlagForReview),
		)
	}, calibgraph.WithDescription("Single-qubit bring-up"))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", SingleQubitTuneup, err)
	}
	return g, nil
}
