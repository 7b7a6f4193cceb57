package action

import (
	"maps"
	"slices"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
)

// Well-known namespace keys.
const (
	// KeyTargets holds the []string targets the node was run with.
	KeyTargets = "targets"
	// KeyParameters holds the node's params.Values.
	KeyParameters = "parameters"
	// KeyOutcomes holds the map[string]calibgraph.Outcome a step may publish.
	KeyOutcomes = "outcomes"
)

// Namespace is the mutable state shared by the steps of one RunSteps call.
type Namespace map[string]any

// Targets returns the targets seeded by the node.
func (ns Namespace) Targets() []string {
	targets, _ := ns[KeyTargets].([]string)
	return slices.Clone(targets)
}

// Parameters returns the parameters seeded by the node.
func (ns Namespace) Parameters() params.Values {
	values, _ := ns[KeyParameters].(params.Values)
	return values
}

// SetOutcome records the outcome of one target.
func (ns Namespace) SetOutcome(target string, o calibgraph.Outcome) {
	outcomes, ok := ns[KeyOutcomes].(map[string]calibgraph.Outcome)
	if !ok {
		outcomes = make(map[string]calibgraph.Outcome)
		ns[KeyOutcomes] = outcomes
	}
	outcomes[target] = o
}

// Fail marks targets as failed.
func (ns Namespace) Fail(targets ...string) {
	for _, t := range targets {
		ns.SetOutcome(t, calibgraph.OutcomeFailed)
	}
}

// Outcomes returns a copy of the published outcomes.
func (ns Namespace) Outcomes() map[string]calibgraph.Outcome {
	outcomes, _ := ns[KeyOutcomes].(map[string]calibgraph.Outcome)
	return maps.Clone(outcomes)
}
