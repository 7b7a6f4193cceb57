package action

import (
	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
)

// NewNode wraps a pipeline as a calibgraph.Node.
//
// Each run seeds a fresh Namespace with KeyTargets and KeyParameters, runs
// the pipeline, and reads KeyOutcomes: targets absent from it are
// successful.
func NewNode(name string, p *Pipeline, opts ...calibgraph.VertexOption) calibgraph.Node {
	var node calibgraph.Node
	node = calibgraph.NewNode(name, func(ctx calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
		ns := Namespace{
			KeyTargets:    targets,
			KeyParameters: node.(calibgraph.ParameterHolder).Parameters(),
		}
		if err := p.RunSteps(ctx, ns); err != nil {
			return calibgraph.RunSummary{}, err
		}

		outcomes := ns.Outcomes()
		var summary calibgraph.RunSummary
		for _, t := range targets {
			if o, ok := outcomes[t]; ok && o == calibgraph.OutcomeFailed {
				summary.Failed = append(summary.Failed, t)
			} else {
				summary.Successful = append(summary.Successful, t)
			}
		}
		return summary, nil
	}, opts...)
	return node
}
