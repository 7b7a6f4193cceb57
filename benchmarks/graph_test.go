package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
)

// noopNode does minimal work to measure framework overhead.
func noopNode(_ calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
	return calibgraph.AllSuccessful(targets), nil
}

// halfFailing fails every other target.
func halfFailing(_ calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
	var s calibgraph.RunSummary
	for i, t := range targets {
		if i%2 == 0 {
			s.Successful = append(s.Successful, t)
		} else {
			s.Failed = append(s.Failed, t)
		}
	}
	return s, nil
}

func vertexName(i int) string {
	return fmt.Sprintf("v%03d", i)
}

func qubits(n int) []string {
	targets := make([]string, n)
	for i := range targets {
		targets[i] = fmt.Sprintf("q%03d", i)
	}
	return targets
}

func buildLinearGraph(b *testing.B, n int) *calibgraph.Graph {
	g, err := calibgraph.Build("linear", func(gb *calibgraph.Builder) error {
		for i := 0; i < n; i++ {
			if err := gb.AddVertex(calibgraph.NewNode(vertexName(i), noopNode)); err != nil {
				return err
			}
			if i > 0 {
				if err := gb.Connect(vertexName(i-1), vertexName(i)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return g
}

// buildBranchingGraph routes the failed half of every vertex to a repair
// vertex and the successful half onward.
func buildBranchingGraph(b *testing.B, depth int) *calibgraph.Graph {
	g, err := calibgraph.Build("branching", func(gb *calibgraph.Builder) error {
		for i := 0; i < depth; i++ {
			if err := gb.AddVertex(calibgraph.NewNode(vertexName(i), halfFailing)); err != nil {
				return err
			}
			repair := "repair_" + vertexName(i)
			if err := gb.AddVertex(calibgraph.NewNode(repair, noopNode)); err != nil {
				return err
			}
			if err := gb.ConnectOnFailure(vertexName(i), repair); err != nil {
				return err
			}
			if i > 0 {
				if err := gb.Connect(vertexName(i-1), vertexName(i)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return g
}

// BenchmarkFinalize_Linear_10 builds and finalizes a 10-vertex chain.
func BenchmarkFinalize_Linear_10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildLinearGraph(b, 10)
	}
}

// BenchmarkFinalize_Linear_100 builds and finalizes a 100-vertex chain.
func BenchmarkFinalize_Linear_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildLinearGraph(b, 100)
	}
}

// BenchmarkFinalize_Branching_20 finalizes a graph with failure branches.
func BenchmarkFinalize_Branching_20(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildBranchingGraph(b, 20)
	}
}

// BenchmarkFinalize_Invalid measures error collection on a cyclic graph.
func BenchmarkFinalize_Invalid(b *testing.B) {
	for i := 0; i < b.N; i++ {
		gb := calibgraph.NewBuilder("cycle")
		_ = gb.AddVertex(calibgraph.NewNode("a", noopNode))
		_ = gb.AddVertex(calibgraph.NewNode("b", noopNode))
		_ = gb.Connect("a", "b")
		_ = gb.Connect("b", "a")
		if _, err := gb.Finalize(); err == nil {
			b.Fatal("expected a cycle error")
		}
	}
}
