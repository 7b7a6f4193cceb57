/*
Package calibgraph runs calibration workflows: graphs of nodes that each act
on a set of targets (qubits) and report every target as successful or failed.

# Overview

A Node is one calibration procedure. A Graph wires nodes, and nested graphs,
with edges that carry either the successful or the failed targets of their
source, optionally filtered by a Condition. An Orchestrator traverses a
graph: it decides which vertex runs next, with which targets, retries
vertices along loop edges, and records every execution in a History.

# Basic Usage

	rabi := calibgraph.NewNode("rabi", func(ctx calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
	    // sweep drive amplitude, fit, update the pi-pulse
	    return calibgraph.RunSummary{Successful: targets}, nil
	})
	ramsey := calibgraph.NewNode("ramsey", ramseyFn)
	recalibrate := calibgraph.NewNode("recalibrate", recalibrateFn)

	graph, err := calibgraph.Build("single_qubit", func(b *calibgraph.Builder) error {
	    return errors.Join(
	        b.AddVertex(rabi),
	        b.AddVertex(ramsey),
	        b.AddVertex(recalibrate),
	        b.Connect("rabi", "ramsey"),
	        b.ConnectOnFailure("rabi", "recalibrate"),
	    )
	})
	if err != nil {
	    log.Fatal(err)
	}

	o := calibgraph.NewOrchestrator()
	ctx := calibgraph.NewContext(context.Background())
	result, err := o.Traverse(ctx, graph, []string{"q1", "q2"})

# Routing

After a vertex runs, each of its targets has an outcome. Every outgoing edge
whose scenario matches that outcome offers the target to its condition;
accepted targets join the destination's pending set. A target accepted by
several edges goes to all of their destinations. A vertex runs once all of
its predecessors are done, with the union of what they forwarded. Vertices
that receive nothing are skipped and recorded with StatusSkipped.

Several edges leaving one vertex for the same scenario must each carry an
explicit condition; otherwise Finalize reports ErrAmbiguousEdges.

# Loops

	b.Loop("resonator_spec", 2, false)

retries the failed targets of resonator_spec up to two more times. The
targets that succeed on a pass move on immediately. When the iterations are
exhausted the remaining targets follow the normal edges; with onFailure set
they are routed as failed. A negative limit is unbounded and is usually
paired with a stateful condition such as MaxAttempts.

# Subgraphs

A finalized *Graph is a Vertex. Its traversal is resolved completely before
its outgoing edges are evaluated; its outcome per target comes from its
AggregateFunc (UnanimousSuccess by default), applied to the outcome each
target held at the vertices where it stopped.

# Errors

Structural problems wrap ErrInvalidGraph. Execution failures are returned as
*VertexError when WithSkipFailed is off:

	result, err := o.Traverse(ctx, graph, targets)
	var vertexErr *calibgraph.VertexError
	if errors.As(err, &vertexErr) {
	    log.Printf("vertex %s failed: %v", vertexErr.Vertex, vertexErr.Err)
	}

Panics in nodes and conditions are recovered into *PanicError. A failing
condition only drops the target from its edge.

# Thread Safety

  - Builder is NOT safe for concurrent use
  - Graph IS safe for concurrent reads
  - History IS safe for one writer and concurrent readers
  - A traversal is single-threaded; use runstate.Tracker to run one in the
    background and observe it

# Subpackages

  - action: ordered step pipelines that implement Node
  - params: parameter values and schemas
  - snapshot: snapshot storage (memory, SQLite)
  - observability: logging, metrics, and tracing helpers
  - runstate: single-flight run tracking for a reporting layer
  - registry: named libraries of nodes and graphs
  - schedule: cron-driven recalibration
  - config: settings files
*/
package calibgraph
