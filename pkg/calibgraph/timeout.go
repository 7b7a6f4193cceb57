package calibgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
)

type timeoutNode struct {
	Node
	timeout time.Duration
}

// WithTimeout wraps a node so that a run exceeding d fails with
// ErrVertexTimeout. The node sees the deadline on its context; a node that
// ignores it keeps running in the background until it returns, and its
// result is discarded.
func WithTimeout(n Node, d time.Duration) Node {
	return &timeoutNode{Node: n, timeout: d}
}

// Parameters forwards to the wrapped node when it carries parameters.
func (n *timeoutNode) Parameters() params.Values {
	if holder, ok := n.Node.(ParameterHolder); ok {
		return holder.Parameters()
	}
	return params.Values{}
}

func (n *timeoutNode) Run(ctx Context, targets []string) (RunSummary, error) {
	deadline, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	type result struct {
		summary RunSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := runNode(asExecutionContext(ctx).withParent(deadline), n.Node, targets)
		done <- result{summary, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && deadline.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return RunSummary{}, fmt.Errorf("%w after %s: %v", ErrVertexTimeout, n.timeout, r.err)
		}
		return r.summary, r.err
	case <-deadline.Done():
		if ctx.Err() != nil {
			return RunSummary{}, ctx.Err()
		}
		return RunSummary{}, fmt.Errorf("%w after %s", ErrVertexTimeout, n.timeout)
	}
}
