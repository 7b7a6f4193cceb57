package calibgraph

import (
	"fmt"
	"runtime/debug"
)

// Condition gates which targets may cross an edge.
//
// Evaluate is called once per (source vertex, target) pair, with targets
// offered in sorted order and edges visited in declaration order. An error
// drops the target from that edge; it never fails the traversal.
type Condition interface {
	Evaluate(state VertexState, target string) (bool, error)
}

// StatefulCondition is a Condition that keeps memory across evaluations.
// Prime resets that memory; the orchestrator primes every stateful condition
// of a graph, including nested graphs, when a top-level traversal starts.
type StatefulCondition interface {
	Condition
	Prime()
}

// ConditionFunc adapts a stateless function into a Condition.
type ConditionFunc func(state VertexState, target string) (bool, error)

// Evaluate implements Condition.
func (f ConditionFunc) Evaluate(state VertexState, target string) (bool, error) {
	return f(state, target)
}

var always = ConditionFunc(func(VertexState, string) (bool, error) { return true, nil })

// Always returns the default condition: every target crosses.
func Always() Condition {
	return always
}

type statefulCondition struct {
	factory func() ConditionFunc
	current ConditionFunc
}

// Stateful builds a StatefulCondition from a factory. Prime calls the factory
// and subsequent evaluations go to the closure it returned, so state lives
// in the closure.
//
// Example:
//
//	// Let each target across at most twice per traversal.
//	cond := calibgraph.Stateful(func() calibgraph.ConditionFunc {
//	    seen := map[string]int{}
//	    return func(_ calibgraph.VertexState, target string) (bool, error) {
//	        seen[target]++
//	        return seen[target] <= 2, nil
//	    }
//	})
func Stateful(factory func() ConditionFunc) StatefulCondition {
	if factory == nil {
		panic("calibgraph: condition factory cannot be nil")
	}
	return &statefulCondition{factory: factory}
}

func (c *statefulCondition) Prime() {
	c.current = c.factory()
}

func (c *statefulCondition) Evaluate(state VertexState, target string) (bool, error) {
	if c.current == nil {
		c.Prime()
	}
	return c.current(state, target)
}

// MaxAttempts lets each target cross at most n times per traversal.
// Combined with an unbounded loop it caps retries per target instead of
// per vertex.
func MaxAttempts(n int) StatefulCondition {
	return Stateful(func() ConditionFunc {
		attempts := make(map[string]int)
		return func(_ VertexState, target string) (bool, error) {
			attempts[target]++
			return attempts[target] <= n, nil
		}
	})
}

// TargetIn accepts only the listed targets.
func TargetIn(targets ...string) Condition {
	allowed := NormalizeTargets(targets)
	return ConditionFunc(func(_ VertexState, target string) (bool, error) {
		return containsTarget(allowed, target), nil
	})
}

type notCondition struct {
	inner Condition
}

// Not negates c. An error from c stays an error.
func Not(c Condition) Condition {
	return &notCondition{inner: c}
}

func (c *notCondition) Evaluate(state VertexState, target string) (bool, error) {
	ok, err := c.inner.Evaluate(state, target)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (c *notCondition) Prime() { primeCondition(c.inner) }

type allCondition struct {
	conds []Condition
}

// All accepts a target only if every condition accepts it.
// Evaluation stops at the first rejection, so later stateful conditions do
// not see targets an earlier one rejected.
func All(conds ...Condition) Condition {
	return &allCondition{conds: conds}
}

func (c *allCondition) Evaluate(state VertexState, target string) (bool, error) {
	for _, cond := range c.conds {
		ok, err := cond.Evaluate(state, target)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *allCondition) Prime() {
	for _, cond := range c.conds {
		primeCondition(cond)
	}
}

func primeCondition(c Condition) {
	if s, ok := c.(StatefulCondition); ok {
		s.Prime()
	}
}

// evaluateCondition runs c, turning a panic into an error.
func evaluateCondition(c Condition, state VertexState, target string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &PanicError{Vertex: state.Name, Value: r, Stack: string(debug.Stack())}
		}
	}()
	if c == nil {
		return true, nil
	}
	ok, err = c.Evaluate(state, target)
	if err != nil {
		return false, fmt.Errorf("evaluate %s: %w", target, err)
	}
	return ok, nil
}
