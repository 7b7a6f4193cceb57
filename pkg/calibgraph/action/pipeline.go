package action

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
)

// Errors returned while declaring steps.
var (
	// ErrDuplicateStep indicates two steps of a pipeline share a name.
	ErrDuplicateStep = errors.New("duplicate step")

	// ErrInvalidStep indicates a step with an empty name or a nil function.
	ErrInvalidStep = errors.New("invalid step")

	// ErrSealed indicates a step was added after the pipeline first ran.
	ErrSealed = errors.New("pipeline already ran; steps are fixed")
)

// StepFunc is the body of a step.
type StepFunc func(ctx calibgraph.Context, ns Namespace) error

// SkipFunc decides at run time whether a step is skipped.
type SkipFunc func(ns Namespace) bool

// StepOption configures a step.
type StepOption func(*Step)

// SkipIf skips the step when pred returns true.
func SkipIf(pred SkipFunc) StepOption {
	return func(s *Step) {
		s.skipIf = pred
	}
}

// ParameterFalse is a SkipFunc that skips when the boolean parameter key is
// false or unset.
func ParameterFalse(key string) SkipFunc {
	return func(ns Namespace) bool {
		return !ns.Parameters().Bool(key, false)
	}
}

// Step is one named unit of a pipeline.
type Step struct {
	name     string
	index    int
	pipeline uuid.UUID
	fn       StepFunc
	skipIf   SkipFunc
}

// Name returns the step name.
func (s *Step) Name() string { return s.name }

// Index returns the 0-based position of the step in its pipeline.
func (s *Step) Index() int { return s.index }

// PipelineID returns the ID of the pipeline the step belongs to.
func (s *Step) PipelineID() uuid.UUID { return s.pipeline }

// Pipeline is an ordered list of steps.
type Pipeline struct {
	id   uuid.UUID
	name string

	mu     sync.Mutex
	steps  []*Step
	sealed bool
}

// New creates an empty pipeline with a fresh ID.
func New(name string) *Pipeline {
	return &Pipeline{id: uuid.New(), name: name}
}

// ID returns the pipeline ID.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Step appends a step. Steps run in the order they are added.
func (p *Pipeline) Step(name string, fn StepFunc, opts ...StepOption) (*Step, error) {
	if name == "" || fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStep, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sealed {
		return nil, ErrSealed
	}
	if slices.ContainsFunc(p.steps, func(s *Step) bool { return s.name == name }) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, name)
	}

	s := &Step{name: name, index: len(p.steps), pipeline: p.id, fn: fn}
	for _, opt := range opts {
		opt(s)
	}
	p.steps = append(p.steps, s)
	return s, nil
}

// MustStep is like Step but panics on error. Intended for package-level
// pipeline declarations.
func (p *Pipeline) MustStep(name string, fn StepFunc, opts ...StepOption) *Step {
	s, err := p.Step(name, fn, opts...)
	if err != nil {
		panic(fmt.Sprintf("action: %s: %v", p.name, err))
	}
	return s
}

// Steps returns the declared steps in order.
func (p *Pipeline) Steps() []*Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.steps)
}

// RunSteps runs every step in declaration order against ns.
//
// The context is checked before each step; a cancelled context stops the
// pipeline with ctx.Err(). A step error stops it with a *StepError.
func (p *Pipeline) RunSteps(ctx calibgraph.Context, ns Namespace) error {
	p.mu.Lock()
	p.sealed = true
	steps := p.steps
	p.mu.Unlock()

	logger := ctx.Logger()
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.skipIf != nil && s.skipIf(ns) {
			logger.Debug("step skipped", slog.String("pipeline", p.name), slog.String("step", s.name))
			continue
		}

		start := time.Now()
		if err := s.fn(ctx, ns); err != nil {
			return &StepError{Pipeline: p.name, Step: s.name, Index: s.index, Err: err}
		}
		logger.Debug("step completed",
			slog.String("pipeline", p.name),
			slog.String("step", s.name),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return nil
}

// StepError reports the step that aborted a pipeline.
type StepError struct {
	Pipeline string
	Step     string
	Index    int
	Err      error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline %s: step %d (%s): %v", e.Pipeline, e.Index, e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StepError) Unwrap() error {
	return e.Err
}
