package calibgraph

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Status is the state of a vertex within one traversal.
//
//	pending -> running -> finished
//	                   -> error
//	pending -> skipped            (no targets reached the vertex)
//	finished/error -> pending     (loop retry, retries+1)
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinished
	StatusError
	StatusSkipped
)

var statusNames = [...]string{"pending", "running", "finished", "error", "skipped"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether the vertex is done for the current pass.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusError || s == StatusSkipped
}

// VertexState is a read-only view of a vertex at some point of a traversal.
// Conditions receive the state of the edge source.
type VertexState struct {
	Name     string
	Status   Status
	Retries  int
	Targets  []string
	Outcomes map[string]Outcome
	Err      error
	RunStart time.Time
	RunEnd   time.Time
}

// Attempt returns the 1-based number of the current or last pass.
func (s VertexState) Attempt() int {
	return s.Retries + 1
}

// SuccessfulTargets returns the targets whose latest outcome is successful.
func (s VertexState) SuccessfulTargets() []string {
	return targetsWith(s.Outcomes, OutcomeSuccessful)
}

// FailedTargets returns the targets whose latest outcome is failed.
func (s VertexState) FailedTargets() []string {
	return targetsWith(s.Outcomes, OutcomeFailed)
}

// vertexRun is the mutable per-traversal bookkeeping of one vertex.
// Outcomes accumulate across loop passes; a later pass overwrites a target.
type vertexRun struct {
	name     string
	status   Status
	retries  int
	targets  []string
	outcomes map[string]Outcome
	err      error
	runStart time.Time
	runEnd   time.Time
}

func newVertexRun(name string) *vertexRun {
	return &vertexRun{name: name, outcomes: make(map[string]Outcome)}
}

func (r *vertexRun) transition(to Status, allowed ...Status) error {
	if !slices.Contains(allowed, r.status) {
		return fmt.Errorf("%w: vertex %s: %s -> %s", ErrInvalidTransition, r.name, r.status, to)
	}
	r.status = to
	return nil
}

func (r *vertexRun) start(targets []string) error {
	if err := r.transition(StatusRunning, StatusPending); err != nil {
		return err
	}
	r.targets = targets
	r.err = nil
	r.runStart = time.Now()
	r.runEnd = time.Time{}
	return nil
}

func (r *vertexRun) finish(outcomes map[string]Outcome) error {
	if err := r.transition(StatusFinished, StatusRunning); err != nil {
		return err
	}
	r.record(outcomes)
	return nil
}

func (r *vertexRun) fail(err error, outcomes map[string]Outcome) error {
	if terr := r.transition(StatusError, StatusRunning); terr != nil {
		return terr
	}
	r.err = err
	r.record(outcomes)
	return nil
}

func (r *vertexRun) skip() error {
	return r.transition(StatusSkipped, StatusPending)
}

// retry sends a terminal vertex back to pending for another pass.
func (r *vertexRun) retry() error {
	if err := r.transition(StatusPending, StatusFinished, StatusError); err != nil {
		return err
	}
	r.retries++
	return nil
}

func (r *vertexRun) record(outcomes map[string]Outcome) {
	r.runEnd = time.Now()
	maps.Copy(r.outcomes, outcomes)
}

func (r *vertexRun) state() VertexState {
	return VertexState{
		Name:     r.name,
		Status:   r.status,
		Retries:  r.retries,
		Targets:  slices.Clone(r.targets),
		Outcomes: maps.Clone(r.outcomes),
		Err:      r.err,
		RunStart: r.runStart,
		RunEnd:   r.runEnd,
	}
}
