package runstate

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// State is the run-tracking state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateError
)

var stateNames = [...]string{"idle", "running", "finished", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", text)
}

// RunnableKind tells whether the active runnable is a node or a graph.
type RunnableKind string

const (
	KindNode  RunnableKind = "node"
	KindGraph RunnableKind = "graph"
)

// Progress describes how far the active run is.
type Progress struct {
	// CurrentVertex is the last vertex that started, "inner/vertex" for
	// vertices of nested graphs.
	CurrentVertex string  `json:"current_vertex,omitempty"`
	Completed     int     `json:"completed"`
	Total         int     `json:"total"`
	Percent       float64 `json:"percent"`
}

// Summary is the result of a finished run.
type Summary struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
	// Executions is the number of vertex runs, skipped vertices excluded.
	Executions int `json:"executions"`
}

// RunState is a point-in-time copy of the tracker.
type RunState struct {
	State        State          `json:"state"`
	Runnable     string         `json:"runnable,omitempty"`
	RunnableKind RunnableKind   `json:"runnable_kind,omitempty"`
	RunID        string         `json:"run_id,omitempty"`
	Targets      []string       `json:"targets,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	StartedAt    time.Time      `json:"started_at,omitzero"`
	EndedAt      time.Time      `json:"ended_at,omitzero"`
	Progress     Progress       `json:"progress"`
	Result       *Summary       `json:"result,omitempty"`
	Error        *RunError      `json:"error,omitempty"`
}

// Duration returns the elapsed run time, up to now for an active run.
func (s RunState) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.EndedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func (s RunState) clone() RunState {
	s.Targets = slices.Clone(s.Targets)
	s.Parameters = maps.Clone(s.Parameters)
	if s.Result != nil {
		r := *s.Result
		r.Successful = slices.Clone(r.Successful)
		r.Failed = slices.Clone(r.Failed)
		s.Result = &r
	}
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	return s
}
