package snapshot

import (
	"encoding/json"
	"time"
)

// Version is the current snapshot format version.
// Increment when making breaking changes to the Snapshot structure.
const Version = 1

// Snapshot is the persisted record of one vertex execution: what ran, with
// which parameters, against which targets, and how each target came out.
type Snapshot struct {
	Version int `json:"version"`

	// Index is assigned by the Store on Save and is not part of the stored body.
	Index int64 `json:"-"`

	RunID       string    `json:"run_id"`
	Graph       string    `json:"graph,omitempty"`
	Vertex      string    `json:"vertex"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	RunStart    time.Time `json:"run_start"`
	RunEnd      time.Time `json:"run_end"`

	Targets    []string          `json:"targets"`
	Outcomes   map[string]string `json:"outcomes"`
	Parameters map[string]any    `json:"parameters,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// New creates a snapshot for a vertex execution.
func New(runID, vertex, status string, targets []string, outcomes map[string]string) *Snapshot {
	return &Snapshot{
		Version:  Version,
		RunID:    runID,
		Vertex:   vertex,
		Status:   status,
		Attempt:  1,
		Targets:  targets,
		Outcomes: outcomes,
	}
}

// Marshal serializes the snapshot body to JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal deserializes a snapshot body from JSON.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
