package runstate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Text(t *testing.T) {
	for _, s := range []State{StateIdle, StateRunning, StateFinished, StateError} {
		t.Run(s.String(), func(t *testing.T) {
			text, err := s.MarshalText()
			require.NoError(t, err)

			var got State
			require.NoError(t, got.UnmarshalText(text))
			assert.Equal(t, s, got)
		})
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("paused")))
	assert.Equal(t, "state(9)", State(9).String())
}

func TestRunState_JSON(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	running := RunState{
		State:        StateRunning,
		Runnable:     "single_qubit_tuneup",
		RunnableKind: KindGraph,
		RunID:        "run-1",
		Targets:      []string{"q1"},
		StartedAt:    start,
	}

	data, err := json.Marshal(running)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"running"`)
	assert.NotContains(t, string(data), "ended_at")
	assert.NotContains(t, string(data), `"result"`)

	var decoded RunState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, running, decoded)
}

func TestRunState_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.Zero(t, RunState{}.Duration())
	assert.Equal(t, 90*time.Second, RunState{StartedAt: start, EndedAt: start.Add(90 * time.Second)}.Duration())
	assert.Positive(t, RunState{StartedAt: time.Now().Add(-time.Second)}.Duration())
}

func TestRunState_CloneIsIndependent(t *testing.T) {
	orig := RunState{
		Targets:    []string{"q1"},
		Parameters: map[string]any{"span_mhz": 40.0},
		Result:     &Summary{Successful: []string{"q1"}},
		Error:      &RunError{Message: "boom"},
	}
	c := orig.clone()
	c.Targets[0] = "q9"
	c.Parameters["span_mhz"] = 1.0
	c.Result.Successful[0] = "q9"
	c.Error.Message = "other"

	assert.Equal(t, "q1", orig.Targets[0])
	assert.Equal(t, 40.0, orig.Parameters["span_mhz"])
	assert.Equal(t, "q1", orig.Result.Successful[0])
	assert.Equal(t, "boom", orig.Error.Message)
}
