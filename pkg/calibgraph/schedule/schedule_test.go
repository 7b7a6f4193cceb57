package schedule_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/registry"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/runstate"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/schedule"
)

// fakeTracker scripts tracker responses.
type fakeTracker struct {
	state     runstate.RunState
	clearErr  error
	submitErr error
	cleared   int
	submitted []schedule.Job
}

func (f *fakeTracker) Snapshot() runstate.RunState { return f.state }

func (f *fakeTracker) Clear() error {
	f.cleared++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.state = runstate.RunState{}
	return nil
}

func (f *fakeTracker) SubmitByName(_ context.Context, name string, targets []string, raw map[string]any) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, schedule.Job{Graph: name, Targets: targets, Parameters: raw})
	return "run-" + name, nil
}

func TestScheduler_Trigger(t *testing.T) {
	job := schedule.Job{Graph: "tuneup", Targets: []string{"q1"}}

	tests := []struct {
		name        string
		tracker     *fakeTracker
		wantRunID   string
		wantErr     bool
		wantCleared int
		wantSubmits int
		wantLog     string
	}{
		{
			name:        "idle submits",
			tracker:     &fakeTracker{},
			wantRunID:   "run-tuneup",
			wantSubmits: 1,
			wantLog:     "scheduled run submitted",
		},
		{
			name:    "running is a no-op",
			tracker: &fakeTracker{state: runstate.RunState{State: runstate.StateRunning, Runnable: "manual"}},
			wantLog: "workflow already running",
		},
		{
			name:        "finished is cleared first",
			tracker:     &fakeTracker{state: runstate.RunState{State: runstate.StateFinished}},
			wantRunID:   "run-tuneup",
			wantCleared: 1,
			wantSubmits: 1,
		},
		{
			name:        "clear race is a no-op",
			tracker:     &fakeTracker{state: runstate.RunState{State: runstate.StateError}, clearErr: runstate.ErrCannotClearWhileRunning},
			wantCleared: 1,
		},
		{
			name:    "submit race is a no-op",
			tracker: &fakeTracker{submitErr: runstate.ErrAlreadyRunning},
			wantLog: "tracker busy",
		},
		{
			name:    "rejected submission",
			tracker: &fakeTracker{submitErr: errors.New("unknown graph")},
			wantErr: true,
			wantLog: "scheduled run rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			s := schedule.New(tt.tracker, schedule.WithLogger(logger))

			runID, err := s.Trigger(context.Background(), job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantRunID, runID)
			assert.Equal(t, tt.wantCleared, tt.tracker.cleared)
			assert.Len(t, tt.tracker.submitted, tt.wantSubmits)
			if tt.wantLog != "" {
				assert.Contains(t, buf.String(), tt.wantLog)
			}
		})
	}
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := schedule.New(&fakeTracker{}, schedule.WithLocation(time.UTC))

	_, err := s.Add("", schedule.Job{Graph: "tuneup"})
	assert.Error(t, err)
	_, err = s.Add("@hourly", schedule.Job{})
	assert.Error(t, err)
	_, err = s.Add("not a cron expression", schedule.Job{Graph: "tuneup"})
	assert.Error(t, err)
	_, err = s.Add("*/5 * * * * *", schedule.Job{Graph: "tuneup"})
	assert.Error(t, err, "seconds field needs WithSeconds")

	id, err := s.Add("0 3 * * *", schedule.Job{Graph: "tuneup"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s.Start()
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	next, ok := s.Next(id)
	require.True(t, ok)
	assert.Equal(t, 3, next.UTC().Hour())
	assert.Equal(t, 0, next.UTC().Minute())

	s.Remove(id)
	assert.Zero(t, s.Len())
	_, ok = s.Next(id)
	assert.False(t, ok)
}

func TestScheduler_FiresIntoTracker(t *testing.T) {
	lib := registry.NewLibrary()
	require.NoError(t, lib.AddNode(calibgraph.NewNode("resonator_spec", func(_ calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
		return calibgraph.AllSuccessful(targets), nil
	})))
	tracker := runstate.NewTracker(runstate.WithLibrary(lib))

	s := schedule.New(tracker, schedule.WithSeconds())
	_, err := s.Add("* * * * * *", schedule.Job{Graph: "resonator_spec", Targets: []string{"q1"}})
	require.NoError(t, err)

	s.Start()
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return tracker.Snapshot().State == runstate.StateFinished
	}, 5*time.Second, 20*time.Millisecond)

	state := tracker.Snapshot()
	assert.Equal(t, "resonator_spec", state.Runnable)
	assert.Equal(t, []string{"q1"}, state.Result.Successful)
}
