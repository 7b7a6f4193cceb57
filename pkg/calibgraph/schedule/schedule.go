// Package schedule resubmits library graphs on cron schedules.
//
// Every tick goes through the run tracker, so a scheduled recalibration never
// overlaps another workflow: a tick that finds a run in progress is logged
// and dropped. A finished or failed previous run is cleared first.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/runstate"
)

// Tracker is the part of runstate.Tracker the scheduler uses.
type Tracker interface {
	Snapshot() runstate.RunState
	Clear() error
	SubmitByName(ctx context.Context, name string, targets []string, raw map[string]any) (string, error)
}

// Job is one scheduled submission.
type Job struct {
	Graph      string
	Targets    []string
	Parameters map[string]any
}

// EntryID identifies a scheduled job.
type EntryID = rcron.EntryID

// Scheduler runs Jobs on cron expressions.
type Scheduler struct {
	tracker  Tracker
	logger   *slog.Logger
	location *time.Location
	seconds  bool

	mu   sync.Mutex
	cron *rcron.Cron
	jobs map[EntryID]Job
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the time zone expressions are evaluated in.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSeconds accepts expressions with a leading seconds field.
func WithSeconds() Option {
	return func(s *Scheduler) {
		s.seconds = true
	}
}

// New creates a stopped scheduler submitting to tracker.
func New(tracker Tracker, opts ...Option) *Scheduler {
	s := &Scheduler{
		tracker:  tracker,
		logger:   slog.Default(),
		location: time.Local,
		jobs:     make(map[EntryID]Job),
	}
	for _, opt := range opts {
		opt(s)
	}

	fields := rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor
	if s.seconds {
		fields |= rcron.Second
	}
	logger := cronLogger{s.logger}
	s.cron = rcron.New(
		rcron.WithLocation(s.location),
		rcron.WithParser(rcron.NewParser(fields)),
		rcron.WithLogger(logger),
		rcron.WithChain(rcron.Recover(logger), rcron.SkipIfStillRunning(logger)),
	)
	return s
}

// Add schedules job on the cron expression spec.
func (s *Scheduler) Add(spec string, job Job) (EntryID, error) {
	if spec == "" {
		return 0, errors.New("cron expression cannot be empty")
	}
	if job.Graph == "" {
		return 0, errors.New("scheduled job needs a graph name")
	}
	job.Targets = slices.Clone(job.Targets)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.Trigger(context.Background(), job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", job.Graph, err)
	}
	s.jobs[id] = job
	return id, nil
}

// Remove unschedules a job.
func (s *Scheduler) Remove(id EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(id)
	delete(s.jobs, id)
}

// Next returns the next activation time of a job.
func (s *Scheduler) Next(id EntryID) (time.Time, bool) {
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops firing jobs and waits for a tick in progress, or for ctx.
// Runs already submitted to the tracker keep going.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger submits job now. It returns the run id, or "" when the tick was
// dropped because a workflow is running.
func (s *Scheduler) Trigger(ctx context.Context, job Job) (string, error) {
	logger := s.logger.With(slog.String("graph", job.Graph))

	switch state := s.tracker.Snapshot(); state.State {
	case runstate.StateRunning:
		logger.Info("scheduled run skipped, workflow already running",
			slog.String("active", state.Runnable),
			slog.String("run_id", state.RunID))
		return "", nil
	case runstate.StateFinished, runstate.StateError:
		if err := s.tracker.Clear(); err != nil {
			if errors.Is(err, runstate.ErrCannotClearWhileRunning) {
				logger.Info("scheduled run skipped, workflow already running")
				return "", nil
			}
			return "", err
		}
	}

	runID, err := s.tracker.SubmitByName(ctx, job.Graph, job.Targets, job.Parameters)
	switch {
	case errors.Is(err, runstate.ErrAlreadyRunning):
		logger.Info("scheduled run skipped, tracker busy", slog.String("error", err.Error()))
		return "", nil
	case err != nil:
		logger.Error("scheduled run rejected",
			slog.String("error", err.Error()),
			slog.String("kind", string(runstate.Kind(err))))
		return "", err
	}

	logger.Info("scheduled run submitted", slog.String("run_id", runID))
	return runID, nil
}

// cronLogger adapts slog to the robfig/cron logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
