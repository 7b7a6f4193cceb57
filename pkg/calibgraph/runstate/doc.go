// Package runstate tracks the single workflow run a process executes at a
// time, for reporting layers that poll it.
//
// States:
//
//	idle -> running -> finished
//	                -> error
//	finished/error/idle -> idle   (Clear)
//
// Submit and Begin are allowed only from idle and fail with ErrAlreadyRunning
// otherwise. A finished or failed run must be cleared before the next one;
// the error then also matches ErrNotCleared. The tracker executes submitted
// runnables on a background goroutine; Snapshot and History may be called
// concurrently from any goroutine.
//
//	tracker := runstate.NewTracker(runstate.WithLibrary(lib))
//	runID, err := tracker.SubmitByName(ctx, "single_qubit_tuneup", targets, nil)
//	...
//	state := tracker.Snapshot() // state.Progress.Percent, state.Progress.CurrentVertex
//
// Errors carry a kind (see Kind) so that callers can tell a failed workflow
// from a rejected submission or an invalid definition.
package runstate
