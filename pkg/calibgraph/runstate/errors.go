package runstate

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
)

const (
	ErrCodeAlreadyRunning          = "RUN_ALREADY_RUNNING"
	ErrCodeCannotClearWhileRunning = "RUN_CLEAR_WHILE_RUNNING"
	ErrCodeNotRunning              = "RUN_NOT_RUNNING"
	ErrCodeNotCleared              = "RUN_NOT_CLEARED"
	ErrCodeUnknownRunnable         = "RUN_UNKNOWN_RUNNABLE"
	ErrCodeNoLibrary               = "RUN_NO_LIBRARY"
)

var (
	ErrAlreadyRunning = apperrors.New("a workflow is already running", apperrors.CategoryConflict).
				WithTextCode(ErrCodeAlreadyRunning)
	ErrCannotClearWhileRunning = apperrors.New("cannot clear while a workflow is running", apperrors.CategoryConflict).
					WithTextCode(ErrCodeCannotClearWhileRunning)
	ErrNotRunning = apperrors.New("no workflow is running", apperrors.CategoryConflict).
			WithTextCode(ErrCodeNotRunning)
	ErrNotCleared = apperrors.New("previous run must be cleared first", apperrors.CategoryConflict).
			WithTextCode(ErrCodeNotCleared)
	ErrUnknownRunnable = apperrors.New("unknown runnable", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeUnknownRunnable)
	ErrNoLibrary = apperrors.New("tracker has no library", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNoLibrary)
)

// ErrorKind separates the failures a reporting layer must present differently.
type ErrorKind string

const (
	// KindExecution is a workflow that ran and failed.
	KindExecution ErrorKind = "execution"
	// KindConflict is a request the current run state does not allow.
	KindConflict ErrorKind = "conflict"
	// KindInvalidDefinition is a graph or runnable that cannot be run.
	KindInvalidDefinition ErrorKind = "invalid_definition"
	// KindValidation is a parameter set rejected by its schema.
	KindValidation ErrorKind = "validation"
)

// Kind classifies err. It returns "" for nil.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if stderrors.Is(err, params.ErrValidation) {
		return KindValidation
	}
	if stderrors.Is(err, calibgraph.ErrInvalidGraph) {
		return KindInvalidDefinition
	}

	var ae *apperrors.Error
	if stderrors.As(err, &ae) {
		switch ae.Category {
		case apperrors.CategoryConflict:
			return KindConflict
		case apperrors.CategoryValidation:
			return KindValidation
		case apperrors.CategoryBadInput:
			return KindInvalidDefinition
		}
	}
	return KindExecution
}

// Code returns the text code of a tracker error, or "".
func Code(err error) string {
	var ae *apperrors.Error
	if stderrors.As(err, &ae) {
		return ae.TextCode
	}
	return ""
}

// notCleared is the error for starting a run while the previous one is
// finished or failed and not cleared. It matches both ErrAlreadyRunning and
// ErrNotCleared; its Code is ErrCodeAlreadyRunning.
func notCleared(state State) error {
	return fmt.Errorf("%w (%s run: %w)", ErrAlreadyRunning, state, ErrNotCleared)
}

// unknownRunnable clones ErrUnknownRunnable with the requested name.
func unknownRunnable(name string, source error) *apperrors.Error {
	err := ErrUnknownRunnable.Clone()
	err.Message = fmt.Sprintf("unknown runnable %q", name)
	err.Source = source
	return err.WithMetadata(map[string]any{"runnable": name})
}

// RunError is the structured error of a failed run.
type RunError struct {
	// Class is the Go type of the error returned by the traversal.
	Class   string    `json:"class"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	// Traceback is the panic stack for panicking vertices, otherwise the
	// chain of wrapped errors, outermost first.
	Traceback string `json:"traceback,omitempty"`
	// Vertex is the failing vertex when known.
	Vertex string `json:"vertex,omitempty"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return e.Message
}

func newRunError(err error) *RunError {
	re := &RunError{
		Class:   fmt.Sprintf("%T", err),
		Message: err.Error(),
		Kind:    Kind(err),
	}

	var vertexErr *calibgraph.VertexError
	if stderrors.As(err, &vertexErr) {
		re.Vertex = vertexErr.Vertex
	}

	var panicErr *calibgraph.PanicError
	if stderrors.As(err, &panicErr) {
		re.Traceback = panicErr.Stack
		return re
	}

	var chain []string
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		re.Traceback = strings.Join(chain, "\n")
	}
	return re
}
