// Package exception provides the error taxonomy of the gapfill engine.
// Every failure or expected non-fatal outcome produced by the engine is an
// *EngineError carrying a Kind, so callers can branch with errors.Is against
// the kind sentinels instead of string matching.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind sentinels. EngineError.Is reports true for the sentinel matching the
// error's Kind, so `errors.Is(err, ErrNoContext)` works through wrapping.
var (
	// ErrStoreUnavailable indicates the backing store could not be reached.
	// Transient: the caller should retry the whole operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInsufficientHistory indicates a station does not yet have enough
	// valid, non-imputed history to train a model. Expected outcome.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrModelUnavailable indicates no usable model artifact exists for a
	// station. Expected outcome; the gap is left unfilled.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNoContext indicates a valid context window could not be assembled
	// for a target timestamp. Expected outcome.
	ErrNoContext = errors.New("no context")

	// ErrTrainingFailed indicates the model fit diverged or otherwise failed.
	// The previously persisted model version remains active.
	ErrTrainingFailed = errors.New("training failed")
)

// Kind classifies an EngineError against the taxonomy above.
type Kind int

const (
	// KindInternal is the zero Kind for errors outside the named taxonomy.
	KindInternal Kind = iota
	// KindStoreUnavailable corresponds to ErrStoreUnavailable.
	KindStoreUnavailable
	// KindInsufficientHistory corresponds to ErrInsufficientHistory.
	KindInsufficientHistory
	// KindModelUnavailable corresponds to ErrModelUnavailable.
	KindModelUnavailable
	// KindNoContext corresponds to ErrNoContext.
	KindNoContext
	// KindTrainingFailed corresponds to ErrTrainingFailed.
	KindTrainingFailed
)

// sentinel returns the package sentinel for a Kind, or nil for KindInternal.
func (k Kind) sentinel() error {
	switch k {
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindInsufficientHistory:
		return ErrInsufficientHistory
	case KindModelUnavailable:
		return ErrModelUnavailable
	case KindNoContext:
		return ErrNoContext
	case KindTrainingFailed:
		return ErrTrainingFailed
	default:
		return nil
	}
}

// String returns the canonical name of the Kind.
func (k Kind) String() string {
	switch k {
	case KindStoreUnavailable:
		return "StoreUnavailable"
	case KindInsufficientHistory:
		return "InsufficientHistory"
	case KindModelUnavailable:
		return "ModelUnavailable"
	case KindNoContext:
		return "NoContext"
	case KindTrainingFailed:
		return "TrainingFailed"
	default:
		return "Internal"
	}
}

// EngineError is the error type produced by the gapfill engine.
// It holds the module where the error occurred, a message, the wrapped
// original error, its taxonomy Kind, and a retryability flag.
type EngineError struct {
	// Kind is the taxonomy classification of this error.
	Kind Kind
	// Module indicates where the error occurred (e.g. "gap", "trainer", "predictor").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error, if any.
	OriginalErr error
	// retryable indicates whether retrying the whole operation may succeed.
	retryable bool
	// StackTrace is the stack captured when the error was created.
	StackTrace string
}

// NewEngineError creates a new EngineError of the given Kind.
//
// module: the engine module where the error occurred.
// message: a concise description.
// originalErr: the original error to wrap (may be nil).
func NewEngineError(kind Kind, module, message string, originalErr error) *EngineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &EngineError{
		Kind:        kind,
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		retryable:   kind == KindStoreUnavailable,
		StackTrace:  string(buf[:n]),
	}
}

// NewEngineErrorf creates a new EngineError with a formatted message.
func NewEngineErrorf(kind Kind, module, format string, a ...interface{}) *EngineError {
	return NewEngineError(kind, module, fmt.Sprintf(format, a...), nil)
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %s (original error: %v)", e.Module, e.Kind, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Module, e.Kind, e.Message)
}

// Unwrap returns the wrapped original error.
func (e *EngineError) Unwrap() error {
	return e.OriginalErr
}

// Is reports whether target is the sentinel of this error's Kind.
// This lets errors.Is(err, ErrNoContext) match any NoContext EngineError.
func (e *EngineError) Is(target error) bool {
	if s := e.Kind.sentinel(); s != nil && target == s {
		return true
	}
	return false
}

// IsRetryable reports whether retrying the whole operation may succeed.
func (e *EngineError) IsRetryable() bool {
	return e.retryable
}

// IsExpectedOutcome reports whether err is one of the expected, non-fatal
// outcomes (InsufficientHistory, ModelUnavailable, NoContext). Sweeps log
// and skip these rather than counting them as failures.
func IsExpectedOutcome(err error) bool {
	return errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrModelUnavailable) ||
		errors.Is(err, ErrNoContext)
}

// KindOf returns the Kind of err if it is (or wraps) an EngineError,
// and KindInternal otherwise.
func KindOf(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}
