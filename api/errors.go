// Package api
//
// Common error types shared across the loader pipeline.

package api

import "fmt"

// Sentinel errors surfaced by the pipeline's fatal-error paths. Wrap these
// with fmt.Errorf("%w: ...", ErrX, ...) rather than returning bare strings so
// callers can errors.Is against a stable kind.
var (
	// ErrAllocationFailure is returned by Loader.Start when pool allocation
	// fails; the pipeline does not start.
	ErrAllocationFailure = fmt.Errorf("loader: allocation failure")
	// ErrReaderFailed is returned by Reader.Read's fatal sentinel and
	// surfaced by the read thread; terminates the pipeline.
	ErrReaderFailed = fmt.Errorf("loader: reader failed")
	// ErrDeviceInitFailed is returned when Device.Init fails; the decode
	// manager stops immediately without producing any batch.
	ErrDeviceInitFailed = fmt.Errorf("loader: device init failed")
	// ErrInvalidArgument flags a caller/config error detected at Start.
	ErrInvalidArgument = fmt.Errorf("loader: invalid argument")
)

// ErrorCode classifies a structured Error for programmatic handling.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAllocationFailure
	ErrCodeReaderFailed
	ErrCodeDeviceInitFailed
	ErrCodeInternal
)

// Error is a structured error with code and free-form context, used where a
// caller benefits from inspecting *why* a fatal condition occurred (e.g. the
// batch index or pool depth at the time of failure).
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is reports whether target is the sentinel matching e.Code, so that
// errors.Is(err, ErrReaderFailed) and the like hold for structured errors.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return target == ErrInvalidArgument
	case ErrCodeAllocationFailure:
		return target == ErrAllocationFailure
	case ErrCodeReaderFailed:
		return target == ErrReaderFailed
	case ErrCodeDeviceInitFailed:
		return target == ErrDeviceInitFailed
	}
	return false
}

// NewError creates a structured error of the given code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Context: make(map[string]any)}
}

// WithContext attaches a key/value pair and returns the same error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
