package shipper

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrQueueOverflow describes a line dropped because the queue was full. It is
// never passed to an ErrorHandler; Ship reports the drop through its return
// value and the dropped-lines counter only.
var ErrQueueOverflow = errors.New("shipper: queue full, line dropped")

// SendError is reported when the Transport fails to send a line. The line is
// not retried.
type SendError struct {
	Line string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("shipper: send %q: %v", e.Line, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// FlushError is reported when the Transport fails to flush.
type FlushError struct {
	Err error
}

func (e *FlushError) Error() string { return "shipper: flush: " + e.Err.Error() }

func (e *FlushError) Unwrap() error { return e.Err }

// CloseError is reported when releasing the Transport fails during Stop.
type CloseError struct {
	Err error
}

func (e *CloseError) Error() string { return "shipper: close transport: " + e.Err.Error() }

func (e *CloseError) Unwrap() error { return e.Err }

// ShutdownTimeoutError is reported when the worker did not drain the queue
// and exit within the grace period, or when the wait was interrupted. Cause is
// the context error for an interrupted wait and nil for an expired grace
// period.
type ShutdownTimeoutError struct {
	Grace   time.Duration
	Pending int
	Cause   error
}

func (e *ShutdownTimeoutError) Error() string {
	msg := fmt.Sprintf("shipper: worker did not stop within %s (%d lines pending)", e.Grace, e.Pending)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ShutdownTimeoutError) Unwrap() error { return e.Cause }

// ErrorHandler receives failures that must not reach callers of Ship or Stop.
// Handle must not block for long: it runs on the worker goroutine.
type ErrorHandler interface {
	Handle(err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err error)

func (f ErrorHandlerFunc) Handle(err error) { f(err) }

// NopErrorHandler discards every error.
var NopErrorHandler ErrorHandler = ErrorHandlerFunc(func(error) {})

// LogErrorHandler logs every error at warn level. A nil logger uses
// slog.Default().
func LogErrorHandler(logger *slog.Logger) ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return ErrorHandlerFunc(func(err error) {
		logger.Warn("shipper: pipeline error", "err", err)
	})
}
