// Package kerrors defines the kernel's error taxonomy. Sub-managers
// return these typed errors; only the syscall executor (syscalls.Executor)
// and the RPC boundary (rpc.Server) fold them into the wire-level
// three-variant result or into a grpc status code, keeping plain-error
// sub-managers separate from status-aware outer layers.
package kerrors

import (
	"errors"
	"fmt"
)

// ErrWouldBlock is the sentinel the timeout engine's retry loop checks for
// via errors.Is to decide whether to keep retrying a blocking syscall.
var ErrWouldBlock = errors.New("operation would block")

// PermissionError covers every denial that must surface as
// PermissionDenied: missing capability, path ACL violation, resource-limit
// exceeded, signal not catchable/blockable, non-owner destroy.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return e.Reason }

func Permission(format string, args ...interface{}) *PermissionError {
	return &PermissionError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError covers malformed arguments.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError covers unknown pid/fd/id and invalid-state conditions (a
// closed pipe/queue, wrong end of pipe, not subscribed).
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string { return e.Reason }

func NotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Reason: fmt.Sprintf(format, args...)}
}

// CapacityError covers queue/pipe full and out-of-memory.
type CapacityError struct {
	Reason string
}

func (e *CapacityError) Error() string { return e.Reason }

func Capacity(format string, args ...interface{}) *CapacityError {
	return &CapacityError{Reason: fmt.Sprintf(format, args...)}
}

// OutOfMemoryError carries the detailed accounting an out-of-memory result requires.
type OutOfMemoryError struct {
	Requested uint64
	Available uint64
	Used      uint64
	Total     uint64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf(
		"out of memory: requested=%d available=%d used=%d total=%d",
		e.Requested, e.Available, e.Used, e.Total,
	)
}

// SignalBlockedError is returned by Send when the target has the signal
// masked: "If sig ∈ blocked and catchable, fail SignalBlocked."
type SignalBlockedError struct {
	Reason string
}

func (e *SignalBlockedError) Error() string { return e.Reason }

func SignalBlocked(format string, args ...interface{}) *SignalBlockedError {
	return &SignalBlockedError{Reason: fmt.Sprintf(format, args...)}
}

// TimeoutError is surfaced by the timeout engine.
type TimeoutError struct {
	Label     string
	MillisAge int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %d ms", e.Label, e.MillisAge)
}

// InternalError wraps a serialization or bookkeeping failure; callers that
// allocated an id mid-call must roll it back before propagating this.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return e.Reason }

func Internal(format string, args ...interface{}) *InternalError {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}
