package ps

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSuchProcess matches every NoSuchProcessError: the referenced
	// process does not exist, or its identity no longer matches because
	// the PID has been reused.
	ErrNoSuchProcess = errors.New("process no longer exists")

	// ErrAccessDenied matches every AccessDeniedError: insufficient
	// privilege to query or act on a process.
	ErrAccessDenied = errors.New("access denied")

	// ErrTimeout matches every TimeoutExpiredError: a bounded wait did
	// not observe termination in time. The process is still alive; the
	// caller may retry or escalate.
	ErrTimeout = errors.New("timeout expired")

	// ErrNotImplemented is returned by optional operations the current
	// provider does not support.
	ErrNotImplemented = errors.New("not supported by this provider")

	// ErrNegativePid rejects negative PIDs before any provider call.
	ErrNegativePid = errors.New("pid must be a non-negative integer")

	// ErrNegativeTimeout rejects negative timeouts before any side effect.
	ErrNegativeTimeout = errors.New("timeout must be non-negative")
)

// NoSuchProcessError reports a process that is gone or whose PID has been
// recycled by an unrelated process. Sticky: once a handle raises it, the
// handle stays gone.
type NoSuchProcessError struct {
	Pid      int32
	ProcName string
}

func (e *NoSuchProcessError) Error() string {
	if e.ProcName != "" {
		return fmt.Sprintf("process no longer exists (pid=%d, name=%q)", e.Pid, e.ProcName)
	}
	return fmt.Sprintf("process no longer exists (pid=%d)", e.Pid)
}

func (e *NoSuchProcessError) Unwrap() error { return ErrNoSuchProcess }

// AccessDeniedError reports insufficient privilege for a query or action.
type AccessDeniedError struct {
	Pid      int32
	ProcName string
}

func (e *AccessDeniedError) Error() string {
	if e.ProcName != "" {
		return fmt.Sprintf("access denied (pid=%d, name=%q)", e.Pid, e.ProcName)
	}
	return fmt.Sprintf("access denied (pid=%d)", e.Pid)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// TimeoutExpiredError reports that a bounded wait elapsed with the process
// still alive. Distinct from NoSuchProcess: no state is destroyed and the
// wait may simply be retried.
type TimeoutExpiredError struct {
	Timeout  time.Duration
	Pid      int32
	ProcName string
}

func (e *TimeoutExpiredError) Error() string {
	msg := fmt.Sprintf("timeout after %s", e.Timeout)
	if e.ProcName != "" {
		return msg + fmt.Sprintf(" (pid=%d, name=%q)", e.Pid, e.ProcName)
	}
	if e.Pid != 0 {
		return msg + fmt.Sprintf(" (pid=%d)", e.Pid)
	}
	return msg
}

func (e *TimeoutExpiredError) Unwrap() error { return ErrTimeout }
