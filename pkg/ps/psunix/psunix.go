//go:build unix

// Package psunix holds the POSIX syscall plumbing shared by the Provider
// implementations: signal delivery with errno classification, and waiting
// for a process to exit whether or not it is our child.
package psunix

import (
	"errors"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pstrack/pstrack/pkg/ps"
)

// polling backoff inside Wait: start tiny to catch fast exits, back off to
// keep the idle cost negligible on long waits.
const (
	minPollDelay = 100 * time.Microsecond
	maxPollDelay = 40 * time.Millisecond
)

// Kill delivers sig to pid, mapping ESRCH and EPERM onto the package
// error taxonomy so callers can distinguish "gone" from "forbidden".
func Kill(pid int32, sig syscall.Signal) error {
	err := unix.Kill(int(pid), sig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return &ps.NoSuchProcessError{Pid: pid}
	case errors.Is(err, unix.EPERM):
		return &ps.AccessDeniedError{Pid: pid}
	default:
		return err
	}
}

// Wait blocks until pid terminates or timeout elapses. ps.WaitForever
// waits indefinitely; zero performs a single non-blocking check.
//
// For a waitable child the exit code is collected via wait4 (negative
// signal number when the child was killed by a signal, matching shell
// conventions). ECHILD means pid is not our child; termination is then
// observed by polling for existence and no code can be returned.
func Wait(pid int32, timeout time.Duration) (code int, hasCode bool, err error) {
	var deadline time.Time
	if timeout != ps.WaitForever {
		deadline = time.Now().Add(timeout)
	}

	delay := minPollDelay
	for {
		var ws unix.WaitStatus
		wpid, werr := unix.Wait4(int(pid), &ws, unix.WNOHANG, nil)
		switch {
		case werr == nil:
			// fall through below
		case errors.Is(werr, unix.EINTR):
			continue
		case errors.Is(werr, unix.ECHILD):
			return waitNonChild(pid, deadline, !deadline.IsZero())
		case errors.Is(werr, unix.ESRCH):
			return 0, false, &ps.NoSuchProcessError{Pid: pid}
		default:
			return 0, false, werr
		}
		if wpid == int(pid) {
			if ws.Signaled() {
				return -int(ws.Signal()), true, nil
			}
			return ws.ExitStatus(), true, nil
		}

		// Child still running.
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, false, &ps.TimeoutExpiredError{Timeout: timeout, Pid: pid}
		}
		time.Sleep(delay)
		if delay *= 2; delay > maxPollDelay {
			delay = maxPollDelay
		}
	}
}

// waitNonChild polls kill(pid, 0) until the pid disappears. EPERM still
// proves existence; only ESRCH means gone. No exit code is available for
// processes we did not spawn.
func waitNonChild(pid int32, deadline time.Time, bounded bool) (int, bool, error) {
	delay := minPollDelay
	for {
		err := unix.Kill(int(pid), 0)
		if errors.Is(err, unix.ESRCH) {
			return 0, false, nil
		}
		if bounded && !time.Now().Before(deadline) {
			return 0, false, &ps.TimeoutExpiredError{Pid: pid}
		}
		time.Sleep(delay)
		if delay *= 2; delay > maxPollDelay {
			delay = maxPollDelay
		}
	}
}
