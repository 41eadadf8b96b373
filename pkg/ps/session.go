package ps

import (
	"errors"
	"iter"
	"slices"
	"time"
)

// Session owns a Provider and the mutable state of one monitoring session:
// the enumeration cache (PID → last-known handle) and the previous-sample
// slots behind the non-blocking CPU percentage calls.
//
// A Session is not safe for concurrent use. Callers that share one across
// goroutines must serialize access externally, or give each goroutine its
// own Session.
type Session struct {
	prov  Provider
	cache map[int32]*Process

	// memoized logical CPU count, 0 until first derived
	ncpu int

	// previous samples for CPUPercent and CPUTimesPercent. Kept as two
	// independent pairs so the two calls don't disturb each other.
	lastCPU    *SystemTimes
	lastPerCPU []SystemTimes
	lastCPUPct *SystemTimes
	lastPerPct []SystemTimes

	// monotonic base for the per-process percent timer
	t0 time.Time

	// injectable for tests
	clock func() time.Time
	sleep func(time.Duration)
}

// NewSession creates a session with an empty enumeration cache.
func NewSession(prov Provider) *Session {
	return &Session{
		prov:  prov,
		cache: make(map[int32]*Process),
		t0:    time.Now(),
		clock: time.Now,
		sleep: time.Sleep,
	}
}

// Reset discards the enumeration cache and previous CPU samples. Handles
// already returned remain valid; they just won't be reused by Iter.
func (s *Session) Reset() {
	s.cache = make(map[int32]*Process)
	s.lastCPU, s.lastPerCPU = nil, nil
	s.lastCPUPct, s.lastPerPct = nil, nil
}

// Provider returns the provider the session was built on.
func (s *Session) Provider() Provider { return s.prov }

// Pids returns the PIDs of all running processes in ascending order.
func (s *Session) Pids() ([]int32, error) {
	pids, err := s.prov.Pids()
	if err != nil {
		return nil, err
	}
	slices.Sort(pids)
	return pids, nil
}

// PidExists reports whether pid is in the current process table. Negative
// PIDs never exist. PID 0 has kill(2) semantics of "the whole process
// group", so it is resolved against the PID list instead of the provider's
// existence probe.
func (s *Session) PidExists(pid int32) (bool, error) {
	if pid < 0 {
		return false, nil
	}
	if pid == 0 {
		pids, err := s.prov.Pids()
		if err != nil {
			return false, err
		}
		return slices.Contains(pids, pid), nil
	}
	return s.prov.PidExists(pid)
}

// Process constructs a fresh handle for pid, deriving its identity once.
// Returns NoSuchProcessError if the pid is not running. If the provider
// denies access to the creation time the handle is still built, with the
// weaker PID-only identity.
func (s *Session) Process(pid int32) (*Process, error) {
	return s.newProcess(pid)
}

func (s *Session) newProcess(pid int32) (*Process, error) {
	if pid < 0 {
		return nil, ErrNegativePid
	}
	p := &Process{pid: pid, s: s}
	ct, err := s.prov.CreateTime(pid)
	switch {
	case err == nil:
		p.ident = NewIdentity(pid, ct)
		p.createTime = ct
		p.hasCreateTime = true
	case errors.Is(err, ErrAccessDenied):
		// Identity degrades to PID-only; create time can be retried later.
		p.ident = pidOnlyIdentity(pid)
	case errors.Is(err, ErrNoSuchProcess):
		return nil, &NoSuchProcessError{Pid: pid}
	default:
		return nil, err
	}
	return p, nil
}

// Iter returns a lazy sequence of handles for every running process in
// ascending PID order. Handles constructed on a previous pass are reused
// when their identity still matches; a recycled PID yields a brand-new
// handle; a permission failure during the identity re-check yields the
// stale cached handle rather than erroring.
//
// Each call takes a fresh snapshot of the PID set; two passes can disagree
// if processes came or went in between. The sequence yields a non-nil
// error (with a nil handle) only for provider failures other than
// per-process NoSuchProcess/AccessDenied, which are handled internally.
func (s *Session) Iter() iter.Seq2[*Process, error] {
	return func(yield func(*Process, error) bool) {
		live, err := s.prov.Pids()
		if err != nil {
			yield(nil, err)
			return
		}
		liveSet := make(map[int32]struct{}, len(live))
		for _, pid := range live {
			liveSet[pid] = struct{}{}
		}
		// Purge cache entries whose PID is no longer in the table.
		for pid := range s.cache {
			if _, ok := liveSet[pid]; !ok {
				delete(s.cache, pid)
			}
		}

		slices.Sort(live)
		for _, pid := range live {
			proc, cached := s.cache[pid]
			if !cached {
				// New PID. Skip silently if it vanished between listing
				// and construction.
				np, err := s.newProcess(pid)
				if err != nil {
					if errors.Is(err, ErrNoSuchProcess) {
						continue
					}
					if !yield(nil, err) {
						return
					}
					continue
				}
				s.cache[pid] = np
				if !yield(np, nil) {
					return
				}
				continue
			}

			running, err := proc.IsRunning()
			if err != nil {
				// Identity could not be re-verified (permissions). Yield
				// the stale handle: best-effort degradation.
				if !yield(proc, nil) {
					return
				}
				continue
			}
			if running {
				if !yield(proc, nil) {
					return
				}
				continue
			}
			// PID reused by another process: replace the cached handle.
			np, err := s.newProcess(pid)
			if err != nil {
				delete(s.cache, pid)
				if errors.Is(err, ErrNoSuchProcess) {
					continue
				}
				if !yield(nil, err) {
					return
				}
				continue
			}
			s.cache[pid] = np
			if !yield(np, nil) {
				return
			}
		}
	}
}

// Processes collects Iter into a slice, aborting on provider failure.
func (s *Session) Processes() ([]*Process, error) {
	var out []*Process
	for p, err := range s.Iter() {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// cpuCount memoizes the provider's logical CPU count. A count that cannot
// be determined degrades to 1 so percentage math stays defined.
func (s *Session) cpuCount() int {
	if s.ncpu == 0 {
		n, err := s.prov.CPUCountLogical()
		if err != nil || n < 1 {
			n = 1
		}
		s.ncpu = n
	}
	return s.ncpu
}
