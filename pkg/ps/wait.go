package ps

import (
	"slices"
	"time"
)

// sweepBudget caps how long one full pass over the alive set may block, so
// no single handle's status grows stale while its peers terminate and
// their PIDs get recycled.
const sweepBudget = time.Second

// WaitProcs waits for a collection of processes to terminate, returning
// disjoint (gone, alive) slices that together cover the input. Pass
// WaitForever to wait with no deadline; with a deadline, whatever is still
// running when it passes is returned in alive.
//
// Each terminated handle records its exit code (absent when the process
// was not a waitable child). callback, if non-nil, fires exactly once per
// terminated handle, synchronously, at the moment termination is observed
// and before the handle moves from alive to gone.
//
// The loop polls each alive handle with a short blocking wait, splitting
// the budget so one full sweep costs at most about a second. A typical use
// is Terminate on a set of processes, WaitProcs with a grace timeout, then
// Kill whatever alive still holds.
func (s *Session) WaitProcs(procs []*Process, timeout time.Duration, callback func(*Process)) (gone, alive []*Process, err error) {
	if timeout < 0 {
		return nil, nil, ErrNegativeTimeout
	}
	hasDeadline := timeout != WaitForever

	goneSet := make(map[*Process]struct{})
	aliveSet := make(map[*Process]struct{}, len(procs))
	for _, p := range procs {
		if p != nil {
			aliveSet[p] = struct{}{}
		}
	}

	checkGone := func(p *Process, t time.Duration) {
		code, hasCode, err := p.Wait(t)
		if err != nil {
			// Still alive (timeout), or unverifiable: leave in alive.
			return
		}
		if !hasCode {
			// Terminated without a collectable code, or Wait returned
			// because the pid vanished. Confirm via the identity check so
			// a still-running process is not misclassified.
			if running, err := p.IsRunning(); err == nil && running {
				return
			}
		}
		p.recordExit(code, hasCode)
		goneSet[p] = struct{}{}
		if callback != nil {
			callback(p)
		}
	}

	var deadline time.Time
	if hasDeadline {
		deadline = s.clock().Add(timeout)
	}
	remaining := timeout

	for len(aliveSet) > 0 {
		if hasDeadline && remaining <= 0 {
			break
		}
		for p := range aliveSet {
			if _, done := goneSet[p]; done {
				continue
			}
			// Split the budget over the survivors so a whole sweep stays
			// near sweepBudget even when one process lags.
			maxTimeout := sweepBudget / time.Duration(len(aliveSet))
			if hasDeadline {
				remaining = min(deadline.Sub(s.clock()), maxTimeout)
				if remaining <= 0 {
					break
				}
				checkGone(p, remaining)
			} else {
				checkGone(p, maxTimeout)
			}
		}
		for p := range goneSet {
			delete(aliveSet, p)
		}
	}

	if len(aliveSet) > 0 {
		// Final non-blocking sweep over the stragglers to catch processes
		// that terminated in the race with the deadline.
		for p := range aliveSet {
			checkGone(p, 0)
		}
		for p := range goneSet {
			delete(aliveSet, p)
		}
	}

	gone = setToSlice(goneSet)
	alive = setToSlice(aliveSet)
	return gone, alive, nil
}

// setToSlice flattens a handle set, sorted by PID for stable output.
func setToSlice(set map[*Process]struct{}) []*Process {
	out := make([]*Process, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Process) int {
		switch {
		case a.pid < b.pid:
			return -1
		case a.pid > b.pid:
			return 1
		default:
			return 0
		}
	})
	return out
}
