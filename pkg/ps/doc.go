// Package ps is a process- and host-monitoring engine: it enumerates
// operating-system processes, tracks their identity over time, exposes
// per-process and system-wide CPU counters, and provides blocking
// primitives to wait for process termination. It is meant to sit under
// monitoring agents that sample host and process state on an interval.
//
// Everything OS-specific lives behind the Provider interface; this package
// only contains the logic that has to stay correct regardless of how the
// facts are obtained. Two providers ship with the module:
//
//   - pstrack/pkg/ps/gops     — POSIX, backed by shirou/gopsutil
//   - pstrack/pkg/ps/procfs   — Linux-native, backed by prometheus/procfs
//
// # Identity and PID reuse
//
// The OS recycles PIDs, so a PID observed at two different times may name
// two unrelated processes. Every handle therefore carries an Identity —
// the (pid, creation time) pair — derived once at construction. A handle
// "is running" only while re-deriving the identity from the live system
// yields the same pair; the first failed check marks the handle gone, for
// good. Operations that act on a process (signals, priority changes,
// lineage queries) re-verify identity immediately before acting. Plain
// reads do not, and may return stale-but-plausible data for a recycled
// PID; use IsRunning or enumerate through Session.Iter when that matters.
//
// # Sessions
//
// A Session owns the enumeration cache and the previous-sample state
// behind the non-blocking percentage calls. There is deliberately no
// package-level singleton: create a Session, use it from one goroutine
// (or lock around it), drop it when done.
//
// Example: terminate a tree, give it three seconds, kill the stragglers:
//
//	/*
//	sess := ps.NewSession(gops.New())
//	root, _ := sess.Process(pid)
//	procs, _ := root.Children(true)
//	procs = append(procs, root)
//	for _, p := range procs {
//	    _ = p.Terminate()
//	}
//	gone, alive, _ := sess.WaitProcs(procs, 3*time.Second, func(p *ps.Process) {
//	    log.Printf("pid %d terminated", p.Pid())
//	})
//	for _, p := range alive {
//	    _ = p.Kill()
//	}
//	*/
//
// # Percentages
//
// The utilization calls convert monotonically increasing CPU-time
// counters into percentages by diffing two samples. With an interval they
// sleep between the samples; without one they diff against the previous
// call, which makes the first such value 0.0 by definition — sample twice
// before trusting a number. Per-process percentages can legitimately
// exceed 100 on multi-threaded processes.
//
// # Errors
//
// The taxonomy is three conditions, all matchable with errors.Is:
// ErrNoSuchProcess (gone, or identity mismatch — sticky per handle),
// ErrAccessDenied (recoverable: enumeration degrades instead of failing),
// and ErrTimeout (the process outlived a bounded wait; retry or escalate).
// Validation failures (negative PID or timeout) are raised before any
// side effect. Enumeration and WaitProcs swallow per-item NoSuchProcess
// and AccessDenied internally rather than aborting the whole batch.
package ps
