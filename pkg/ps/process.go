package ps

import (
	"errors"
	"syscall"
	"time"
)

// Process is the long-lived handle for one observed process instance. Its
// identity is derived once, at construction; a PID that gets recycled
// later always produces a new handle, never a revival of this one.
//
// Most queries do not re-verify identity and may report stale-but-plausible
// data if the PID was reused since construction. The operations that act on
// the process — Parent, Children, SetNice, Suspend, Resume, SendSignal,
// Terminate, Kill — re-verify identity immediately before acting, because
// signaling a recycled PID would hit an unrelated process.
type Process struct {
	pid   int32
	s     *Session
	ident Identity

	// sticky: set the first time an identity check fails, never cleared
	gone bool

	name          string
	hasName       bool
	createTime    float64
	hasCreateTime bool

	// previous samples for the non-blocking CPUPercent call
	lastSysCPU  float64
	lastProcCPU CPUTimes
	hasLastCPU  bool

	// filled in by WaitProcs (and Wait) once termination is observed
	exitCode    int
	hasExitCode bool
	exited      bool
}

// Pid returns the process PID.
func (p *Process) Pid() int32 { return p.pid }

// Identity returns the immutable identity derived at construction.
func (p *Process) Identity() Identity { return p.ident }

// Equal reports whether two handles refer to the same process instance,
// comparing identities rather than pointers.
func (p *Process) Equal(o *Process) bool {
	return o != nil && p.ident.Equal(o.ident)
}

// IsRunning reports whether the process is still running, re-deriving its
// identity from the live system so a recycled PID counts as not running.
// A NoSuchProcess outcome is sticky: the handle stays gone forever.
//
// A non-nil error means the identity could not be re-verified (typically a
// permission failure); the process may or may not still be this one.
func (p *Process) IsRunning() (bool, error) {
	if p.gone {
		return false, nil
	}
	probe, err := p.s.newProcess(p.pid)
	if err != nil {
		if errors.Is(err, ErrNoSuchProcess) {
			p.gone = true
			return false, nil
		}
		return false, err
	}
	if !probe.ident.HasCreateTime() && p.ident.HasCreateTime() {
		// The pid exists but its creation time is unreadable now, so the
		// cached identity cannot be confirmed or refuted.
		return false, &AccessDeniedError{Pid: p.pid, ProcName: p.name}
	}
	if !p.ident.Equal(probe.ident) {
		p.gone = true
		return false, nil
	}
	return true, nil
}

// assertRunning is the identity guard on every operation that acts on the
// process. It converts "not running" into NoSuchProcess and propagates a
// failed verification unchanged.
func (p *Process) assertRunning() error {
	running, err := p.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return &NoSuchProcessError{Pid: p.pid, ProcName: p.name}
	}
	return nil
}

// Name returns the short process name, cached after the first call.
func (p *Process) Name() (string, error) {
	if p.hasName {
		return p.name, nil
	}
	name, err := p.s.prov.ProcName(p.pid)
	if err != nil {
		return "", err
	}
	p.name = name
	p.hasName = true
	return name, nil
}

// CreateTime returns the creation time in seconds since the epoch, cached
// after the first successful read. The cached value never disagrees with
// the identity: both come from the same construction-time read unless that
// read was denied.
func (p *Process) CreateTime() (float64, error) {
	if p.hasCreateTime {
		return p.createTime, nil
	}
	ct, err := p.s.prov.CreateTime(p.pid)
	if err != nil {
		return 0, err
	}
	p.createTime = ct
	p.hasCreateTime = true
	return ct, nil
}

// Ppid returns the parent PID. Never cached: a process that outlives its
// parent is reparented and its ppid changes to 1.
func (p *Process) Ppid() (int32, error) {
	return p.s.prov.Ppid(p.pid)
}

// CPUTimes returns the accumulated user and system CPU time.
func (p *Process) CPUTimes() (CPUTimes, error) {
	return p.s.prov.CPUTimes(p.pid)
}

// MemoryInfo returns RSS/VMS if the provider supports it.
func (p *Process) MemoryInfo() (MemoryInfo, error) {
	m, ok := p.s.prov.(MemoryInfoer)
	if !ok {
		return MemoryInfo{}, ErrNotImplemented
	}
	return m.MemoryInfo(p.pid)
}

// IOCounters returns cumulative I/O counters if the provider supports it.
func (p *Process) IOCounters() (IOCounters, error) {
	c, ok := p.s.prov.(IOCounterer)
	if !ok {
		return IOCounters{}, ErrNotImplemented
	}
	return c.IOCounters(p.pid)
}

// Nice returns the scheduling priority if the provider supports it.
func (p *Process) Nice() (int, error) {
	n, ok := p.s.prov.(Nicer)
	if !ok {
		return 0, ErrNotImplemented
	}
	return n.Nice(p.pid)
}

// SetNice sets the scheduling priority, guarded against PID reuse.
func (p *Process) SetNice(value int) error {
	n, ok := p.s.prov.(Nicer)
	if !ok {
		return ErrNotImplemented
	}
	if err := p.assertRunning(); err != nil {
		return err
	}
	return n.SetNice(p.pid, value)
}

// SendSignal delivers sig, guarded against PID reuse. A "no such process"
// outcome marks the handle gone.
func (p *Process) SendSignal(sig syscall.Signal) error {
	if err := p.assertRunning(); err != nil {
		return err
	}
	return p.sendSignal(sig)
}

func (p *Process) sendSignal(sig syscall.Signal) error {
	err := p.s.prov.SendSignal(p.pid, sig)
	if errors.Is(err, ErrNoSuchProcess) {
		p.gone = true
		return &NoSuchProcessError{Pid: p.pid, ProcName: p.name}
	}
	return err
}

// Suspend stops execution with SIGSTOP, guarded against PID reuse.
func (p *Process) Suspend() error {
	if err := p.assertRunning(); err != nil {
		return err
	}
	return p.sendSignal(syscall.SIGSTOP)
}

// Resume resumes execution with SIGCONT, guarded against PID reuse.
func (p *Process) Resume() error {
	if err := p.assertRunning(); err != nil {
		return err
	}
	return p.sendSignal(syscall.SIGCONT)
}

// Terminate sends SIGTERM, guarded against PID reuse.
func (p *Process) Terminate() error {
	return p.SendSignal(syscall.SIGTERM)
}

// Kill sends SIGKILL, guarded against PID reuse.
func (p *Process) Kill() error {
	return p.SendSignal(syscall.SIGKILL)
}

// Wait blocks until the process terminates or timeout elapses. Pass
// WaitForever for no deadline; zero performs one non-blocking check.
//
// On termination the exit code is returned when the process is a waitable
// child of the caller (hasCode true). A process that is already gone
// returns immediately with hasCode false rather than an error. A process
// still alive at the deadline returns a TimeoutExpiredError; that is a
// retryable condition, not a terminal one.
func (p *Process) Wait(timeout time.Duration) (code int, hasCode bool, err error) {
	if timeout < 0 {
		return 0, false, ErrNegativeTimeout
	}
	code, hasCode, err = p.s.prov.Wait(p.pid, timeout)
	if err != nil {
		if errors.Is(err, ErrNoSuchProcess) {
			// Already terminated: not an error for Wait.
			return 0, false, nil
		}
		if errors.Is(err, ErrTimeout) {
			return 0, false, &TimeoutExpiredError{Timeout: timeout, Pid: p.pid, ProcName: p.name}
		}
		return 0, false, err
	}
	p.recordExit(code, hasCode)
	return code, hasCode, nil
}

func (p *Process) recordExit(code int, hasCode bool) {
	p.exited = true
	if hasCode {
		p.exitCode = code
		p.hasExitCode = true
	}
}

// ExitCode returns the exit code observed by Wait or WaitProcs. ok is
// false if termination has not been observed, or if the process was not a
// waitable child and no code could be collected.
func (p *Process) ExitCode() (code int, ok bool) {
	return p.exitCode, p.hasExitCode
}

// Exited reports whether Wait or WaitProcs observed this process
// terminate, regardless of whether an exit code was collected.
func (p *Process) Exited() bool { return p.exited }
