package ps

import (
	"slices"
	"syscall"
	"time"
)

// fakeProc is one entry in the fake process table.
type fakeProc struct {
	name   string
	create float64
	ppid   int32
	cpu    CPUTimes

	// CreateTime returns AccessDeniedError while set
	denyCreate bool

	// Wait behavior: exitsAfter > 0 means the process terminates on the
	// n-th Wait call, reporting exitCode (when hasExit). Zero means it
	// never terminates on its own.
	exitsAfter int
	exitCode   int
	hasExit    bool
}

// fakeProvider is an in-memory Provider with a mutable process table, used
// to drive the engine through scenarios (PID reuse, permission failures,
// terminations) that are impossible to stage reliably on a live system.
type fakeProvider struct {
	procs map[int32]*fakeProc

	// extra PIDs reported by Pids() without a table entry, to simulate
	// processes vanishing between listing and inspection
	phantom []int32

	ncpu    int
	sys     SystemTimes
	percpu  []SystemTimes
	signals map[int32][]syscall.Signal
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		procs:   make(map[int32]*fakeProc),
		ncpu:    1,
		signals: make(map[int32][]syscall.Signal),
	}
}

func (f *fakeProvider) add(pid, ppid int32, name string, create float64) *fakeProc {
	fp := &fakeProc{name: name, create: create, ppid: ppid}
	f.procs[pid] = fp
	return fp
}

func (f *fakeProvider) remove(pid int32) { delete(f.procs, pid) }

func (f *fakeProvider) lookup(pid int32) (*fakeProc, error) {
	fp, ok := f.procs[pid]
	if !ok {
		return nil, &NoSuchProcessError{Pid: pid}
	}
	return fp, nil
}

func (f *fakeProvider) Pids() ([]int32, error) {
	pids := make([]int32, 0, len(f.procs)+len(f.phantom))
	for pid := range f.procs {
		pids = append(pids, pid)
	}
	return append(pids, f.phantom...), nil
}

func (f *fakeProvider) PidExists(pid int32) (bool, error) {
	_, ok := f.procs[pid]
	return ok, nil
}

func (f *fakeProvider) ProcName(pid int32) (string, error) {
	fp, err := f.lookup(pid)
	if err != nil {
		return "", err
	}
	return fp.name, nil
}

func (f *fakeProvider) CreateTime(pid int32) (float64, error) {
	fp, err := f.lookup(pid)
	if err != nil {
		return 0, err
	}
	if fp.denyCreate {
		return 0, &AccessDeniedError{Pid: pid}
	}
	return fp.create, nil
}

func (f *fakeProvider) Ppid(pid int32) (int32, error) {
	fp, err := f.lookup(pid)
	if err != nil {
		return 0, err
	}
	return fp.ppid, nil
}

func (f *fakeProvider) CPUTimes(pid int32) (CPUTimes, error) {
	fp, err := f.lookup(pid)
	if err != nil {
		return CPUTimes{}, err
	}
	return fp.cpu, nil
}

func (f *fakeProvider) SystemCPUTimes() (SystemTimes, error) {
	return f.sys, nil
}

func (f *fakeProvider) PerCPUTimes() ([]SystemTimes, error) {
	return slices.Clone(f.percpu), nil
}

func (f *fakeProvider) CPUCountLogical() (int, error)  { return f.ncpu, nil }
func (f *fakeProvider) CPUCountPhysical() (int, error) { return f.ncpu, nil }

func (f *fakeProvider) Wait(pid int32, timeout time.Duration) (int, bool, error) {
	fp, ok := f.procs[pid]
	if !ok {
		return 0, false, &NoSuchProcessError{Pid: pid}
	}
	if fp.exitsAfter > 0 {
		if fp.exitsAfter--; fp.exitsAfter == 0 {
			delete(f.procs, pid)
			return fp.exitCode, fp.hasExit, nil
		}
	}
	return 0, false, &TimeoutExpiredError{Timeout: timeout, Pid: pid}
}

func (f *fakeProvider) SendSignal(pid int32, sig syscall.Signal) error {
	if _, ok := f.procs[pid]; !ok {
		return &NoSuchProcessError{Pid: pid}
	}
	f.signals[pid] = append(f.signals[pid], sig)
	return nil
}

// mappingProvider adds the bulk pid→ppid capability on top of the fake.
type mappingProvider struct {
	*fakeProvider
}

func (m *mappingProvider) PpidMap() (map[int32]int32, error) {
	out := make(map[int32]int32, len(m.procs))
	for pid, fp := range m.procs {
		out[pid] = fp.ppid
	}
	return out, nil
}

// totalingProvider marks the fake as having no monotonic clock, making the
// engine time per-process CPU against summed system CPU times.
type totalingProvider struct {
	*fakeProvider
	total float64
}

func (t *totalingProvider) SystemCPUTotal() (float64, error) {
	return t.total, nil
}

// regressingProvider marks the fake's system CPU counters as able to go
// backwards, which turns on [0, 100] clamping.
type regressingProvider struct {
	*fakeProvider
}

func (r *regressingProvider) CPUTimesMayRegress() {}

// testClock is a manually advanced clock for deterministic timing.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// install makes s measure elapsed time exclusively on this clock.
func (c *testClock) install(s *Session) {
	s.t0 = c.now
	s.clock = c.Now
}
