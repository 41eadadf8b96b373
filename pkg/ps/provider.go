package ps

import (
	"syscall"
	"time"
)

// WaitForever makes Wait and WaitProcs block until termination with no
// deadline. It is an ordinary positive Duration (~292 years) so that the
// eager negative-timeout validation stays unambiguous.
const WaitForever time.Duration = 1<<63 - 1

// CPUTimes is the accumulated CPU time of one process, in seconds.
type CPUTimes struct {
	User   float64
	System float64
}

// Total returns user + system seconds.
func (t CPUTimes) Total() float64 { return t.User + t.System }

// SystemTimes holds system-wide CPU times in seconds, split by mode.
// CPU names the source: "cpu-total" or "cpuN". Fields that a platform does
// not report are zero.
type SystemTimes struct {
	CPU       string
	User      float64
	Nice      float64
	System    float64
	Idle      float64
	Iowait    float64
	Irq       float64
	Softirq   float64
	Steal     float64
	Guest     float64
	GuestNice float64
}

// Total returns the sum of all fields.
func (t SystemTimes) Total() float64 {
	var sum float64
	for _, v := range t.fields() {
		sum += v
	}
	return sum
}

// Busy returns total minus idle time.
func (t SystemTimes) Busy() float64 { return t.Total() - t.Idle }

// fields returns the numeric fields in a fixed order, mirroring
// fieldNames. Used by the per-field percentage calculator.
func (t SystemTimes) fields() [10]float64 {
	return [10]float64{
		t.User, t.Nice, t.System, t.Idle, t.Iowait,
		t.Irq, t.Softirq, t.Steal, t.Guest, t.GuestNice,
	}
}

func systemTimesFromFields(cpu string, f [10]float64) SystemTimes {
	return SystemTimes{
		CPU: cpu,
		User: f[0], Nice: f[1], System: f[2], Idle: f[3], Iowait: f[4],
		Irq: f[5], Softirq: f[6], Steal: f[7], Guest: f[8], GuestNice: f[9],
	}
}

// MemoryInfo is the basic memory footprint of a process, in bytes.
type MemoryInfo struct {
	RSS uint64
	VMS uint64
}

// IOCounters are cumulative I/O counters of a process.
type IOCounters struct {
	ReadCount  uint64
	WriteCount uint64
	ReadBytes  uint64
	WriteBytes uint64
}

// Provider supplies raw per-PID and system-wide facts from the operating
// system. One implementation per OS family; the engine never touches the
// OS directly. Implementations map their native failures onto the package
// error taxonomy (NoSuchProcessError, AccessDeniedError,
// TimeoutExpiredError) so the engine can classify them with errors.Is.
//
// Providers are assumed POSIX-like in that PIDs are small non-negative
// integers and signals follow syscall.Signal semantics.
type Provider interface {
	// Pids lists the PIDs of all currently running processes, unordered.
	Pids() ([]int32, error)

	// PidExists reports whether pid is in the current process table.
	PidExists(pid int32) (bool, error)

	// ProcName returns the short process name.
	ProcName(pid int32) (string, error)

	// CreateTime returns the process creation time in seconds since the
	// epoch, with sub-second precision where the platform provides it.
	CreateTime(pid int32) (float64, error)

	// Ppid returns the parent PID. Callers must not cache it: on POSIX it
	// can change to 1 when the process is reparented to init.
	Ppid(pid int32) (int32, error)

	// CPUTimes returns the accumulated process CPU times.
	CPUTimes(pid int32) (CPUTimes, error)

	// SystemCPUTimes returns aggregate CPU times across all cores.
	SystemCPUTimes() (SystemTimes, error)

	// PerCPUTimes returns CPU times for each logical core, in a stable
	// order across calls.
	PerCPUTimes() ([]SystemTimes, error)

	// CPUCountLogical returns the number of logical CPUs.
	CPUCountLogical() (int, error)

	// CPUCountPhysical returns the number of physical cores.
	CPUCountPhysical() (int, error)

	// Wait blocks until the process terminates or timeout elapses.
	// WaitForever blocks indefinitely; zero performs a single non-blocking
	// check. On termination it returns the exit code when the process is a
	// waitable child of the caller (hasCode true), or hasCode false when
	// only disappearance could be observed. A still-running process at the
	// deadline yields a TimeoutExpiredError.
	Wait(pid int32, timeout time.Duration) (code int, hasCode bool, err error)

	// SendSignal delivers sig, distinguishing "no such process" from
	// "permission denied" in the returned error.
	SendSignal(pid int32, sig syscall.Signal) error
}

// Optional provider capabilities. The engine probes for these with type
// assertions; a provider advertises an operation by implementing the
// interface, not by returning ErrNotImplemented at runtime.

// ParentMapper exposes a bulk pid→ppid snapshot. Purely a fast path for
// tree construction; behavior is identical to querying each process.
type ParentMapper interface {
	PpidMap() (map[int32]int32, error)
}

// MemoryInfoer exposes per-process memory counters.
type MemoryInfoer interface {
	MemoryInfo(pid int32) (MemoryInfo, error)
}

// IOCounterer exposes per-process I/O counters.
type IOCounterer interface {
	IOCounters(pid int32) (IOCounters, error)
}

// Nicer exposes process scheduling priority.
type Nicer interface {
	Nice(pid int32) (int, error)
	SetNice(pid int32, value int) error
}

// CPUTotaler marks a provider without a usable monotonic wall clock. When
// present, per-process CPU percent measures elapsed time as the sum of
// system CPU times between samples instead of monotonic-elapsed × ncpu.
type CPUTotaler interface {
	SystemCPUTotal() (float64, error)
}

// RegressingCPUCounters marks a provider whose reported system CPU
// counters can regress between samples (a known platform anomaly). When
// present, per-field CPU percentages are clamped to [0, 100] instead of
// surfacing out-of-range values.
type RegressingCPUCounters interface {
	CPUTimesMayRegress()
}
