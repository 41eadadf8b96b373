//go:build linux

// Package procfs implements ps.Provider natively on Linux, reading the
// facts straight out of /proc via prometheus/procfs. It avoids the
// portability layer entirely and adds a few Linux-only niceties: a bulk
// PPID map for tree reconstruction and a cgroup-aware CPU count.
package procfs

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"time"

	pfs "github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/pstrack/pstrack/pkg/ps"
	"github.com/pstrack/pstrack/pkg/ps/psunix"
)

// Provider reads process and CPU state from /proc.
type Provider struct {
	fs     pfs.FS
	hz     float64
	pgsize uint64

	// cgroup CPU quota, resolved once; 0 means unlimited or undetectable
	quotaCPUs int
}

// New returns a Provider over /proc. Fails only when /proc is not mounted.
func New() (*Provider, error) {
	procFS, err := pfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Provider{
		fs:        procFS,
		hz:        float64(clockTicks()),
		pgsize:    uint64(os.Getpagesize()),
		quotaCPUs: cgroupCPULimit(),
	}, nil
}

// clockTicks returns jiffies per second. The CLK_TCK env var overrides it
// for testing; the authoritative sysconf(_SC_CLK_TCK) needs cgo, and 100
// is the value on every mainstream kernel build.
func clockTicks() int {
	if v, _ := strconv.Atoi(os.Getenv("CLK_TCK")); v > 0 {
		return v
	}
	return 100
}

// mapErr classifies /proc read failures. A path vanishing mid-read means
// the process exited; permission failures on pid-private files mean we can
// see the process but not this attribute.
func mapErr(pid int32, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ESRCH):
		return &ps.NoSuchProcessError{Pid: pid}
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.EACCES):
		return &ps.AccessDeniedError{Pid: pid}
	default:
		return err
	}
}

func (p *Provider) proc(pid int32) (pfs.Proc, error) {
	pr, err := p.fs.Proc(int(pid))
	if err != nil {
		return pfs.Proc{}, mapErr(pid, err)
	}
	return pr, nil
}

func (p *Provider) stat(pid int32) (pfs.ProcStat, error) {
	pr, err := p.proc(pid)
	if err != nil {
		return pfs.ProcStat{}, err
	}
	st, err := pr.Stat()
	if err != nil {
		return pfs.ProcStat{}, mapErr(pid, err)
	}
	return st, nil
}

func (p *Provider) Pids() ([]int32, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(procs))
	for _, pr := range procs {
		pids = append(pids, int32(pr.PID))
	}
	return pids, nil
}

func (p *Provider) PidExists(pid int32) (bool, error) {
	_, err := p.fs.Proc(int(pid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *Provider) ProcName(pid int32) (string, error) {
	pr, err := p.proc(pid)
	if err != nil {
		return "", err
	}
	comm, err := pr.Comm()
	return comm, mapErr(pid, err)
}

func (p *Provider) CreateTime(pid int32) (float64, error) {
	st, err := p.stat(pid)
	if err != nil {
		return 0, err
	}
	ct, err := st.StartTime()
	return ct, mapErr(pid, err)
}

func (p *Provider) Ppid(pid int32) (int32, error) {
	st, err := p.stat(pid)
	if err != nil {
		return 0, err
	}
	return int32(st.PPID), nil
}

func (p *Provider) CPUTimes(pid int32) (ps.CPUTimes, error) {
	st, err := p.stat(pid)
	if err != nil {
		return ps.CPUTimes{}, err
	}
	return ps.CPUTimes{
		User:   float64(st.UTime) / p.hz,
		System: float64(st.STime) / p.hz,
	}, nil
}

func fromCPUStat(name string, c pfs.CPUStat) ps.SystemTimes {
	return ps.SystemTimes{
		CPU:       name,
		User:      c.User,
		Nice:      c.Nice,
		System:    c.System,
		Idle:      c.Idle,
		Iowait:    c.Iowait,
		Irq:       c.IRQ,
		Softirq:   c.SoftIRQ,
		Steal:     c.Steal,
		Guest:     c.Guest,
		GuestNice: c.GuestNice,
	}
}

func (p *Provider) SystemCPUTimes() (ps.SystemTimes, error) {
	st, err := p.fs.Stat()
	if err != nil {
		return ps.SystemTimes{}, err
	}
	return fromCPUStat("cpu-total", st.CPUTotal), nil
}

func (p *Provider) PerCPUTimes() ([]ps.SystemTimes, error) {
	st, err := p.fs.Stat()
	if err != nil {
		return nil, err
	}
	out := make([]ps.SystemTimes, 0, len(st.CPU))
	// st.CPU is keyed by core index; emit in index order
	for i := int64(0); int(i) < len(st.CPU); i++ {
		c, ok := st.CPU[i]
		if !ok {
			break
		}
		out = append(out, fromCPUStat("cpu"+strconv.FormatInt(i, 10), c))
	}
	return out, nil
}

// CPUCountLogical reports online logical CPUs, capped by the cgroup CPU
// quota when one is set, so a container pinned to two cores out of 64
// computes percentages against 2.
func (p *Provider) CPUCountLogical() (int, error) {
	n := runtime.NumCPU()
	if p.quotaCPUs > 0 && p.quotaCPUs < n {
		n = p.quotaCPUs
	}
	return n, nil
}

// CPUCountPhysical counts distinct (physical id, core id) pairs from
// /proc/cpuinfo.
func (p *Provider) CPUCountPhysical() (int, error) {
	infos, err := p.fs.CPUInfo()
	if err != nil {
		return 0, err
	}
	cores := make(map[[2]string]struct{})
	for _, ci := range infos {
		cores[[2]string{ci.PhysicalID, ci.CoreID}] = struct{}{}
	}
	if len(cores) == 0 {
		return runtime.NumCPU(), nil
	}
	return len(cores), nil
}

func (p *Provider) Wait(pid int32, timeout time.Duration) (int, bool, error) {
	return psunix.Wait(pid, timeout)
}

func (p *Provider) SendSignal(pid int32, sig syscall.Signal) error {
	return psunix.Kill(pid, sig)
}

// --- optional capabilities ---

// PpidMap implements ps.ParentMapper with a single /proc sweep, one stat
// read per process instead of one full listing per process.
func (p *Provider) PpidMap() (map[int32]int32, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, err
	}
	m := make(map[int32]int32, len(procs))
	for _, pr := range procs {
		st, err := pr.Stat()
		if err != nil {
			// exited between listing and read
			continue
		}
		m[int32(pr.PID)] = int32(st.PPID)
	}
	return m, nil
}

// MemoryInfo implements ps.MemoryInfoer from the stat RSS and VSZ fields.
func (p *Provider) MemoryInfo(pid int32) (ps.MemoryInfo, error) {
	st, err := p.stat(pid)
	if err != nil {
		return ps.MemoryInfo{}, err
	}
	return ps.MemoryInfo{
		RSS: uint64(st.RSS) * p.pgsize,
		VMS: uint64(st.VSize),
	}, nil
}

// IOCounters implements ps.IOCounterer from /proc/<pid>/io. Kernel
// threads and foreign-user processes do not expose the file.
func (p *Provider) IOCounters(pid int32) (ps.IOCounters, error) {
	pr, err := p.proc(pid)
	if err != nil {
		return ps.IOCounters{}, err
	}
	io, err := pr.IO()
	if err != nil {
		return ps.IOCounters{}, mapErr(pid, err)
	}
	return ps.IOCounters{
		ReadCount:  io.SyscR,
		WriteCount: io.SyscW,
		ReadBytes:  io.ReadBytes,
		WriteBytes: io.WriteBytes,
	}, nil
}

// Nice implements the read half of ps.Nicer.
func (p *Provider) Nice(pid int32) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		return 0, mapErr(pid, err)
	}
	return prio, nil
}

// SetNice implements the write half of ps.Nicer.
func (p *Provider) SetNice(pid int32, value int) error {
	return mapErr(pid, unix.Setpriority(unix.PRIO_PROCESS, int(pid), value))
}

var (
	_ ps.Provider     = (*Provider)(nil)
	_ ps.ParentMapper = (*Provider)(nil)
	_ ps.MemoryInfoer = (*Provider)(nil)
	_ ps.IOCounterer  = (*Provider)(nil)
	_ ps.Nicer        = (*Provider)(nil)
)
