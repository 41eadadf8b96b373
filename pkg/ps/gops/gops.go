//go:build unix

// Package gops implements ps.Provider on top of shirou/gopsutil. It is
// the portable POSIX backend: gopsutil does the per-platform digging and
// this package reduces its surface to the facts the engine consumes,
// mapping gopsutil's failures onto the ps error taxonomy.
package gops

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"

	"github.com/pstrack/pstrack/pkg/ps"
	"github.com/pstrack/pstrack/pkg/ps/psunix"
)

// Provider is a stateless ps.Provider backed by gopsutil.
type Provider struct{}

// New returns the gopsutil-backed provider.
func New() *Provider { return &Provider{} }

// mapErr converts gopsutil and errno failures into the ps taxonomy.
// Unrecognized errors pass through unchanged.
func mapErr(pid int32, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, process.ErrorProcessNotRunning),
		errors.Is(err, syscall.ESRCH),
		errors.Is(err, os.ErrNotExist):
		return &ps.NoSuchProcessError{Pid: pid}
	case errors.Is(err, process.ErrorNotPermitted),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, os.ErrPermission):
		return &ps.AccessDeniedError{Pid: pid}
	default:
		return err
	}
}

func (*Provider) proc(pid int32) (*process.Process, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, mapErr(pid, err)
	}
	return p, nil
}

func (*Provider) Pids() ([]int32, error) {
	return process.Pids()
}

func (*Provider) PidExists(pid int32) (bool, error) {
	return process.PidExists(pid)
}

func (g *Provider) ProcName(pid int32) (string, error) {
	p, err := g.proc(pid)
	if err != nil {
		return "", err
	}
	name, err := p.Name()
	return name, mapErr(pid, err)
}

func (g *Provider) CreateTime(pid int32) (float64, error) {
	p, err := g.proc(pid)
	if err != nil {
		return 0, err
	}
	ms, err := p.CreateTime()
	if err != nil {
		return 0, mapErr(pid, err)
	}
	return float64(ms) / 1000, nil
}

func (g *Provider) Ppid(pid int32) (int32, error) {
	p, err := g.proc(pid)
	if err != nil {
		return 0, err
	}
	ppid, err := p.Ppid()
	return ppid, mapErr(pid, err)
}

func (g *Provider) CPUTimes(pid int32) (ps.CPUTimes, error) {
	p, err := g.proc(pid)
	if err != nil {
		return ps.CPUTimes{}, err
	}
	t, err := p.Times()
	if err != nil {
		return ps.CPUTimes{}, mapErr(pid, err)
	}
	return ps.CPUTimes{User: t.User, System: t.System}, nil
}

func fromTimesStat(t cpu.TimesStat) ps.SystemTimes {
	return ps.SystemTimes{
		CPU:       t.CPU,
		User:      t.User,
		Nice:      t.Nice,
		System:    t.System,
		Idle:      t.Idle,
		Iowait:    t.Iowait,
		Irq:       t.Irq,
		Softirq:   t.Softirq,
		Steal:     t.Steal,
		Guest:     t.Guest,
		GuestNice: t.GuestNice,
	}
}

func (*Provider) SystemCPUTimes() (ps.SystemTimes, error) {
	times, err := cpu.Times(false)
	if err != nil {
		return ps.SystemTimes{}, err
	}
	if len(times) == 0 {
		return ps.SystemTimes{}, errors.New("gops: empty system cpu times")
	}
	return fromTimesStat(times[0]), nil
}

func (*Provider) PerCPUTimes() ([]ps.SystemTimes, error) {
	times, err := cpu.Times(true)
	if err != nil {
		return nil, err
	}
	out := make([]ps.SystemTimes, len(times))
	for i, t := range times {
		out[i] = fromTimesStat(t)
	}
	return out, nil
}

func (*Provider) CPUCountLogical() (int, error) {
	return cpu.Counts(true)
}

func (*Provider) CPUCountPhysical() (int, error) {
	return cpu.Counts(false)
}

func (*Provider) Wait(pid int32, timeout time.Duration) (int, bool, error) {
	return psunix.Wait(pid, timeout)
}

func (*Provider) SendSignal(pid int32, sig syscall.Signal) error {
	return psunix.Kill(pid, sig)
}

// --- optional capabilities ---

// MemoryInfo implements ps.MemoryInfoer.
func (g *Provider) MemoryInfo(pid int32) (ps.MemoryInfo, error) {
	p, err := g.proc(pid)
	if err != nil {
		return ps.MemoryInfo{}, err
	}
	m, err := p.MemoryInfo()
	if err != nil {
		return ps.MemoryInfo{}, mapErr(pid, err)
	}
	return ps.MemoryInfo{RSS: m.RSS, VMS: m.VMS}, nil
}

// IOCounters implements ps.IOCounterer.
func (g *Provider) IOCounters(pid int32) (ps.IOCounters, error) {
	p, err := g.proc(pid)
	if err != nil {
		return ps.IOCounters{}, err
	}
	c, err := p.IOCounters()
	if err != nil {
		return ps.IOCounters{}, mapErr(pid, err)
	}
	return ps.IOCounters{
		ReadCount:  c.ReadCount,
		WriteCount: c.WriteCount,
		ReadBytes:  c.ReadBytes,
		WriteBytes: c.WriteBytes,
	}, nil
}

// Nice implements the read half of ps.Nicer.
func (g *Provider) Nice(pid int32) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		return 0, mapErr(pid, err)
	}
	return prio, nil
}

// SetNice implements the write half of ps.Nicer.
func (*Provider) SetNice(pid int32, value int) error {
	return mapErr(pid, unix.Setpriority(unix.PRIO_PROCESS, int(pid), value))
}

// compile-time capability checks
var (
	_ ps.Provider     = (*Provider)(nil)
	_ ps.MemoryInfoer = (*Provider)(nil)
	_ ps.IOCounterer  = (*Provider)(nil)
	_ ps.Nicer        = (*Provider)(nil)
)
