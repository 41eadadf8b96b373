package ps

import (
	"math"
	"time"
)

// round1 rounds to one decimal place, the resolution of every percentage
// this package reports.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// cpuTimer is the elapsed-time source behind per-process CPU percent.
// Monotonic wall time scaled by the CPU count is comparable against
// summed per-process CPU deltas spread over multiple cores. A provider
// without a monotonic clock (CPUTotaler) substitutes the sum of system
// CPU times, which advances at the same aggregate rate.
func (s *Session) cpuTimer() (float64, error) {
	if t, ok := s.prov.(CPUTotaler); ok {
		return t.SystemCPUTotal()
	}
	return s.clock().Sub(s.t0).Seconds() * float64(s.cpuCount()), nil
}

// CPUPercent returns the process CPU utilization as a percentage.
//
// With interval > 0 the call blocks, bracketing a sleep with two samples.
// With interval 0 it compares against the previous call on this handle and
// returns immediately; the very first such call has nothing to diff
// against and returns 0.0 by definition — callers should discard it.
//
// A value above 100 is legitimate: a process with threads on several cores
// accumulates CPU time faster than wall time passes. An interval too small
// for the clock granularity yields 0.0 rather than failing.
func (p *Process) CPUPercent(interval time.Duration) (float64, error) {
	blocking := interval > 0
	ncpu := p.s.cpuCount()

	var (
		st1, st2 float64
		pt1, pt2 CPUTimes
		err      error
	)
	if blocking {
		if st1, err = p.s.cpuTimer(); err != nil {
			return 0, err
		}
		if pt1, err = p.CPUTimes(); err != nil {
			return 0, err
		}
		p.s.sleep(interval)
		if st2, err = p.s.cpuTimer(); err != nil {
			return 0, err
		}
		if pt2, err = p.CPUTimes(); err != nil {
			return 0, err
		}
	} else {
		if st2, err = p.s.cpuTimer(); err != nil {
			return 0, err
		}
		if pt2, err = p.CPUTimes(); err != nil {
			return 0, err
		}
		if !p.hasLastCPU {
			p.lastSysCPU, p.lastProcCPU, p.hasLastCPU = st2, pt2, true
			return 0.0, nil
		}
		st1, pt1 = p.lastSysCPU, p.lastProcCPU
	}

	deltaProc := (pt2.User - pt1.User) + (pt2.System - pt1.System)
	deltaTime := st2 - st1
	p.lastSysCPU, p.lastProcCPU, p.hasLastCPU = st2, pt2, true

	if deltaTime <= 0 {
		return 0.0, nil
	}
	return round1((deltaProc / deltaTime) * 100 * float64(ncpu)), nil
}

// CPUCount returns the number of logical CPUs, or physical cores with
// logical false. The logical count is cached for the session.
func (s *Session) CPUCount(logical bool) (int, error) {
	if logical {
		return s.cpuCount(), nil
	}
	return s.prov.CPUCountPhysical()
}

// CPUTimes returns system-wide CPU times: a single aggregate entry, or one
// entry per logical core with percpu true (stable order across calls).
func (s *Session) CPUTimes(percpu bool) ([]SystemTimes, error) {
	if percpu {
		return s.prov.PerCPUTimes()
	}
	t, err := s.prov.SystemCPUTimes()
	if err != nil {
		return nil, err
	}
	return []SystemTimes{t}, nil
}

// cpuBusyPercent computes the busy share of one sample pair: busy is total
// minus idle, and the percentage is the busy delta over the total delta.
func cpuBusyPercent(t1, t2 SystemTimes) float64 {
	t1Busy, t2Busy := t1.Busy(), t2.Busy()
	// Busy regressing between samples usually indicates float precision
	// noise; report idle rather than a negative percentage.
	if t2Busy <= t1Busy {
		return 0.0
	}
	allDelta := t2.Total() - t1.Total()
	if allDelta <= 0 {
		return 0.0
	}
	return round1((t2Busy - t1Busy) / allDelta * 100)
}

// CPUPercent returns system-wide CPU utilization as a percentage: one
// element, or one per core with percpu true.
//
// With interval > 0 the call blocks over a sleep bracket. With interval 0
// it diffs against the previous CPUPercent call on this session; the first
// such call returns zeros, which callers should discard. The previous
// sample is private to CPUPercent — CPUTimesPercent keeps its own, so the
// two can be used together without disturbing each other.
func (s *Session) CPUPercent(interval time.Duration, percpu bool) ([]float64, error) {
	blocking := interval > 0

	if !percpu {
		t1 := s.lastCPU
		if blocking {
			cur, err := s.prov.SystemCPUTimes()
			if err != nil {
				return nil, err
			}
			t1 = &cur
			s.sleep(interval)
		}
		cur, err := s.prov.SystemCPUTimes()
		if err != nil {
			return nil, err
		}
		s.lastCPU = &cur
		if t1 == nil {
			// first call in the session: nothing to diff against
			return []float64{0.0}, nil
		}
		return []float64{cpuBusyPercent(*t1, cur)}, nil
	}

	t1 := s.lastPerCPU
	if blocking {
		prev, err := s.prov.PerCPUTimes()
		if err != nil {
			return nil, err
		}
		t1 = prev
		s.sleep(interval)
	}
	cur, err := s.prov.PerCPUTimes()
	if err != nil {
		return nil, err
	}
	s.lastPerCPU = cur
	if t1 == nil {
		return make([]float64, len(cur)), nil
	}
	out := make([]float64, 0, min(len(t1), len(cur)))
	for i := range min(len(t1), len(cur)) {
		out = append(out, cpuBusyPercent(t1[i], cur[i]))
	}
	return out, nil
}

// cpuFieldsPercent computes, for every CPU-time field independently, its
// percentage of the total delta between two samples. The percentages sum
// to 100 only as a natural consequence of the inputs. With clamp true,
// out-of-range values (a provider whose counters regress) are forced into
// [0, 100] instead of surfaced.
func cpuFieldsPercent(t1, t2 SystemTimes, clamp bool) SystemTimes {
	allDelta := t2.Total() - t1.Total()
	f1, f2 := t1.fields(), t2.fields()
	var out [10]float64
	for i := range f1 {
		var pct float64
		if allDelta != 0 {
			pct = (100 * (f2[i] - f1[i])) / allDelta
		}
		pct = round1(pct)
		if clamp {
			if pct > 100.0 {
				pct = 100.0
			} else if pct < 0.0 {
				pct = 0.0
			}
		}
		out[i] = pct
	}
	return systemTimesFromFields(t2.CPU, out)
}

// CPUTimesPercent is CPUPercent broken down by CPU-time field: every field
// (user, system, idle, iowait, ...) gets its own percentage of the total
// delta. Interval and percpu behave as in CPUPercent, and the first
// non-blocking call in a session returns all-zero entries.
func (s *Session) CPUTimesPercent(interval time.Duration, percpu bool) ([]SystemTimes, error) {
	blocking := interval > 0
	_, clamp := s.prov.(RegressingCPUCounters)

	if !percpu {
		t1 := s.lastCPUPct
		if blocking {
			cur, err := s.prov.SystemCPUTimes()
			if err != nil {
				return nil, err
			}
			t1 = &cur
			s.sleep(interval)
		}
		cur, err := s.prov.SystemCPUTimes()
		if err != nil {
			return nil, err
		}
		s.lastCPUPct = &cur
		if t1 == nil {
			return []SystemTimes{{CPU: cur.CPU}}, nil
		}
		return []SystemTimes{cpuFieldsPercent(*t1, cur, clamp)}, nil
	}

	t1 := s.lastPerPct
	if blocking {
		prev, err := s.prov.PerCPUTimes()
		if err != nil {
			return nil, err
		}
		t1 = prev
		s.sleep(interval)
	}
	cur, err := s.prov.PerCPUTimes()
	if err != nil {
		return nil, err
	}
	s.lastPerPct = cur
	if t1 == nil {
		out := make([]SystemTimes, len(cur))
		for i := range cur {
			out[i].CPU = cur[i].CPU
		}
		return out, nil
	}
	out := make([]SystemTimes, 0, min(len(t1), len(cur)))
	for i := range min(len(t1), len(cur)) {
		out = append(out, cpuFieldsPercent(t1[i], cur[i], clamp))
	}
	return out, nil
}
