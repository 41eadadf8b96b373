//go:build linux

package procfs

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type cgroupVersion int

const (
	cgroupNone cgroupVersion = iota
	cgroupV1
	cgroupV2
	cgroupHybrid
)

// cgroupMounts parses /proc/self/mountinfo for cgroup filesystems and
// returns the detected version plus the mount point of the unified
// hierarchy (v2) and of the v1 cpu controller, when present.
//
// The mountinfo line format has a " - fstype " separator; fields before it
// are positional (mount point is the 5th), fields after start with fstype.
func cgroupMounts() (ver cgroupVersion, v2Root, v1CPU string) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return cgroupNone, "", ""
	}
	defer f.Close()

	var hasV1, hasV2 bool
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		sep := " - "
		i := strings.LastIndex(line, sep)
		if i < 0 {
			continue
		}
		tail := strings.Fields(line[i+len(sep):])
		if len(tail) < 1 {
			continue
		}
		pre := strings.Fields(line[:i])
		if len(pre) < 5 {
			continue
		}
		mountPoint := pre[4]

		switch tail[0] {
		case "cgroup2":
			hasV2 = true
			if v2Root == "" {
				v2Root = mountPoint
			}
		case "cgroup":
			hasV1 = true
			// the cpu controller may be mounted alone or as cpu,cpuacct
			if len(tail) >= 3 {
				for _, opt := range strings.Split(tail[2], ",") {
					if opt == "cpu" {
						v1CPU = mountPoint
					}
				}
			}
		}
	}

	switch {
	case hasV1 && hasV2:
		return cgroupHybrid, v2Root, v1CPU
	case hasV2:
		return cgroupV2, v2Root, ""
	case hasV1:
		return cgroupV1, "", v1CPU
	default:
		return cgroupNone, "", ""
	}
}

// cgroupCPULimit resolves the CPU quota of the cgroup this process runs
// in, rounded up to whole CPUs. Returns 0 when unlimited or undetectable.
func cgroupCPULimit() int {
	ver, v2Root, v1CPU := cgroupMounts()
	switch ver {
	case cgroupV2, cgroupHybrid:
		if n := v2CPULimit(v2Root); n > 0 {
			return n
		}
		if ver == cgroupHybrid {
			return v1CPULimit(v1CPU)
		}
		return 0
	case cgroupV1:
		return v1CPULimit(v1CPU)
	default:
		return 0
	}
}

// v2CPULimit reads <root>/cpu.max: "max 100000" means no limit, otherwise
// "<quota-us> <period-us>".
func v2CPULimit(root string) int {
	if root == "" {
		return 0
	}
	b, err := os.ReadFile(filepath.Join(root, "cpu.max"))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(b))
	if len(fields) != 2 || fields[0] == "max" {
		return 0
	}
	quota, err1 := strconv.ParseInt(fields[0], 10, 64)
	period, err2 := strconv.ParseInt(fields[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	return quotaCPUs(quota, period)
}

// v1CPULimit reads cfs_quota_us and cfs_period_us from the v1 cpu
// controller. A quota of -1 means no limit.
func v1CPULimit(root string) int {
	if root == "" {
		return 0
	}
	quota := readInt(filepath.Join(root, "cpu.cfs_quota_us"))
	period := readInt(filepath.Join(root, "cpu.cfs_period_us"))
	if quota <= 0 || period <= 0 {
		return 0
	}
	return quotaCPUs(quota, period)
}

// quotaCPUs converts a quota/period pair to a CPU count, rounding up so a
// 1.5-CPU quota is treated as 2 CPUs.
func quotaCPUs(quota, period int64) int {
	if quota <= 0 || period <= 0 {
		return 0
	}
	return int((quota + period - 1) / period)
}

func readInt(path string) int64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
