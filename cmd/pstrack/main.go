//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pstrack/pstrack/pkg/ps"
	"github.com/pstrack/pstrack/pkg/types"
)

var providerName string

func main() {
	root := &cobra.Command{
		Use:   "pstrack",
		Short: "Process tracking and utilization toolkit",
		Long: `pstrack enumerates processes, reconstructs process trees, samples
CPU utilization, and waits on process termination. PID handles are
reuse-safe: every operation verifies that the PID still names the same
process it did when first observed.

Examples:
  pstrack list
  pstrack tree 1
  pstrack watch -i 1s -s 20 $(pidof myserver)
  pstrack wait --terminate --timeout 5s 12345 23456..23460`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&providerName, "provider", defaultProvider,
		"backend to read process state from ("+strings.Join(providerNames, "|")+")")

	root.AddCommand(listCmd(), treeCmd(), watchCmd(), waitCmd())

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// parsePids expands arguments into PIDs. Each argument is either a single
// PID or an inclusive range A..B.
func parsePids(args []string) ([]int32, error) {
	var out []int32
	for _, arg := range args {
		if lo, hi, ok := strings.Cut(arg, ".."); ok {
			a, err1 := strconv.ParseInt(lo, 10, 32)
			b, err2 := strconv.ParseInt(hi, 10, 32)
			if err1 != nil || err2 != nil || a > b {
				return nil, fmt.Errorf("bad PID range %q", arg)
			}
			for pid := a; pid <= b; pid++ {
				out = append(out, int32(pid))
			}
			continue
		}
		pid, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad PID %q", arg)
		}
		out = append(out, int32(pid))
	}
	return out, nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession()
			if err != nil {
				return err
			}
			tw := newTable()
			fmt.Fprintln(tw, "PID\tPPID\tNAME\tSTARTED\tRSS\tVMS")
			for p, err := range sess.Iter() {
				if err != nil {
					return err
				}
				name, err := p.Name()
				if err != nil {
					name = "-"
				}
				ppid := "-"
				if v, err := p.Ppid(); err == nil {
					ppid = strconv.FormatInt(int64(v), 10)
				}
				started := "-"
				if ct, err := p.CreateTime(); err == nil {
					started = time.Unix(int64(ct), 0).Format("15:04:05")
				}
				rss, vms := "-", "-"
				if mi, err := p.MemoryInfo(); err == nil {
					rss = types.ToBytes(mi.RSS).String()
					vms = types.ToBytes(mi.VMS).String()
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					p.Pid(), ppid, name, started, rss, vms)
			}
			return tw.Flush()
		},
	}
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [PID]",
		Short: "Print the descendant tree rooted at PID (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pid int32 = 1
			if len(args) == 1 {
				pids, err := parsePids(args)
				if err != nil {
					return err
				}
				pid = pids[0]
			}
			sess, err := newSession()
			if err != nil {
				return err
			}
			root, err := sess.Process(pid)
			if err != nil {
				return err
			}
			return printTree(root, 0)
		},
	}
}

func printTree(p *ps.Process, depth int) error {
	name, err := p.Name()
	if err != nil {
		name = "?"
	}
	fmt.Printf("%s%d %s\n", strings.Repeat("  ", depth), p.Pid(), name)
	kids, err := p.Children(false)
	if err != nil {
		if errors.Is(err, ps.ErrNoSuchProcess) {
			return nil
		}
		return err
	}
	for _, kid := range kids {
		if err := printTree(kid, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func watchCmd() *cobra.Command {
	var (
		interval time.Duration
		samples  int
		system   bool
	)
	cmd := &cobra.Command{
		Use:   "watch [PID|PID..PID]...",
		Short: "Sample CPU and memory of processes on an interval",
		Long: `watch samples the given processes every interval and prints one row
per process per tick. The first tick primes the CPU counters, so
percentages start on the second tick. With no PIDs it reports
system-wide utilization only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pids, err := parsePids(args)
			if err != nil {
				return err
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be > 0")
			}
			return watch(cmd.Context(), pids, interval, samples, system)
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "sampling interval (e.g. 1s, 500ms)")
	cmd.Flags().IntVarP(&samples, "samples", "s", 0, "number of samples to collect (0 = run until Ctrl-C)")
	cmd.Flags().BoolVar(&system, "system", false, "also print system-wide CPU utilization")
	return cmd
}

func watch(ctx context.Context, pids []int32, interval time.Duration, samples int, system bool) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	procs := make([]*ps.Process, 0, len(pids))
	for _, pid := range pids {
		p, err := sess.Process(pid)
		if err != nil {
			return fmt.Errorf("pid %d: %w", pid, err)
		}
		procs = append(procs, p)
	}

	// Prime the non-blocking samplers so the first printed tick is real.
	if system || len(procs) == 0 {
		if _, err := sess.CPUPercent(0, false); err != nil {
			return err
		}
	}
	for _, p := range procs {
		_, _ = p.CPUPercent(0)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tw := newTable()
	fmt.Fprintln(tw, "TIME\tPID\tNAME\tCPU%\tRSS")
	tw.Flush()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted")
			return nil
		case <-ticker.C:
		}
		now := time.Now().Format("15:04:05")

		if system || len(procs) == 0 {
			pct, err := sess.CPUPercent(0, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t-\tsystem\t%.1f\t-\n", now, pct[0])
		}

		alive := procs[:0]
		for _, p := range procs {
			pct, err := p.CPUPercent(0)
			if err != nil {
				if errors.Is(err, ps.ErrNoSuchProcess) {
					slog.Info("process exited", "pid", p.Pid())
					continue
				}
				return err
			}
			alive = append(alive, p)
			name, err := p.Name()
			if err != nil {
				name = "-"
			}
			rss := "-"
			if mi, err := p.MemoryInfo(); err == nil {
				rss = types.ToBytes(mi.RSS).String()
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f\t%s\n", now, p.Pid(), name, pct, rss)
		}
		procs = alive
		tw.Flush()

		if len(pids) > 0 && len(procs) == 0 {
			fmt.Println("# all processes exited")
			return nil
		}
		if n++; samples > 0 && n >= samples {
			return nil
		}
	}
}

func waitCmd() *cobra.Command {
	var (
		timeout   time.Duration
		terminate bool
		kill      bool
	)
	cmd := &cobra.Command{
		Use:   "wait [PID|PID..PID]...",
		Short: "Wait for processes to terminate",
		Long: `wait blocks until the given processes terminate or the timeout
elapses, reporting each termination as it happens. With --terminate the
processes are sent SIGTERM first; with --kill, survivors of the timeout
are sent SIGKILL and waited on again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pids, err := parsePids(args)
			if err != nil {
				return err
			}
			return wait(pids, timeout, terminate, kill)
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "give up after this long (0 = wait forever)")
	cmd.Flags().BoolVar(&terminate, "terminate", false, "send SIGTERM before waiting")
	cmd.Flags().BoolVar(&kill, "kill", false, "SIGKILL survivors after the timeout")
	return cmd
}

func wait(pids []int32, timeout time.Duration, terminate, kill bool) error {
	if kill && timeout <= 0 {
		return fmt.Errorf("--kill requires --timeout")
	}
	sess, err := newSession()
	if err != nil {
		return err
	}

	var procs []*ps.Process
	for _, pid := range pids {
		p, err := sess.Process(pid)
		if err != nil {
			if errors.Is(err, ps.ErrNoSuchProcess) {
				slog.Info("already gone", "pid", pid)
				continue
			}
			return fmt.Errorf("pid %d: %w", pid, err)
		}
		procs = append(procs, p)
	}
	if len(procs) == 0 {
		return nil
	}

	if terminate {
		for _, p := range procs {
			if err := p.Terminate(); err != nil && !errors.Is(err, ps.ErrNoSuchProcess) {
				slog.Warn("terminate failed", "pid", p.Pid(), "err", err)
			}
		}
	}

	t := ps.WaitForever
	if timeout > 0 {
		t = timeout
	}
	report := func(p *ps.Process) {
		if code, ok := p.ExitCode(); ok {
			slog.Info("process terminated", "pid", p.Pid(), "exit_code", code)
		} else {
			slog.Info("process terminated", "pid", p.Pid())
		}
	}
	gone, alive, err := sess.WaitProcs(procs, t, report)
	if err != nil {
		return err
	}

	if len(alive) > 0 && kill {
		for _, p := range alive {
			if err := p.Kill(); err != nil && !errors.Is(err, ps.ErrNoSuchProcess) {
				slog.Warn("kill failed", "pid", p.Pid(), "err", err)
			}
		}
		var killed []*ps.Process
		killed, alive, err = sess.WaitProcs(alive, 3*time.Second, report)
		if err != nil {
			return err
		}
		gone = append(gone, killed...)
	}

	fmt.Printf("terminated: %d, still running: %d\n", len(gone), len(alive))
	if len(alive) > 0 {
		return fmt.Errorf("%d process(es) survived", len(alive))
	}
	return nil
}
