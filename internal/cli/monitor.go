package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/gpumon/internal/collector"
	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/monitor"
	"github.com/rileyhilliard/gpumon/internal/remote"
	"github.com/rileyhilliard/gpumon/internal/scheduler"
	"github.com/rileyhilliard/gpumon/internal/ui"
)

// MonitorOptions holds the monitor command flags. String durations accept
// "5s" or a bare number of seconds.
type MonitorOptions struct {
	Interval    string
	Timeout     string
	User        string
	Transport   string
	MaxParallel int
	ShowAll     bool
	Once        bool
}

var monitorOpts MonitorOptions

var monitorCmd = &cobra.Command{
	Use:   "monitor <cluster>",
	Short: "Live GPU dashboard for a cluster",
	Long: `Poll every host in the cluster with nvidia-smi over SSH and show a
refreshing dashboard: a per-host summary, the GPUs over threshold, and
optionally every GPU.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  a           Toggle the all-GPU table
  up/k down/j Scroll
  PgUp/PgDn   Scroll a page
  ?           Show help

When stdout isn't a terminal, or with --once, plain tables are printed
instead.

Examples:
  gpumon monitor lab
  gpumon monitor lab --interval 10 --user ml
  gpumon monitor lab --once --show-all-gpus
  gpumon monitor lab --transport native`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeClusterNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, err := loadMonitorCluster(cmd, clusterStore(), args[0], monitorOpts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runMonitor(ctx, cluster, monitorOpts, cmd.OutOrStdout())
	},
}

func init() {
	bindMonitorFlags(monitorCmd, &monitorOpts)
	rootCmd.AddCommand(monitorCmd)
}

func bindMonitorFlags(cmd *cobra.Command, opts *MonitorOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.Interval, "interval", "", "refresh interval, e.g. 5 or 5s (default from cluster file, else 5s)")
	f.StringVar(&opts.Timeout, "timeout", "", "per-host poll timeout (default from cluster file, else 25s)")
	f.StringVar(&opts.User, "user", "", "SSH user for hosts without an explicit user@")
	f.StringVar(&opts.Transport, "transport", "", "how to reach hosts: exec (system ssh) or native")
	f.IntVar(&opts.MaxParallel, "max-parallel", 0, "max hosts polled at once (0 = all)")
	f.BoolVar(&opts.ShowAll, "show-all-gpus", false, "show the table of every GPU")
	f.BoolVar(&opts.Once, "once", false, "poll once, print plain tables and exit")
}

// loadMonitorCluster loads the cluster and applies flags the user set.
func loadMonitorCluster(cmd *cobra.Command, store *config.Store, name string, opts MonitorOptions) (*config.Cluster, error) {
	cluster, err := store.Load(name)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		d, err := config.ParseDuration(opts.Interval)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid interval", opts.Interval),
				"Try 5, 5s or 1m")
		}
		cluster.Interval = d
	}
	if flags.Changed("timeout") {
		d, err := config.ParseDuration(opts.Timeout)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid timeout", opts.Timeout),
				"Try 25, 25s or 1m")
		}
		cluster.Timeout = d
	}
	if flags.Changed("user") {
		cluster.User = opts.User
	}
	if flags.Changed("transport") {
		cluster.Transport = config.Transport(opts.Transport)
	}
	if flags.Changed("max-parallel") {
		cluster.MaxParallel = opts.MaxParallel
	}

	if err := config.Validate(cluster); err != nil {
		return nil, err
	}
	return cluster, nil
}

// newRunner builds the runner for the cluster's transport.
func newRunner(c *config.Cluster) remote.Runner {
	log := logger.NewEnvLogger("remote")
	if c.Transport == config.TransportNative {
		r := remote.NewNativeRunner(c.User)
		r.Log = log
		return r
	}
	r := remote.NewSSHRunner(c.User)
	r.Log = log
	return r
}

// newScheduler wires runner -> poller -> aggregator -> scheduler.
func newScheduler(c *config.Cluster, runner remote.Runner) *scheduler.Scheduler {
	poller := collector.NewPoller(runner, c.Timeout)
	poller.Log = logger.NewEnvLogger("poll")

	agg := collector.NewAggregator(poller)
	agg.Policy = c.Thresholds
	agg.MaxParallel = c.MaxParallel
	agg.Log = logger.NewEnvLogger("aggregate")

	hosts := collector.UniqueHosts(c.Hosts)
	cycle := func(ctx context.Context) gpu.ClusterSnapshot {
		return agg.Aggregate(ctx, c.Name, hosts)
	}

	s := scheduler.New(c.Interval, cycle, nil)
	s.Log = logger.NewEnvLogger("scheduler")
	if c.Transport != config.TransportNative {
		s.Preflight = remote.CheckLocalTool
	}
	return s
}

func runMonitor(ctx context.Context, c *config.Cluster, opts MonitorOptions, out io.Writer) error {
	sched := newScheduler(c, newRunner(c))
	report := monitor.ReportOptions{
		Title:   c.Title(),
		Policy:  c.Thresholds,
		ShowAll: opts.ShowAll,
		Width:   ui.TerminalWidth(0),
	}

	if opts.Once {
		snap, err := sched.RunOnce(ctx)
		if err != nil {
			return err
		}
		r := monitor.NewPlainRenderer(out, report)
		r.Render(snap)
		return r.Err()
	}

	if !ui.IsTerminal(os.Stdout) {
		return runPlain(ctx, sched, monitor.NewPlainRenderer(out, report))
	}
	return runDashboard(ctx, sched, c, opts)
}

// runPlain prints a report per cycle until ctx is cancelled.
func runPlain(ctx context.Context, sched *scheduler.Scheduler, r *monitor.PlainRenderer) error {
	sched.OnSnapshot = r.Render
	if err := sched.Run(ctx); err != nil {
		return err
	}
	return r.Err()
}

// runDashboard runs the scheduler in the background and feeds the TUI.
func runDashboard(ctx context.Context, sched *scheduler.Scheduler, c *config.Cluster, opts MonitorOptions) error {
	if os.Getenv(logger.DebugEnv) != "" {
		f, err := tea.LogToFile(filepath.Join(os.TempDir(), "gpumon-debug.log"), "gpumon")
		if err == nil {
			defer f.Close()
		}
	}

	model := monitor.NewModel(c.Title(), len(collector.UniqueHosts(c.Hosts)), c.Thresholds, c.Interval, opts.ShowAll)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	final, err := driveDashboard(ctx, sched, p)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Dashboard failed", "Try --once for plain output")
	}
	if m, ok := final.(monitor.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

// dashboardProgram is the part of *tea.Program driveDashboard uses.
type dashboardProgram interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
	Quit()
}

// driveDashboard runs sched alongside p until p exits, then stops the
// scheduler and waits for its in-flight cycle before returning.
func driveDashboard(ctx context.Context, sched *scheduler.Scheduler, p dashboardProgram) (tea.Model, error) {
	schedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched.OnSnapshot = func(snap gpu.ClusterSnapshot) {
		p.Send(monitor.SnapshotMsg{Snapshot: snap})
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := sched.Run(schedCtx); err != nil {
			p.Send(monitor.FatalMsg{Err: err})
		}
		return nil
	})
	go func() {
		<-schedCtx.Done()
		if ctx.Err() != nil {
			p.Quit()
		}
	}()

	final, err := p.Run()
	cancel()
	_ = g.Wait()
	return final, err
}
