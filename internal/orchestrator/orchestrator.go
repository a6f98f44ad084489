package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-hackbench-load/internal/config"
	"github.com/randomizedcoder/go-hackbench-load/internal/hackbench"
	"github.com/randomizedcoder/go-hackbench-load/internal/load"
	"github.com/randomizedcoder/go-hackbench-load/internal/logging"
	"github.com/randomizedcoder/go-hackbench-load/internal/metrics"
	"github.com/randomizedcoder/go-hackbench-load/internal/preflight"
	"github.com/randomizedcoder/go-hackbench-load/internal/process"
	"github.com/randomizedcoder/go-hackbench-load/internal/stats"
	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
	"github.com/randomizedcoder/go-hackbench-load/internal/timeseries"
	"github.com/randomizedcoder/go-hackbench-load/internal/tui"
)

// ErrPreflight is returned by Run when preflight checks fail.
var ErrPreflight = errors.New("preflight checks failed")

// ErrUnitsFailed is returned by Run when one or more load units stopped
// with an error, typically an exhausted launch-retry budget.
var ErrUnitsFailed = errors.New("load units failed")

const (
	// eventRingCap bounds the lifecycle event feed kept for the TUI.
	eventRingCap = 64

	// shutdownTimeout bounds the graceful drain of unit goroutines.
	shutdownTimeout = 10 * time.Second
)

// Orchestrator coordinates all components of a load run: staging and
// building the workload, ramping up units, feeding stats to the
// metrics surfaces, and draining everything on shutdown.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	archive string

	workload load.Load
	manager  *UnitManager
	ramp     *RampScheduler

	aggregator   *stats.Aggregator
	aggCallbacks supervisor.Callbacks
	events       *logging.EventRing

	registry  *prometheus.Registry
	collector *metrics.Collector
	server    *metrics.Server // nil when the metrics listener is disabled

	startTime time.Time
}

// New creates an Orchestrator from the given configuration. It locates
// the workload source tarball immediately, so a missing tarball is
// reported before any work starts.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Orchestrator, error) {
	archive, err := hackbench.Discover(cfg.SourceDir)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	aggregator := stats.NewAggregator()

	o := &Orchestrator{
		config:       cfg,
		logger:       logger,
		archive:      archive,
		ramp:         NewRampScheduler(cfg.RampRate, cfg.RampJitter),
		aggregator:   aggregator,
		aggCallbacks: aggregator.Callbacks(),
		events:       logging.NewEventRing(eventRingCap),
		registry:     registry,
		collector: metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
			TargetUnits:    cfg.Parallel,
			RunDuration:    cfg.Duration,
			Workload:       cfg.WorkloadString(),
			Archive:        archive,
			Version:        version,
			PerUnitMetrics: cfg.PerUnitMetrics,
		}, registry),
	}

	o.workload = hackbench.New(hackbench.Config{
		Archive:          archive,
		WorkDir:          cfg.WorkDir,
		WorkloadArgs:     cfg.WorkloadArgs,
		Runner:           process.NewExecRunner(cfg.TarPath, cfg.MakePath),
		Logger:           logger,
		Tick:             cfg.Tick,
		MaxLaunchRetries: cfg.MaxLaunchRetries,
		Backoff: supervisor.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiply,
			JitterPct:  0.4,
		},
		BackoffSeed: time.Now().UnixNano(),
		Callbacks: supervisor.Callbacks{
			OnStateChange: o.onUnitStateChange,
			OnSpawn:       o.onWorkloadSpawn,
			OnExit:        o.onWorkloadExit,
			OnLaunchRetry: o.onLaunchRetry,
		},
	})

	o.manager = NewUnitManager(ManagerConfig{
		Load:       o.workload,
		Logger:     logger,
		Aggregator: aggregator,
	})

	if cfg.MetricsAddr != "" {
		o.server = metrics.NewServer(cfg.MetricsAddr, registry, logger)
	}

	return o, nil
}

// Run executes the load run. It blocks until the configured duration
// elapses, a signal arrives, or the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.config.Parallel, o.config.Groups(),
			o.config.TarPath, o.config.MakePath, o.config.SourceDir, o.config.WorkDir)
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("%w (use --skip-preflight to override)", ErrPreflight)
		}
	}

	// Advisory probe: staging proceeds regardless of the outcome
	if info, err := process.ProbeArchive(o.archive); err != nil {
		o.logger.Debug("archive_probe_failed", "archive", o.archive, "error", err)
	} else {
		o.logger.Info("archive_probed", "archive", info.String())
		if info.Escapes {
			o.logger.Warn("archive_escapes_extraction_dir", "archive", o.archive)
		}
	}

	// The listener comes up before staging so the phase gauge is
	// scrapeable for the whole run.
	if o.server != nil {
		if err := o.server.Start(); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
	}

	if err := o.workload.Setup(ctx); err != nil {
		return err
	}
	o.collector.RecordPhase("staged")

	if err := o.workload.Build(ctx); err != nil {
		return err
	}
	o.collector.RecordPhase("built")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var program *tea.Program
	var tuiDone chan struct{}
	if o.config.TUIEnabled {
		model := tui.New(tui.Config{
			TargetUnits: o.config.Parallel,
			Workload:    o.config.WorkloadString(),
			MetricsAddr: o.config.MetricsAddr,
			RunDuration: o.config.Duration,
			StatsSource: o.aggregator,
			Events:      o.events,
		})
		program = tea.NewProgram(model, tea.WithAltScreen())
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				o.logger.Error("tui_failed", "error", err)
			}
			// Quitting the dashboard stops the run
			cancel()
		}()
	}

	o.collector.RecordPhase("running")
	if o.server != nil {
		o.server.SetReady(true)
	}

	o.logger.Info("ramp_starting",
		"units", o.config.Parallel,
		"rate", o.ramp.Rate(),
		"estimated_duration", o.ramp.EstimatedRampDuration(o.config.Parallel).String(),
	)

	rampDone := make(chan struct{})
	go func() {
		defer close(rampDone)
		o.rampUp(ctx)
	}()

	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		o.pollStats(ctx, program)
	}()

	var durationTimer <-chan time.Time
	if o.config.Duration > 0 {
		durationTimer = time.After(o.config.Duration)
	}

	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
		o.events.Append(logging.Event{
			Time:   time.Now(),
			Unit:   -1,
			Kind:   logging.EventStopRequested,
			Detail: sig.String(),
		})
	case <-durationTimer:
		o.logger.Info("duration_elapsed", "duration", o.config.Duration.String())
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	}

	cancel()

	// A second signal skips the graceful drain
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "forced exit on second signal (%s)\n", sig)
		os.Exit(1)
	}()

	// The ramp goroutine must stop adding units before the manager
	// waits on them
	<-rampDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := o.manager.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}
	<-statsDone

	if program != nil {
		tui.SendQuit(program)
		<-tuiDone
	}

	if o.server != nil {
		o.server.SetReady(false)
		if err := o.server.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	o.printExitSummary()

	if o.config.MetricsDump {
		if snap, err := metrics.Snapshot(o.registry); err != nil {
			o.logger.Warn("metrics_dump_failed", "error", err)
		} else {
			fmt.Print(snap)
		}
	}

	if err := o.manager.FirstRunError(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnitsFailed, err)
	}

	return nil
}

// rampUp starts units at the configured rate.
func (o *Orchestrator) rampUp(ctx context.Context) {
	target := o.config.Parallel

	for i := 0; i < target; i++ {
		select {
		case <-ctx.Done():
			o.logger.Info("ramp_cancelled", "started", i, "target", target)
			return
		default:
		}

		// The first unit starts immediately
		if i > 0 {
			if err := o.ramp.Schedule(ctx, i); err != nil {
				o.logger.Info("ramp_cancelled", "started", i, "target", target)
				return
			}
		}

		o.manager.StartUnit(ctx, i)
		o.collector.SetRampProgress(float64(i+1) / float64(target))

		if (i+1)%10 == 0 || i == target-1 {
			o.logger.Info("ramp_progress",
				"started", i+1,
				"target", target,
				"active", o.manager.ActiveCount(),
			)
		}
	}

	o.logger.Info("ramp_complete",
		"units", target,
		"active", o.manager.ActiveCount(),
	)
}

// pollStats samples the aggregator once per second and pushes the
// snapshot to the metrics collector and the TUI.
func (o *Orchestrator) pollStats(ctx context.Context, program *tea.Program) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.aggregator.SampleRates()

			agg := o.aggregator.Aggregate()
			rates := o.aggregator.RespawnRates()
			if program != nil || o.collector.PerUnitEnabled() {
				agg.PerUnitSummaries = o.aggregator.GetAllUnitSummaries()
			}

			o.collector.RecordStats(runStatsUpdate(agg, rates))

			if program != nil {
				tui.SendStats(program, agg, rates)
			}
		}
	}
}

// runStatsUpdate maps an aggregator snapshot onto the collector's
// gauge update.
func runStatsUpdate(agg *stats.AggregatedStats, rates timeseries.RateStats) *metrics.RunStatsUpdate {
	update := &metrics.RunStatsUpdate{
		ActiveUnits:     agg.RunningUnits,
		BackoffUnits:    agg.BackoffUnits,
		StoppedUnits:    agg.StoppedUnits,
		RespawnRate1s:   rates.Avg1s,
		RespawnRate30s:  rates.Avg30s,
		RespawnRate60s:  rates.Avg60s,
		RespawnRate300s: rates.Avg300s,
		RunP50:          agg.RunP50,
		RunP90:          agg.RunP90,
		RunP99:          agg.RunP99,
		RunMax:          agg.MaxRun,
	}

	for _, s := range agg.PerUnitSummaries {
		update.PerUnitStats = append(update.PerUnitStats, metrics.PerUnitStatsUpdate{
			UnitID:       s.UnitID,
			Spawns:       s.Spawns,
			Respawns:     s.Respawns,
			Uptime:       s.WorkloadUptime,
			LastExitCode: s.LastExitCode,
		})
	}

	return update
}

// Callback handlers. Supervisor events fan out from here to the unit
// manager, the stats aggregator, the metrics collector, and the event
// feed. The manager updates first so ActiveCount reflects the
// transition being reported.

func (o *Orchestrator) onUnitStateChange(unitID int, oldState, newState supervisor.State) {
	o.manager.recordStateChange(unitID, oldState, newState)
	if cb := o.aggCallbacks.OnStateChange; cb != nil {
		cb(unitID, oldState, newState)
	}
	o.collector.SetActiveCount(o.manager.ActiveCount())
}

func (o *Orchestrator) onWorkloadSpawn(unitID, pid int) {
	if cb := o.aggCallbacks.OnSpawn; cb != nil {
		cb(unitID, pid)
	}
	o.collector.WorkloadSpawned(unitID)

	kind := logging.EventSpawn
	if u := o.aggregator.Unit(unitID); u != nil && u.Respawns.Load() > 0 {
		kind = logging.EventRespawn
	}
	o.events.Append(logging.Event{Time: time.Now(), Unit: unitID, Kind: kind})

	if o.config.Verbose {
		o.logger.Debug("workload_spawned", "unit", unitID, "pid", pid)
	}
}

func (o *Orchestrator) onWorkloadExit(unitID int, result process.Result) {
	if cb := o.aggCallbacks.OnExit; cb != nil {
		cb(unitID, result)
	}

	runtime := result.Runtime()
	o.collector.RecordExit(unitID, result.ExitCode, runtime)
	o.events.Append(logging.Event{
		Time:   time.Now(),
		Unit:   unitID,
		Kind:   logging.EventExit,
		Detail: fmt.Sprintf("code=%d runtime=%s", result.ExitCode, runtime.Round(time.Millisecond)),
	})
}

func (o *Orchestrator) onLaunchRetry(unitID, attempt int, delay time.Duration) {
	if cb := o.aggCallbacks.OnLaunchRetry; cb != nil {
		cb(unitID, attempt, delay)
	}
	o.collector.LaunchFailed(unitID)
	o.events.Append(logging.Event{
		Time:   time.Now(),
		Unit:   unitID,
		Kind:   logging.EventLaunchRetry,
		Detail: fmt.Sprintf("attempt=%d delay=%s", attempt, delay.Round(time.Millisecond)),
	})

	if o.config.Verbose {
		o.logger.Debug("launch_retry_scheduled",
			"unit", unitID,
			"attempt", attempt,
			"delay", delay.String(),
		)
	}
}

// printExitSummary prints the end-of-run report.
func (o *Orchestrator) printExitSummary() {
	agg := o.aggregator.Aggregate()
	agg.PerUnitSummaries = o.aggregator.GetAllUnitSummaries()

	fmt.Print(stats.FormatExitSummary(agg, stats.SummaryConfig{
		TargetUnits:      o.config.Parallel,
		Duration:         time.Since(o.startTime),
		Workload:         o.config.WorkloadString(),
		MetricsAddr:      o.config.MetricsAddr,
		ShowPerUnitStats: o.config.Verbose,
		ExitCodes:        o.collector.ExitCodes(),
	}))
}

// Archive returns the path of the discovered source tarball.
func (o *Orchestrator) Archive() string {
	return o.archive
}

// Workload returns the staged load implementation.
func (o *Orchestrator) Workload() load.Load {
	return o.workload
}

// Manager returns the unit manager for external access.
func (o *Orchestrator) Manager() *UnitManager {
	return o.manager
}

// Collector returns the metrics collector for external access.
func (o *Orchestrator) Collector() *metrics.Collector {
	return o.collector
}

// Aggregator returns the stats aggregator for external access.
func (o *Orchestrator) Aggregator() *stats.Aggregator {
	return o.aggregator
}

// Events returns the lifecycle event feed.
func (o *Orchestrator) Events() *logging.EventRing {
	return o.events
}

// Registry returns the run's private metric registry.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}
