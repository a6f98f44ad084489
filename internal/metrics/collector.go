// Package metrics provides Prometheus metrics for go-hackbench-load.
//
// Metrics are organized into two tiers:
//   - Tier 1 (always enabled): Aggregate metrics safe for any unit count
//   - Tier 2 (optional, --prom-unit-metrics): Per-unit metrics for debugging
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-hackbench-load/internal/process"
)

// =============================================================================
// Tier 1: Aggregate Metrics (Always Enabled)
// =============================================================================

// --- Panel 1: Run Overview ---
var (
	loadInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_info",
			Help: "Information about the load run (value always 1)",
		},
		[]string{"version", "workload", "archive"},
	)

	loadTargetUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_target_units",
			Help: "Target number of parallel workload units",
		},
	)

	loadRunDurationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_configured_duration_seconds",
			Help: "Configured run duration (0 = unlimited)",
		},
	)

	loadActiveUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_active_units",
			Help: "Units currently supervising a live workload",
		},
	)

	loadRampProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_ramp_progress",
			Help: "Unit ramp-up progress (0.0 to 1.0)",
		},
	)

	loadElapsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_elapsed_seconds",
			Help: "Seconds since the run started",
		},
	)

	loadRemainingSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_remaining_seconds",
			Help: "Seconds remaining until the run ends (-1 = unlimited)",
		},
	)
)

// --- Panel 2: Workload Lifecycle ---
var (
	loadSpawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hackbench_load_spawns_total",
			Help: "Total workload process spawns",
		},
	)

	loadRespawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hackbench_load_respawns_total",
			Help: "Total workload respawns (spawns after the first per unit)",
		},
	)

	loadLaunchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hackbench_load_launch_failures_total",
			Help: "Total failed workload launch attempts",
		},
	)

	loadExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackbench_load_exits_total",
			Help: "Workload exits by exit-code class",
		},
		[]string{"class"}, // "clean", "error", "signal"
	)

	loadWorkloadRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_workload_running",
			Help: "Whether the unit currently has a live workload (1 or 0)",
		},
		[]string{"unit"},
	)
)

// --- Panel 3: Run Duration Distribution ---
var (
	loadWorkloadRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "hackbench_load_workload_run_seconds",
			Help: "Workload run duration (spawn to reap) distribution",
			Buckets: []float64{
				0.1, 0.25, 0.5, 1.0, 2.5,
				5.0, 10.0, 20.0, 30.0,
				60.0, 120.0, 300.0,
			},
		},
	)

	// Pre-calculated percentiles (convenience for simple panels)
	loadRunP50Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_run_p50_seconds",
			Help: "Workload run duration 50th percentile (median)",
		},
	)

	loadRunP90Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_run_p90_seconds",
			Help: "Workload run duration 90th percentile",
		},
	)

	loadRunP99Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_run_p99_seconds",
			Help: "Workload run duration 99th percentile",
		},
	)

	loadRunMaxSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_run_max_seconds",
			Help: "Maximum workload run duration observed",
		},
	)
)

// --- Panel 4: Respawn Rate ---
var (
	loadRespawnsPerSec1s = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_respawns_per_second_1s",
			Help: "Respawn rate averaged over last 1 second",
		},
	)

	loadRespawnsPerSec30s = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_respawns_per_second_30s",
			Help: "Respawn rate averaged over last 30 seconds",
		},
	)

	loadRespawnsPerSec60s = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_respawns_per_second_60s",
			Help: "Respawn rate averaged over last 60 seconds",
		},
	)

	loadRespawnsPerSec300s = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_respawns_per_second_300s",
			Help: "Respawn rate averaged over last 5 minutes",
		},
	)
)

// --- Panel 5: Unit Health ---
var (
	loadUnitsInBackoff = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_units_in_backoff",
			Help: "Units waiting out a launch-failure backoff",
		},
	)

	loadUnitsStopped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackbench_load_units_stopped",
			Help: "Units that have stopped supervising",
		},
	)
)

// --- Panel 6: Phase Timestamps ---
var (
	loadPhaseTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_phase_timestamp_seconds",
			Help: "Unix timestamp when a lifecycle phase completed",
		},
		[]string{"phase"}, // "staged", "built", "running"
	)
)

// =============================================================================
// Tier 2: Per-Unit Metrics (Optional, --prom-unit-metrics)
// WARNING: One series per unit per metric - intended for small unit counts
// =============================================================================

var (
	loadUnitSpawns       *prometheus.GaugeVec
	loadUnitRespawns     *prometheus.GaugeVec
	loadUnitUptime       *prometheus.GaugeVec
	loadUnitLastExitCode *prometheus.GaugeVec
)

// initPerUnitMetrics initializes Tier 2 metrics.
// Only called when --prom-unit-metrics is enabled.
func initPerUnitMetrics(registry prometheus.Registerer) {
	loadUnitSpawns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_unit_spawns",
			Help: "Per-unit spawn count (requires --prom-unit-metrics)",
		},
		[]string{"unit"},
	)

	loadUnitRespawns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_unit_respawns",
			Help: "Per-unit respawn count (requires --prom-unit-metrics)",
		},
		[]string{"unit"},
	)

	loadUnitUptime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_unit_uptime_seconds",
			Help: "Per-unit current workload uptime (requires --prom-unit-metrics)",
		},
		[]string{"unit"},
	)

	loadUnitLastExitCode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hackbench_load_unit_last_exit_code",
			Help: "Per-unit last observed exit code (requires --prom-unit-metrics)",
		},
		[]string{"unit"},
	)

	registry.MustRegister(loadUnitSpawns, loadUnitRespawns, loadUnitUptime, loadUnitLastExitCode)
}

// =============================================================================
// Collector
// =============================================================================

// Collector manages all Prometheus metrics for the load run.
type Collector struct {
	// Configuration
	perUnitEnabled bool
	targetUnits    int
	runDuration    time.Duration
	workload       string
	archive        string

	// Timing
	startTime time.Time

	// For summary generation and respawn detection
	mu                  sync.Mutex
	peakActive          int
	totalSpawns         int64
	totalRespawns       int64
	totalLaunchFailures int64
	exitCodes           map[int]int
	unitSpawns          map[int]int64

	// Track registered unit IDs for cleanup
	registeredUnitIDs map[int]struct{}
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	TargetUnits    int
	RunDuration    time.Duration
	Workload       string
	Archive        string
	Version        string
	PerUnitMetrics bool
}

// NewCollector creates a new metrics collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		perUnitEnabled:    cfg.PerUnitMetrics,
		targetUnits:       cfg.TargetUnits,
		runDuration:       cfg.RunDuration,
		workload:          cfg.Workload,
		archive:           cfg.Archive,
		startTime:         time.Now(),
		exitCodes:         make(map[int]int),
		unitSpawns:        make(map[int]int64),
		registeredUnitIDs: make(map[int]struct{}),
	}

	// Register Tier 1 metrics (always)
	registry.MustRegister(
		// Panel 1: Run Overview
		loadInfo,
		loadTargetUnits,
		loadRunDurationSeconds,
		loadActiveUnits,
		loadRampProgress,
		loadElapsedSeconds,
		loadRemainingSeconds,

		// Panel 2: Workload Lifecycle
		loadSpawnsTotal,
		loadRespawnsTotal,
		loadLaunchFailuresTotal,
		loadExitsTotal,
		loadWorkloadRunning,

		// Panel 3: Run Duration Distribution
		loadWorkloadRunSeconds,
		loadRunP50Seconds,
		loadRunP90Seconds,
		loadRunP99Seconds,
		loadRunMaxSeconds,

		// Panel 4: Respawn Rate
		loadRespawnsPerSec1s,
		loadRespawnsPerSec30s,
		loadRespawnsPerSec60s,
		loadRespawnsPerSec300s,

		// Panel 5: Unit Health
		loadUnitsInBackoff,
		loadUnitsStopped,

		// Panel 6: Phase Timestamps
		loadPhaseTimestamp,
	)

	// Register Tier 2 metrics (optional)
	if cfg.PerUnitMetrics {
		initPerUnitMetrics(registry)
	}

	// Set initial values
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	loadInfo.WithLabelValues(version, cfg.Workload, cfg.Archive).Set(1)
	loadTargetUnits.Set(float64(cfg.TargetUnits))
	loadRunDurationSeconds.Set(cfg.RunDuration.Seconds())
	loadRemainingSeconds.Set(-1) // -1 = unlimited

	return c
}

// =============================================================================
// Update Methods
// =============================================================================

// RunStatsUpdate holds stats for updating gauges.
// This is a subset of stats.AggregatedStats to keep the packages decoupled.
type RunStatsUpdate struct {
	// Unit counts
	ActiveUnits  int
	BackoffUnits int
	StoppedUnits int

	// Respawn rates (events per second, windowed)
	RespawnRate1s   float64
	RespawnRate30s  float64
	RespawnRate60s  float64
	RespawnRate300s float64

	// Run duration percentiles
	RunP50 time.Duration
	RunP90 time.Duration
	RunP99 time.Duration
	RunMax time.Duration

	// Per-unit (only if enabled)
	PerUnitStats []PerUnitStatsUpdate
}

// PerUnitStatsUpdate holds per-unit stats for Tier 2 metrics.
type PerUnitStatsUpdate struct {
	UnitID       int
	Spawns       int64
	Respawns     int64
	Uptime       time.Duration
	LastExitCode int
}

// RecordStats updates all gauges from aggregated stats.
func (c *Collector) RecordStats(stats *RunStatsUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// --- Panel 1: Run Overview ---
	loadActiveUnits.Set(float64(stats.ActiveUnits))
	if stats.ActiveUnits > c.peakActive {
		c.peakActive = stats.ActiveUnits
	}

	rampProgress := float64(0)
	if c.targetUnits > 0 {
		rampProgress = float64(stats.ActiveUnits) / float64(c.targetUnits)
		if rampProgress > 1.0 {
			rampProgress = 1.0
		}
	}
	loadRampProgress.Set(rampProgress)

	elapsed := time.Since(c.startTime)
	loadElapsedSeconds.Set(elapsed.Seconds())

	if c.runDuration > 0 {
		remaining := c.runDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
		loadRemainingSeconds.Set(remaining.Seconds())
	}

	// --- Panel 3: Run Duration Distribution ---
	loadRunP50Seconds.Set(stats.RunP50.Seconds())
	loadRunP90Seconds.Set(stats.RunP90.Seconds())
	loadRunP99Seconds.Set(stats.RunP99.Seconds())
	loadRunMaxSeconds.Set(stats.RunMax.Seconds())

	// --- Panel 4: Respawn Rate ---
	loadRespawnsPerSec1s.Set(stats.RespawnRate1s)
	loadRespawnsPerSec30s.Set(stats.RespawnRate30s)
	loadRespawnsPerSec60s.Set(stats.RespawnRate60s)
	loadRespawnsPerSec300s.Set(stats.RespawnRate300s)

	// --- Panel 5: Unit Health ---
	loadUnitsInBackoff.Set(float64(stats.BackoffUnits))
	loadUnitsStopped.Set(float64(stats.StoppedUnits))

	// --- Tier 2: Per-unit metrics ---
	if c.perUnitEnabled && len(stats.PerUnitStats) > 0 {
		for _, us := range stats.PerUnitStats {
			unitID := strconv.Itoa(us.UnitID)
			loadUnitSpawns.WithLabelValues(unitID).Set(float64(us.Spawns))
			loadUnitRespawns.WithLabelValues(unitID).Set(float64(us.Respawns))
			loadUnitUptime.WithLabelValues(unitID).Set(us.Uptime.Seconds())
			loadUnitLastExitCode.WithLabelValues(unitID).Set(float64(us.LastExitCode))
			c.registeredUnitIDs[us.UnitID] = struct{}{}
		}
	}
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// WorkloadSpawned records a workload spawn. Spawns after the first for a
// unit also count as respawns.
func (c *Collector) WorkloadSpawned(unitID int) {
	loadSpawnsTotal.Inc()
	loadWorkloadRunning.WithLabelValues(strconv.Itoa(unitID)).Set(1)

	c.mu.Lock()
	c.totalSpawns++
	c.unitSpawns[unitID]++
	respawn := c.unitSpawns[unitID] > 1
	if respawn {
		c.totalRespawns++
	}
	c.mu.Unlock()

	if respawn {
		loadRespawnsTotal.Inc()
	}
}

// LaunchFailed records a failed workload launch attempt.
func (c *Collector) LaunchFailed(unitID int) {
	loadLaunchFailuresTotal.Inc()

	c.mu.Lock()
	c.totalLaunchFailures++
	c.mu.Unlock()
}

// RecordExit records a reaped workload exit.
func (c *Collector) RecordExit(unitID, exitCode int, runtime time.Duration) {
	loadExitsTotal.WithLabelValues(process.ExitClass(exitCode)).Inc()
	loadWorkloadRunSeconds.Observe(runtime.Seconds())
	loadWorkloadRunning.WithLabelValues(strconv.Itoa(unitID)).Set(0)

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

// RecordPhase marks a lifecycle phase as completed at the current time.
// Phases: "staged", "built", "running".
func (c *Collector) RecordPhase(phase string) {
	loadPhaseTimestamp.WithLabelValues(phase).SetToCurrentTime()
}

// SetActiveCount updates the active unit count directly.
func (c *Collector) SetActiveCount(count int) {
	loadActiveUnits.Set(float64(count))

	c.mu.Lock()
	if count > c.peakActive {
		c.peakActive = count
	}
	c.mu.Unlock()
}

// SetRampProgress updates the ramp-up progress directly.
func (c *Collector) SetRampProgress(progress float64) {
	loadRampProgress.Set(progress)
}

// =============================================================================
// Cleanup Methods
// =============================================================================

// RemoveUnit removes per-unit metrics for a unit.
// Only relevant when per-unit metrics are enabled.
func (c *Collector) RemoveUnit(unitID int) {
	if !c.perUnitEnabled {
		return
	}

	c.mu.Lock()
	delete(c.registeredUnitIDs, unitID)
	c.mu.Unlock()

	unitIDStr := strconv.Itoa(unitID)
	loadUnitSpawns.DeleteLabelValues(unitIDStr)
	loadUnitRespawns.DeleteLabelValues(unitIDStr)
	loadUnitUptime.DeleteLabelValues(unitIDStr)
	loadUnitLastExitCode.DeleteLabelValues(unitIDStr)
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration            time.Duration
	TargetUnits         int
	PeakActiveUnits     int
	TotalSpawns         int64
	TotalRespawns       int64
	TotalLaunchFailures int64
	ExitCodes           map[int]int
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:            time.Since(c.startTime),
		TargetUnits:         c.targetUnits,
		PeakActiveUnits:     c.peakActive,
		TotalSpawns:         c.totalSpawns,
		TotalRespawns:       c.totalRespawns,
		TotalLaunchFailures: c.totalLaunchFailures,
		ExitCodes:           make(map[int]int),
	}

	// Copy exit codes
	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	return s
}

// PeakActive returns the peak active unit count.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// TotalSpawns returns the total number of workload spawns.
func (c *Collector) TotalSpawns() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSpawns
}

// TotalRespawns returns the total number of respawns.
func (c *Collector) TotalRespawns() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRespawns
}

// ExitCodes returns a copy of the exit code counts.
func (c *Collector) ExitCodes() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	codes := make(map[int]int, len(c.exitCodes))
	for code, count := range c.exitCodes {
		codes[code] = count
	}
	return codes
}

// PerUnitEnabled returns whether per-unit metrics are enabled.
func (c *Collector) PerUnitEnabled() bool {
	return c.perUnitEnabled
}
