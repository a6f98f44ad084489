// Package stats provides per-unit and aggregated statistics for a
// load generation run.
//
// This file implements Aggregator, which merges metrics across all
// workload units:
// - Spawn, respawn, and launch failure totals and rates
// - Exit totals by class
// - Workload run duration percentiles (T-Digest merged)
// - Unit uptime distribution
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-hackbench-load/internal/process"
	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
	"github.com/randomizedcoder/go-hackbench-load/internal/timeseries"
)

// AggregatedStats holds metrics across all units.
//
// This is a snapshot - values are computed at the time of Aggregate()
// call.
type AggregatedStats struct {
	// Timestamp when this snapshot was taken
	Timestamp time.Time

	// Unit counts
	TotalUnits   int
	RunningUnits int
	BackoffUnits int
	StoppedUnits int

	// Lifecycle totals
	TotalSpawns         int64
	TotalRespawns       int64
	TotalLaunchFailures int64

	// Exit totals
	CleanExits  int64
	ErrorExits  int64
	SignalExits int64
	TotalExits  int64

	// Rates (per second) since the run started
	SpawnRate   float64
	RespawnRate float64

	// Instantaneous respawn rate since the previous snapshot
	InstantRespawnRate float64

	// Workload run duration distribution
	RunCount int64
	RunP50   time.Duration
	RunP90   time.Duration
	RunP99   time.Duration
	MinRun   time.Duration
	MaxRun   time.Duration

	// Unit uptime distribution
	MinUptime time.Duration
	MaxUptime time.Duration
	AvgUptime time.Duration

	// Per-unit summaries (optional, for detailed TUI view)
	PerUnitSummaries []UnitSummary
}

// RunDigest accumulates workload run durations into a T-Digest for
// constant-memory percentiles.
//
// Thread-safe.
type RunDigest struct {
	mu     sync.Mutex
	digest *tdigest.TDigest
	count  int64
	min    time.Duration
	max    time.Duration
}

// NewRunDigest creates an empty digest.
func NewRunDigest() *RunDigest {
	return &RunDigest{
		digest: tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
	}
}

// Add records one completed workload run.
func (d *RunDigest) Add(runtime time.Duration) {
	if runtime < 0 {
		runtime = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.digest.Add(float64(runtime.Nanoseconds()), 1)
	d.count++
	if d.count == 1 || runtime < d.min {
		d.min = runtime
	}
	if runtime > d.max {
		d.max = runtime
	}
}

// Quantile returns the q-th percentile of recorded runs, or 0 before
// any run completed.
func (d *RunDigest) Quantile(q float64) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return 0
	}
	return time.Duration(d.digest.Quantile(q))
}

// Count returns how many runs have been recorded.
func (d *RunDigest) Count() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Bounds returns the shortest and longest recorded run.
func (d *RunDigest) Bounds() (min, max time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.min, d.max
}

// rateSnapshot holds values for calculating instantaneous rates.
type rateSnapshot struct {
	timestamp time.Time
	respawns  int64
}

// Aggregator merges stats from multiple units.
//
// Thread-safe: all methods can be called concurrently.
type Aggregator struct {
	mu        sync.RWMutex
	units     map[int]*UnitStats
	startTime time.Time

	runDigest *RunDigest

	// Windowed respawn rates (1s/30s/60s/300s)
	respawnRate *timeseries.RateTracker

	// For instantaneous rate calculations
	prevSnapshot atomic.Value // *rateSnapshot
}

// NewAggregator creates a new aggregator.
func NewAggregator() *Aggregator {
	agg := &Aggregator{
		units:       make(map[int]*UnitStats),
		startTime:   time.Now(),
		runDigest:   NewRunDigest(),
		respawnRate: timeseries.NewRateTracker(),
	}
	agg.prevSnapshot.Store(&rateSnapshot{timestamp: time.Now()})
	return agg
}

// AddUnit registers a unit for aggregation.
func (a *Aggregator) AddUnit(stats *UnitStats) {
	a.mu.Lock()
	a.units[stats.UnitID] = stats
	a.mu.Unlock()
}

// RemoveUnit unregisters a unit.
func (a *Aggregator) RemoveUnit(unitID int) {
	a.mu.Lock()
	delete(a.units, unitID)
	a.mu.Unlock()
}

// Unit returns the UnitStats for a specific unit, or nil.
func (a *Aggregator) Unit(unitID int) *UnitStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.units[unitID]
}

// UnitCount returns the number of registered units.
func (a *Aggregator) UnitCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.units)
}

// Callbacks returns supervisor callbacks that feed this aggregator.
// Units must be registered with AddUnit before their supervisor runs.
func (a *Aggregator) Callbacks() supervisor.Callbacks {
	return supervisor.Callbacks{
		OnStateChange: func(unitID int, oldState, newState supervisor.State) {
			if u := a.Unit(unitID); u != nil {
				u.SetState(newState)
			}
		},
		OnSpawn: func(unitID, pid int) {
			if u := a.Unit(unitID); u != nil {
				if u.RecordSpawn(pid) {
					a.respawnRate.AddEvent()
				}
			}
		},
		OnExit: func(unitID int, result process.Result) {
			if u := a.Unit(unitID); u != nil {
				u.RecordExit(result.ExitCode, result.Runtime())
			}
			a.runDigest.Add(result.Runtime())
		},
		OnLaunchRetry: func(unitID, attempt int, delay time.Duration) {
			if u := a.Unit(unitID); u != nil {
				u.RecordLaunchFailure()
			}
		},
	}
}

// RunDurations exposes the merged run duration digest.
func (a *Aggregator) RunDurations() *RunDigest {
	return a.runDigest
}

// SampleRates records a respawn-rate sample. Call this on a steady
// ticker (e.g., every 1 second) so windowed rates stay current.
func (a *Aggregator) SampleRates() {
	a.respawnRate.RecordSample()
}

// RespawnRates returns windowed respawn rates (events per second).
func (a *Aggregator) RespawnRates() timeseries.RateStats {
	return a.respawnRate.GetStats()
}

// Aggregate computes aggregated statistics across all units.
//
// This creates a snapshot of current metrics. The returned struct is
// safe to use after the call returns.
func (a *Aggregator) Aggregate() *AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now()
	elapsed := now.Sub(a.startTime).Seconds()

	prev := a.prevSnapshot.Load().(*rateSnapshot)

	result := &AggregatedStats{
		Timestamp:  now,
		TotalUnits: len(a.units),
	}

	var totalUptime time.Duration

	for _, u := range a.units {
		switch u.State() {
		case supervisor.StateRunning:
			result.RunningUnits++
		case supervisor.StateBackoff:
			result.BackoffUnits++
		case supervisor.StateStopped:
			result.StoppedUnits++
		}

		result.TotalSpawns += u.Spawns.Load()
		result.TotalRespawns += u.Respawns.Load()
		result.TotalLaunchFailures += u.LaunchFailures.Load()

		result.CleanExits += u.CleanExits.Load()
		result.ErrorExits += u.ErrorExits.Load()
		result.SignalExits += u.SignalExits.Load()

		uptime := u.Uptime()
		totalUptime += uptime
		if result.MinUptime == 0 || uptime < result.MinUptime {
			result.MinUptime = uptime
		}
		if uptime > result.MaxUptime {
			result.MaxUptime = uptime
		}
	}

	result.TotalExits = result.CleanExits + result.ErrorExits + result.SignalExits

	if elapsed > 0 {
		result.SpawnRate = float64(result.TotalSpawns) / elapsed
		result.RespawnRate = float64(result.TotalRespawns) / elapsed
	}

	// Instantaneous rate from the previous snapshot
	if snapElapsed := now.Sub(prev.timestamp).Seconds(); snapElapsed > 0 {
		result.InstantRespawnRate = float64(result.TotalRespawns-prev.respawns) / snapElapsed
	}

	if result.TotalUnits > 0 {
		result.AvgUptime = totalUptime / time.Duration(result.TotalUnits)
	}

	// Run duration distribution
	result.RunCount = a.runDigest.Count()
	result.RunP50 = a.runDigest.Quantile(0.50)
	result.RunP90 = a.runDigest.Quantile(0.90)
	result.RunP99 = a.runDigest.Quantile(0.99)
	result.MinRun, result.MaxRun = a.runDigest.Bounds()

	// Update previous snapshot for next rate calculation
	a.prevSnapshot.Store(&rateSnapshot{
		timestamp: now,
		respawns:  result.TotalRespawns,
	})

	return result
}

// GetAllUnitSummaries returns summaries for all units, keyed order
// unspecified.
func (a *Aggregator) GetAllUnitSummaries() []UnitSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summaries := make([]UnitSummary, 0, len(a.units))
	for _, u := range a.units {
		summaries = append(summaries, u.GetSummary())
	}
	return summaries
}

// StartTime returns when the aggregator was created.
func (a *Aggregator) StartTime() time.Time {
	return a.startTime
}

// Elapsed returns the duration since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Since(a.startTime)
}

// Reset clears all units and resets the start time.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.units = make(map[int]*UnitStats)
	a.startTime = time.Now()
	a.runDigest = NewRunDigest()
	a.respawnRate.Reset()
	a.prevSnapshot.Store(&rateSnapshot{timestamp: time.Now()})
}
