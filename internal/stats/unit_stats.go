// Package stats provides per-unit and aggregated statistics for a
// load generation run.
//
// This file implements UnitStats, which tracks one workload unit:
// - Spawn, respawn, and launch failure counts
// - Exits bucketed by class (clean, error, signal)
// - Workload run durations (min, max, total)
// - Current supervisor state and pid
package stats

import (
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-hackbench-load/internal/process"
	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
)

// UnitStats holds per-unit statistics.
//
// Thread-safe: all fields are atomics.
type UnitStats struct {
	UnitID    int
	StartTime time.Time

	// Lifecycle counters
	Spawns         atomic.Int64
	Respawns       atomic.Int64
	LaunchFailures atomic.Int64

	// Exit counters by class
	CleanExits  atomic.Int64
	ErrorExits  atomic.Int64
	SignalExits atomic.Int64

	// Live view of the unit
	state atomic.Int64
	pid   atomic.Int64

	lastSpawnAt  atomic.Value // time.Time
	lastExitCode atomic.Int64
	lastExitAt   atomic.Value // time.Time

	// Workload run durations, nanoseconds. minRuntime zero means unset.
	totalRuntime atomic.Int64
	minRuntime   atomic.Int64
	maxRuntime   atomic.Int64
}

// NewUnitStats creates stats for one unit.
func NewUnitStats(unitID int) *UnitStats {
	return &UnitStats{
		UnitID:    unitID,
		StartTime: time.Now(),
	}
}

// RecordSpawn records a workload launch. Every spawn after the first
// counts as a respawn; the return value reports whether this one did.
func (s *UnitStats) RecordSpawn(pid int) bool {
	s.pid.Store(int64(pid))
	s.lastSpawnAt.Store(time.Now())

	if s.Spawns.Add(1) > 1 {
		s.Respawns.Add(1)
		return true
	}
	return false
}

// RecordLaunchFailure records a failed launch attempt.
func (s *UnitStats) RecordLaunchFailure() {
	s.LaunchFailures.Add(1)
}

// RecordExit records a reaped workload exit.
func (s *UnitStats) RecordExit(exitCode int, runtime time.Duration) {
	switch process.ExitClass(exitCode) {
	case process.ExitClean:
		s.CleanExits.Add(1)
	case process.ExitSignal:
		s.SignalExits.Add(1)
	default:
		s.ErrorExits.Add(1)
	}

	s.lastExitCode.Store(int64(exitCode))
	s.lastExitAt.Store(time.Now())
	s.pid.Store(0)

	ns := int64(runtime)
	s.totalRuntime.Add(ns)

	// Max via CAS loop
	for {
		old := s.maxRuntime.Load()
		if ns <= old {
			break
		}
		if s.maxRuntime.CompareAndSwap(old, ns) {
			break
		}
	}

	// Min via CAS loop; zero means no runs recorded yet
	for {
		old := s.minRuntime.Load()
		if old != 0 && ns >= old {
			break
		}
		if s.minRuntime.CompareAndSwap(old, ns) {
			break
		}
	}
}

// SetState records the unit's supervisor state.
func (s *UnitStats) SetState(state supervisor.State) {
	s.state.Store(int64(state))
}

// State returns the unit's last recorded supervisor state.
func (s *UnitStats) State() supervisor.State {
	return supervisor.State(s.state.Load())
}

// Pid returns the live workload pid, or 0 when none is running.
func (s *UnitStats) Pid() int {
	return int(s.pid.Load())
}

// LastExitCode returns the most recent exit code, 0 before any exit.
func (s *UnitStats) LastExitCode() int {
	return int(s.lastExitCode.Load())
}

// LastExitAt returns when the most recent exit was reaped.
func (s *UnitStats) LastExitAt() time.Time {
	v := s.lastExitAt.Load()
	if v == nil {
		return time.Time{}
	}
	return v.(time.Time)
}

// TotalExits returns exits across all classes.
func (s *UnitStats) TotalExits() int64 {
	return s.CleanExits.Load() + s.ErrorExits.Load() + s.SignalExits.Load()
}

// WorkloadUptime returns how long the current workload process has
// been running, or 0 when none is.
func (s *UnitStats) WorkloadUptime() time.Duration {
	if s.pid.Load() == 0 {
		return 0
	}
	v := s.lastSpawnAt.Load()
	if v == nil {
		return 0
	}
	return time.Since(v.(time.Time))
}

// MinRuntime returns the shortest completed workload run.
func (s *UnitStats) MinRuntime() time.Duration {
	return time.Duration(s.minRuntime.Load())
}

// MaxRuntime returns the longest completed workload run.
func (s *UnitStats) MaxRuntime() time.Duration {
	return time.Duration(s.maxRuntime.Load())
}

// AvgRuntime returns the mean completed workload run duration.
func (s *UnitStats) AvgRuntime() time.Duration {
	exits := s.TotalExits()
	if exits == 0 {
		return 0
	}
	return time.Duration(s.totalRuntime.Load() / exits)
}

// Uptime returns how long this unit has existed.
func (s *UnitStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// UnitSummary is a point-in-time snapshot of one unit.
type UnitSummary struct {
	UnitID         int
	State          supervisor.State
	Pid            int
	Uptime         time.Duration
	WorkloadUptime time.Duration
	Spawns         int64
	Respawns       int64
	LaunchFailures int64
	CleanExits     int64
	ErrorExits     int64
	SignalExits    int64
	LastExitCode   int
	MinRuntime     time.Duration
	MaxRuntime     time.Duration
	AvgRuntime     time.Duration
}

// GetSummary returns a snapshot of all key metrics.
func (s *UnitStats) GetSummary() UnitSummary {
	return UnitSummary{
		UnitID:         s.UnitID,
		State:          s.State(),
		Pid:            s.Pid(),
		Uptime:         s.Uptime(),
		WorkloadUptime: s.WorkloadUptime(),
		Spawns:         s.Spawns.Load(),
		Respawns:       s.Respawns.Load(),
		LaunchFailures: s.LaunchFailures.Load(),
		CleanExits:     s.CleanExits.Load(),
		ErrorExits:     s.ErrorExits.Load(),
		SignalExits:    s.SignalExits.Load(),
		LastExitCode:   s.LastExitCode(),
		MinRuntime:     s.MinRuntime(),
		MaxRuntime:     s.MaxRuntime(),
		AvgRuntime:     s.AvgRuntime(),
	}
}
