package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/go-hackbench-load/internal/stats"
	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
	"github.com/randomizedcoder/go-hackbench-load/internal/timeseries"
)

// TestCallbacks_UnregisteredUnit verifies the callback handlers cope
// with events for units the aggregator has never seen. A supervisor
// state change can race unit registration during a fast shutdown.
func TestCallbacks_UnregisteredUnit(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(cfg, discardLogger(), "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// None of these may panic even though unit 99 was never added.
	o.onUnitStateChange(99, supervisor.StateCreated, supervisor.StateRunning)
	o.onWorkloadSpawn(99, 1234)
	o.onWorkloadExit(99, exitResult(99, 1234, 0, time.Now().Add(-time.Second)))
	o.onLaunchRetry(99, 1, 100*time.Millisecond)

	// The event feed still records them.
	if got := o.events.Len(); got != 3 {
		t.Errorf("events recorded = %d, want 3 (spawn, exit, retry)", got)
	}
}

// TestCallbacks_Concurrent hammers the callback handlers from multiple
// goroutines. Supervisors run on their own goroutines, so the fan-out
// must be safe under concurrent invocation.
func TestCallbacks_Concurrent(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(cfg, discardLogger(), "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const units = 8
	for i := 0; i < units; i++ {
		o.aggregator.AddUnit(stats.NewUnitStats(i))
	}

	var wg sync.WaitGroup
	for i := 0; i < units; i++ {
		wg.Add(1)
		go func(unit int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				o.onUnitStateChange(unit, supervisor.StateCreated, supervisor.StateRunning)
				o.onWorkloadSpawn(unit, 1000+unit)
				o.onWorkloadExit(unit, exitResult(unit, 1000+unit, 0, time.Now()))
				o.onUnitStateChange(unit, supervisor.StateRunning, supervisor.StateStopped)
			}
		}(i)
	}
	wg.Wait()

	agg := o.aggregator.Aggregate()
	if agg.TotalSpawns != units*50 {
		t.Errorf("total spawns = %d, want %d", agg.TotalSpawns, units*50)
	}
	if agg.TotalExits != units*50 {
		t.Errorf("total exits = %d, want %d", agg.TotalExits, units*50)
	}
}

// TestEventFeed_Overflow verifies the lifecycle feed stays bounded when
// a fast-cycling workload produces more events than the ring holds.
func TestEventFeed_Overflow(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(cfg, discardLogger(), "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	o.aggregator.AddUnit(stats.NewUnitStats(0))

	for i := 0; i < eventRingCap*3; i++ {
		o.onWorkloadSpawn(0, 1000+i)
	}

	if got := o.events.Len(); got != eventRingCap {
		t.Errorf("event feed length = %d, want capped at %d", got, eventRingCap)
	}
}

// TestRunStatsUpdate_Empty verifies the gauge mapping handles an
// all-zero snapshot, the state before any unit has started.
func TestRunStatsUpdate_Empty(t *testing.T) {
	update := runStatsUpdate(&stats.AggregatedStats{}, timeseries.RateStats{})

	if update.ActiveUnits != 0 || update.RunP50 != 0 || update.RespawnRate1s != 0 {
		t.Errorf("empty snapshot should map to zero update, got %+v", update)
	}
	if len(update.PerUnitStats) != 0 {
		t.Errorf("per-unit stats should be empty, got %d entries", len(update.PerUnitStats))
	}
}

// TestOnUnitStateChange_ActiveCount verifies the manager's active count
// follows Running transitions reported through the orchestrator.
func TestOnUnitStateChange_ActiveCount(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(cfg, discardLogger(), "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	o.onUnitStateChange(0, supervisor.StateCreated, supervisor.StateRunning)
	o.onUnitStateChange(1, supervisor.StateCreated, supervisor.StateRunning)
	if got := o.manager.ActiveCount(); got != 2 {
		t.Fatalf("active count = %d, want 2", got)
	}

	o.onUnitStateChange(0, supervisor.StateRunning, supervisor.StateBackoff)
	if got := o.manager.ActiveCount(); got != 1 {
		t.Fatalf("active count = %d, want 1 after backoff", got)
	}

	// Backoff back to Running counts again; Stopped drains it.
	o.onUnitStateChange(0, supervisor.StateBackoff, supervisor.StateRunning)
	o.onUnitStateChange(1, supervisor.StateRunning, supervisor.StateStopped)
	if got := o.manager.ActiveCount(); got != 1 {
		t.Fatalf("active count = %d, want 1 after stop", got)
	}
}
