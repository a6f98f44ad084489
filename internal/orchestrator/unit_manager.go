package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/randomizedcoder/go-hackbench-load/internal/load"
	"github.com/randomizedcoder/go-hackbench-load/internal/stats"
	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
)

// UnitManager coordinates the load unit goroutines. Each unit runs the
// workload's RunLoad loop until the run context is cancelled; the
// manager tracks unit states, registers per-unit stats, and collects
// the errors of units whose launch retries were exhausted.
type UnitManager struct {
	load       load.Load
	logger     *slog.Logger
	aggregator *stats.Aggregator

	// WaitGroup for all unit goroutines
	wg sync.WaitGroup

	// Last observed supervisor state per unit
	states   map[int]supervisor.State
	statesMu sync.RWMutex

	// RunLoad errors per unit
	runErrs map[int]error
	errsMu  sync.Mutex

	// Counters
	activeCount  atomic.Int64
	startedCount atomic.Int64
}

// ManagerConfig holds configuration for the UnitManager.
type ManagerConfig struct {
	Load       load.Load
	Logger     *slog.Logger
	Aggregator *stats.Aggregator
}

// NewUnitManager creates a new UnitManager.
func NewUnitManager(cfg ManagerConfig) *UnitManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	aggregator := cfg.Aggregator
	if aggregator == nil {
		aggregator = stats.NewAggregator()
	}

	return &UnitManager{
		load:       cfg.Load,
		logger:     logger,
		aggregator: aggregator,
		states:     make(map[int]supervisor.State),
		runErrs:    make(map[int]error),
	}
}

// StartUnit registers stats for a new unit and starts its run loop in
// a goroutine. The unit keeps respawning its workload until the
// context is cancelled.
func (m *UnitManager) StartUnit(ctx context.Context, unitID int) {
	// Register before launch so no lifecycle event is dropped
	m.aggregator.AddUnit(stats.NewUnitStats(unitID))

	m.statesMu.Lock()
	m.states[unitID] = supervisor.StateCreated
	m.statesMu.Unlock()

	m.startedCount.Add(1)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.load.RunLoad(ctx, unitID); err != nil {
			m.errsMu.Lock()
			m.runErrs[unitID] = err
			m.errsMu.Unlock()

			m.logger.Error("unit_failed",
				"unit", unitID,
				"error", err,
			)
			return
		}
		m.logger.Debug("unit_finished", "unit", unitID)
	}()
}

// recordStateChange tracks per-unit state and the active count. The
// orchestrator forwards every supervisor state change here.
func (m *UnitManager) recordStateChange(unitID int, oldState, newState supervisor.State) {
	m.statesMu.Lock()
	m.states[unitID] = newState
	m.statesMu.Unlock()

	wasActive := oldState == supervisor.StateRunning
	isActive := newState == supervisor.StateRunning

	if !wasActive && isActive {
		m.activeCount.Add(1)
	} else if wasActive && !isActive {
		m.activeCount.Add(-1)
	}
}

// Shutdown waits for all unit goroutines to stop. The run context
// passed to StartUnit must already be cancelled; ctx here only bounds
// the wait.
func (m *UnitManager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutdown_initiated", "active_units", m.ActiveCount())

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("all_units_stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown_timeout")
		return ctx.Err()
	}
}

// ActiveCount returns the number of units with a running workload.
func (m *UnitManager) ActiveCount() int {
	return int(m.activeCount.Load())
}

// StartedCount returns the total number of units that have been started.
func (m *UnitManager) StartedCount() int {
	return int(m.startedCount.Load())
}

// UnitCount returns the number of registered units.
func (m *UnitManager) UnitCount() int {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()
	return len(m.states)
}

// State returns the last observed state for a unit.
func (m *UnitManager) State(unitID int) (supervisor.State, bool) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()
	s, ok := m.states[unitID]
	return s, ok
}

// States returns a map of unit IDs to their last observed states.
func (m *UnitManager) States() map[int]supervisor.State {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	states := make(map[int]supervisor.State, len(m.states))
	for id, s := range m.states {
		states[id] = s
	}
	return states
}

// RunErrors returns the RunLoad error of every failed unit.
func (m *UnitManager) RunErrors() map[int]error {
	m.errsMu.Lock()
	defer m.errsMu.Unlock()

	errs := make(map[int]error, len(m.runErrs))
	for id, err := range m.runErrs {
		errs[id] = err
	}
	return errs
}

// FirstRunError returns the failed unit with the lowest ID, or nil if
// every unit stopped cleanly.
func (m *UnitManager) FirstRunError() error {
	m.errsMu.Lock()
	defer m.errsMu.Unlock()

	if len(m.runErrs) == 0 {
		return nil
	}

	ids := make([]int, 0, len(m.runErrs))
	for id := range m.runErrs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return m.runErrs[ids[0]]
}
