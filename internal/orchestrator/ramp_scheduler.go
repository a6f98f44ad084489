// Package orchestrator wires the load units, ramp schedule, stats, and
// observability surfaces into a single run.
package orchestrator

import (
	"context"
	"time"

	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
)

// RampScheduler controls the rate at which load units are started.
// Spacing the starts avoids a thundering herd against the scheduler
// under test, and per-unit jitter prevents the units from
// synchronizing their respawn cycles.
type RampScheduler struct {
	rate      int                      // units per second
	maxJitter time.Duration            // maximum jitter per unit
	jitter    *supervisor.JitterSource // deterministic jitter source
}

// NewRampScheduler creates a new scheduler with the given rate and jitter.
func NewRampScheduler(rate int, maxJitter time.Duration) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    supervisor.NewJitterSourceFromTime(),
	}
}

// NewRampSchedulerWithSeed creates a scheduler with a specific seed for
// reproducible start timing.
func NewRampSchedulerWithSeed(rate int, maxJitter time.Duration, seed int64) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    supervisor.NewJitterSource(seed),
	}
}

// Schedule waits the appropriate amount of time before starting unit N.
// Returns nil on success, or the context error if cancelled.
func (r *RampScheduler) Schedule(ctx context.Context, unitID int) error {
	// rate=5 means one unit per 200ms
	var baseDelay time.Duration
	if r.rate > 0 {
		baseDelay = time.Second / time.Duration(r.rate)
	}

	// Jitter is capped at half the base delay so the configured rate
	// still holds. With no base delay the full jitter window applies.
	maxJitter := r.maxJitter
	if baseDelay > 0 && maxJitter > baseDelay/2 {
		maxJitter = baseDelay / 2
	}

	totalDelay := baseDelay + r.jitter.UnitJitter(unitID, maxJitter)
	if totalDelay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(totalDelay):
		return nil
	}
}

// EstimatedRampDuration returns the estimated time to start all units.
func (r *RampScheduler) EstimatedRampDuration(totalUnits int) time.Duration {
	if r.rate <= 0 {
		return 0
	}
	baseTime := time.Duration(totalUnits) * time.Second / time.Duration(r.rate)
	avgJitter := r.maxJitter / 2
	return baseTime + avgJitter
}

// Rate returns the configured rate (units per second).
func (r *RampScheduler) Rate() int {
	return r.rate
}

// MaxJitter returns the configured maximum jitter.
func (r *RampScheduler) MaxJitter() time.Duration {
	return r.maxJitter
}
