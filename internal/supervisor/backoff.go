package supervisor

import (
	"math/rand"
	"time"
)

// BackoffConfig holds the configuration for exponential backoff.
type BackoffConfig struct {
	Initial    time.Duration // Initial backoff delay (default: 250ms)
	Max        time.Duration // Maximum backoff delay (default: 5s)
	Multiplier float64       // Multiplier for each attempt (default: 1.7)
	JitterPct  float64       // Jitter as a percentage of delay (default: 0.4 = ±20%)
}

// DefaultBackoffConfig returns sensible defaults for backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4, // ±20% jitter
	}
}

// Backoff produces the delay sequence between failed launch attempts of
// a single load unit. Jitter is seeded per unit so units that fail
// together do not retry in lockstep.
type Backoff struct {
	config BackoffConfig
	delay  time.Duration // base delay for the next attempt, 0 before first use
	tries  int
	rng    *rand.Rand
}

// NewBackoff creates a Backoff for one unit. The unitID and configSeed
// combine into the jitter seed, so the same unit draws the same delays
// on every run with the same seed.
func NewBackoff(unitID int, configSeed int64, cfg BackoffConfig) *Backoff {
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(int64(unitID) ^ configSeed)),
	}
}

// Next returns the delay before the next launch attempt and advances
// the sequence. Delays grow by Multiplier per call, capped at Max.
func (b *Backoff) Next() time.Duration {
	if b.tries == 0 {
		b.delay = b.config.Initial
	}
	base := b.delay
	b.tries++

	grown := time.Duration(float64(b.delay) * b.config.Multiplier)
	if grown > b.config.Max || grown < b.delay {
		grown = b.config.Max
	}
	b.delay = grown

	return b.jittered(base)
}

// jittered spreads a delay symmetrically by JitterPct. A 0.4 jitter
// yields delays in [0.8d, 1.2d).
func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.config.JitterPct <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * b.config.JitterPct
	out := float64(d) + spread*(b.rng.Float64()-0.5)
	if out < 0 {
		return 0
	}
	return time.Duration(out)
}

// Reset restarts the sequence at the initial delay.
func (b *Backoff) Reset() {
	b.tries = 0
	b.delay = 0
}

// Attempts returns how many delays have been handed out since the last
// reset.
func (b *Backoff) Attempts() int {
	return b.tries
}

// BackoffResetThreshold is the minimum runtime before backoff is reset.
// A workload that survived this long was genuinely running, not
// crash-looping.
const BackoffResetThreshold = 30 * time.Second

// ShouldReset reports whether the last completed run earns the unit a
// fresh backoff sequence. A clean exit is the normal end of a hackbench
// iteration, and a long run means the binary and its arguments are
// sound, so in both cases the next failure starts from the initial
// delay again.
func ShouldReset(runtime time.Duration, exitCode int) bool {
	return runtime >= BackoffResetThreshold || exitCode == 0
}
