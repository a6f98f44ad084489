package supervisor

import (
	"math/rand"
	"time"
)

// JitterSource derives deterministic start-up offsets for load units.
// Each unit gets its own seed, so a unit keeps its relative position in
// the ramp across runs with the same config seed.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a jitter source with the given config seed.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{
		configSeed: configSeed,
	}
}

// NewJitterSourceFromTime creates a jitter source seeded from the
// current time, for runs where no seed was configured.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// UnitJitter returns the start-up offset for a unit in [0, maxJitter).
// The offset is stable: the same unit and config seed always yield the
// same duration.
func (j *JitterSource) UnitJitter(unitID int, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(int64(unitID) ^ j.configSeed))
	return time.Duration(rng.Int63n(int64(maxJitter)))
}
