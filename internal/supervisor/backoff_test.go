package supervisor

import (
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: DefaultBackoffConfig
// =============================================================================

func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()

	if cfg.Initial != 250*time.Millisecond {
		t.Errorf("Initial = %v, want 250ms", cfg.Initial)
	}
	if cfg.Max != 5*time.Second {
		t.Errorf("Max = %v, want 5s", cfg.Max)
	}
	if cfg.Multiplier != 1.7 {
		t.Errorf("Multiplier = %v, want 1.7", cfg.Multiplier)
	}
	if cfg.JitterPct != 0.4 {
		t.Errorf("JitterPct = %v, want 0.4", cfg.JitterPct)
	}
}

func TestNewBackoff(t *testing.T) {
	b := NewBackoff(42, 99999, DefaultBackoffConfig())

	if b == nil {
		t.Fatal("NewBackoff returned nil")
	}
	if b.Attempts() != 0 {
		t.Errorf("initial Attempts() = %d, want 0", b.Attempts())
	}
	if b.rng == nil {
		t.Error("rng is nil")
	}
}

// =============================================================================
// Table-Driven Tests: Backoff.Next (no jitter)
// =============================================================================

func TestBackoff_Next_Growth(t *testing.T) {
	tests := []struct {
		name    string
		initial time.Duration
		max     time.Duration
		mult    float64
		want    []time.Duration
	}{
		{
			name:    "doubling",
			initial: 100 * time.Millisecond,
			max:     10 * time.Second,
			mult:    2.0,
			want: []time.Duration{
				100 * time.Millisecond,
				200 * time.Millisecond,
				400 * time.Millisecond,
				800 * time.Millisecond,
			},
		},
		{
			name:    "capped at max",
			initial: 100 * time.Millisecond,
			max:     time.Second,
			mult:    2.0,
			want: []time.Duration{
				100 * time.Millisecond,
				200 * time.Millisecond,
				400 * time.Millisecond,
				800 * time.Millisecond,
				time.Second,
				time.Second,
			},
		},
		{
			name:    "multiplier 1.5",
			initial: 100 * time.Millisecond,
			max:     10 * time.Second,
			mult:    1.5,
			want: []time.Duration{
				100 * time.Millisecond,
				150 * time.Millisecond,
				225 * time.Millisecond,
			},
		},
		{
			name:    "multiplier 1.0 (no growth)",
			initial: 100 * time.Millisecond,
			max:     10 * time.Second,
			mult:    1.0,
			want: []time.Duration{
				100 * time.Millisecond,
				100 * time.Millisecond,
				100 * time.Millisecond,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BackoffConfig{
				Initial:    tt.initial,
				Max:        tt.max,
				Multiplier: tt.mult,
				JitterPct:  0, // No jitter for deterministic tests
			}
			b := NewBackoff(0, 0, cfg)

			for i, want := range tt.want {
				got := b.Next()
				if got != want {
					t.Errorf("Next() #%d = %v, want %v", i+1, got, want)
				}
				if b.Attempts() != i+1 {
					t.Errorf("Attempts() after #%d = %d, want %d", i+1, b.Attempts(), i+1)
				}
			}
		})
	}
}

func TestBackoff_Reset(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		JitterPct:  0,
	}
	b := NewBackoff(0, 0, cfg)

	// Make some attempts
	b.Next()
	b.Next()
	b.Next()

	if b.Attempts() != 3 {
		t.Errorf("Attempts() before reset = %d, want 3", b.Attempts())
	}

	b.Reset()

	if b.Attempts() != 0 {
		t.Errorf("Attempts() after reset = %d, want 0", b.Attempts())
	}

	// Next should be back to initial
	if d := b.Next(); d != 100*time.Millisecond {
		t.Errorf("Next() after reset = %v, want 100ms", d)
	}
}

// =============================================================================
// Tests: Jitter Behavior
// =============================================================================

func TestBackoff_Jitter(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    1 * time.Second,
		Max:        10 * time.Second,
		Multiplier: 1.0, // No growth, just jitter
		JitterPct:  0.4, // ±20%
	}

	// Different unit IDs should draw different jitter
	b1 := NewBackoff(1, 12345, cfg)
	b2 := NewBackoff(2, 12345, cfg)

	var samples1, samples2 []time.Duration
	for i := 0; i < 10; i++ {
		samples1 = append(samples1, b1.Next())
		samples2 = append(samples2, b2.Next())
	}

	allSame := true
	for i := range samples1 {
		if samples1[i] != samples2[i] {
			allSame = false
			break
		}
	}
	if allSame {
		t.Error("different unit IDs should produce different jitter")
	}

	// All samples should be within ±20% of the 1s base
	for i, d := range samples1 {
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Errorf("sample1[%d] = %v, want between 800ms and 1200ms", i, d)
		}
	}
}

func TestBackoff_DeterministicJitter(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    1 * time.Second,
		Max:        10 * time.Second,
		Multiplier: 1.0,
		JitterPct:  0.4,
	}

	// Same unit ID and seed should produce the same sequence
	b1 := NewBackoff(42, 12345, cfg)
	b2 := NewBackoff(42, 12345, cfg)

	for i := 0; i < 10; i++ {
		d1 := b1.Next()
		d2 := b2.Next()
		if d1 != d2 {
			t.Errorf("iteration %d: d1=%v != d2=%v (should be deterministic)", i, d1, d2)
		}
	}
}

// =============================================================================
// Edge Cases
// =============================================================================

func TestBackoff_ZeroInitial(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    0,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		JitterPct:  0,
	}
	b := NewBackoff(0, 0, cfg)

	if d := b.Next(); d != 0 {
		t.Errorf("Next() with zero initial = %v, want 0", d)
	}
}

func TestBackoff_StaysCappedAfterManyAttempts(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2.0,
		JitterPct:  0,
	}
	b := NewBackoff(0, 0, cfg)

	var d time.Duration
	for i := 0; i < 50; i++ {
		d = b.Next()
		if d > 5*time.Second {
			t.Fatalf("Next() #%d = %v, want <= 5s", i+1, d)
		}
	}
	if d != 5*time.Second {
		t.Errorf("Next() after 50 attempts = %v, want 5s (capped)", d)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkBackoff_Next(b *testing.B) {
	cfg := DefaultBackoffConfig()
	backoff := NewBackoff(0, 12345, cfg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backoff.Next()
		if backoff.Attempts() > 100 {
			backoff.Reset()
		}
	}
}
