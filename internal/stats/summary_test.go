package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
)

func TestFormatExitSummary_NilStats(t *testing.T) {
	out := FormatExitSummary(nil, SummaryConfig{
		TargetUnits: 4,
		Duration:    90 * time.Second,
		MetricsAddr: "0.0.0.0:17092",
	})

	if !strings.Contains(out, "go-hackbench-load Exit Summary") {
		t.Error("missing summary header")
	}
	if !strings.Contains(out, "00:01:30") {
		t.Error("missing formatted duration")
	}
	if !strings.Contains(out, "Target Units:           4") {
		t.Error("missing target units")
	}
	if !strings.Contains(out, "http://0.0.0.0:17092/metrics") {
		t.Error("missing metrics endpoint")
	}
}

func TestFormatExitSummary_Full(t *testing.T) {
	stats := &AggregatedStats{
		Timestamp:           time.Now(),
		TotalUnits:          2,
		RunningUnits:        2,
		TotalSpawns:         120,
		TotalRespawns:       118,
		TotalLaunchFailures: 3,
		CleanExits:          115,
		ErrorExits:          2,
		SignalExits:         1,
		TotalExits:          118,
		SpawnRate:           2.0,
		RespawnRate:         1.97,
		RunCount:            118,
		RunP50:              480 * time.Millisecond,
		RunP90:              650 * time.Millisecond,
		RunP99:              900 * time.Millisecond,
		MinRun:              410 * time.Millisecond,
		MaxRun:              950 * time.Millisecond,
		MinUptime:           58 * time.Second,
		MaxUptime:           60 * time.Second,
		AvgUptime:           59 * time.Second,
	}

	out := FormatExitSummary(stats, SummaryConfig{
		TargetUnits: 2,
		Duration:    time.Minute,
		Workload:    "/tmp/work/hackbench/hackbench 20",
		MetricsAddr: "127.0.0.1:17092",
		ExitCodes:   map[int]int{0: 115, 1: 2, 143: 1},
	})

	wantFragments := []string{
		"Workload Lifecycle",
		"Spawns",
		"Respawns",
		"Launch Failures",
		"Exits",
		"Clean (0):",
		"143 (SIGTERM)",
		"Run Duration Distribution",
		"P50 (median):",
		"480 ms",
		"Unit Uptime Distribution",
		"/tmp/work/hackbench/hackbench 20",
		"http://127.0.0.1:17092/metrics",
	}
	for _, want := range wantFragments {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestFormatExitSummary_OmitsEmptySections(t *testing.T) {
	stats := &AggregatedStats{
		Timestamp:   time.Now(),
		TotalUnits:  1,
		TotalSpawns: 1,
	}

	out := FormatExitSummary(stats, SummaryConfig{
		TargetUnits: 1,
		Duration:    time.Second,
	})

	if strings.Contains(out, "Run Duration Distribution") {
		t.Error("run duration section should be omitted with no completed runs")
	}
	if strings.Contains(out, "Unit Uptime Distribution") {
		t.Error("uptime section should be omitted for a single unit")
	}
	if strings.Contains(out, "Launch Failures") {
		t.Error("launch failures row should be omitted at zero")
	}
	if strings.Contains(out, "metrics") {
		t.Error("metrics endpoint should be omitted when unset")
	}
}

func TestFormatExitSummary_PerUnit(t *testing.T) {
	stats := &AggregatedStats{
		Timestamp:   time.Now(),
		TotalUnits:  2,
		TotalSpawns: 10,
		PerUnitSummaries: []UnitSummary{
			{UnitID: 2, State: supervisor.StateStopped, Spawns: 4, Respawns: 3, LastExitCode: 143, AvgRuntime: 300 * time.Millisecond},
			{UnitID: 1, State: supervisor.StateStopped, Spawns: 6, Respawns: 5, LastExitCode: 0, AvgRuntime: 450 * time.Millisecond},
		},
	}

	out := FormatExitSummary(stats, SummaryConfig{
		TargetUnits:      2,
		Duration:         time.Minute,
		ShowPerUnitStats: true,
	})

	if !strings.Contains(out, "Per Unit") {
		t.Fatal("missing per-unit section")
	}

	// Sorted by unit ID: unit 1 before unit 2
	idx1 := strings.Index(out, "  1      stopped")
	idx2 := strings.Index(out, "  2      stopped")
	if idx1 == -1 || idx2 == -1 {
		t.Fatalf("per-unit rows missing:\n%s", out)
	}
	if idx1 > idx2 {
		t.Error("per-unit rows should be sorted by unit ID")
	}
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(clean)"},
		{1, "(error)"},
		{137, "(SIGKILL)"},
		{139, "(SIGSEGV)"},
		{143, "(SIGTERM)"},
		{42, ""},
	}

	for _, tt := range tests {
		if got := exitCodeLabel(tt.code); got != tt.want {
			t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

// =============================================================================
// Formatting Helpers
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{5 * time.Second, "00:00:05"},
		{90 * time.Second, "00:01:30"},
		{time.Hour + 23*time.Minute + 45*time.Second, "01:23:45"},
		{25 * time.Hour, "25:00:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{2_000_000, "2.0M"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 ms"},
		{500 * time.Microsecond, "500 µs"},
		{42 * time.Millisecond, "42 ms"},
		{1500 * time.Millisecond, "1500 ms"},
		{15 * time.Second, "15.0 s"},
	}

	for _, tt := range tests {
		if got := FormatMs(tt.d); got != tt.want {
			t.Errorf("FormatMs(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0.25, "0.25/s"},
		{2.5, "2.5/s"},
		{1500, "1.5K/s"},
	}

	for _, tt := range tests {
		if got := FormatRate(tt.rate); got != tt.want {
			t.Errorf("FormatRate(%f) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
