// Package stats provides per-unit and aggregated statistics for a
// load generation run.
//
// This file implements the exit summary formatter which displays run
// statistics at program exit.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// TargetUnits is the number of parallel units that were requested
	TargetUnits int

	// Duration is the total run duration
	Duration time.Duration

	// Workload is the rendered workload command line
	Workload string

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// ShowPerUnitStats enables the detailed per-unit table
	ShowPerUnitStats bool

	// ExitCodes maps workload exit codes to counts (from
	// metrics.Collector)
	ExitCodes map[int]int
}

// FormatExitSummary formats aggregated stats for display at program
// exit.
//
// The summary includes:
// - Run information
// - Workload lifecycle counts with rates
// - Exit statistics by class and code
// - Run duration percentiles
// - Unit uptime distribution
func FormatExitSummary(stats *AggregatedStats, cfg SummaryConfig) string {
	if stats == nil {
		return formatBasicSummary(cfg)
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("                        go-hackbench-load Exit Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	// Run info
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Target Units:           %d\n", cfg.TargetUnits)
	fmt.Fprintf(&b, "Peak Active Units:      %d\n", stats.TotalUnits)
	if cfg.Workload != "" {
		fmt.Fprintf(&b, "Workload:               %s\n", cfg.Workload)
	}
	b.WriteString("\n")

	// Workload lifecycle
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
	b.WriteString("                             Workload Lifecycle\n")
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

	fmt.Fprintf(&b, "  %-20s %12s %12s\n", "Event", "Total", "Rate (/sec)")
	b.WriteString("  " + strings.Repeat("─", 46) + "\n")
	fmt.Fprintf(&b, "  %-20s %12s %12.2f\n",
		"Spawns",
		FormatNumber(stats.TotalSpawns),
		stats.SpawnRate,
	)
	fmt.Fprintf(&b, "  %-20s %12s %12.2f\n",
		"Respawns",
		FormatNumber(stats.TotalRespawns),
		stats.RespawnRate,
	)
	if stats.TotalLaunchFailures > 0 {
		fmt.Fprintf(&b, "  %-20s %12s %12s\n",
			"Launch Failures",
			FormatNumber(stats.TotalLaunchFailures),
			"-",
		)
	}
	b.WriteString("\n")

	// Exits
	if stats.TotalExits > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                   Exits\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  Clean (0):            %s\n", FormatNumber(stats.CleanExits))
		fmt.Fprintf(&b, "  Error (1-128):        %s\n", FormatNumber(stats.ErrorExits))
		fmt.Fprintf(&b, "  Signal (>128):        %s\n", FormatNumber(stats.SignalExits))
		b.WriteString("\n")

		if len(cfg.ExitCodes) > 0 {
			// Sort exit codes for consistent output
			codes := make([]int, 0, len(cfg.ExitCodes))
			for code := range cfg.ExitCodes {
				codes = append(codes, code)
			}
			sort.Ints(codes)

			for _, code := range codes {
				count := cfg.ExitCodes[code]
				label := exitCodeLabel(code)
				fmt.Fprintf(&b, "  %3d %-16s %d\n", code, label, count)
			}
			b.WriteString("\n")
		}
	}

	// Run duration distribution
	if stats.RunCount > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                          Run Duration Distribution\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  Completed Runs:       %s\n", FormatNumber(stats.RunCount))
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(stats.RunP50))
		fmt.Fprintf(&b, "  P90:                  %s\n", FormatMs(stats.RunP90))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(stats.RunP99))
		fmt.Fprintf(&b, "  Min / Max:            %s / %s\n", FormatMs(stats.MinRun), FormatMs(stats.MaxRun))
		b.WriteString("\n")
	}

	// Uptime distribution
	if stats.TotalUnits > 1 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                            Unit Uptime Distribution\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  Min:                  %s\n", FormatDuration(stats.MinUptime))
		fmt.Fprintf(&b, "  Avg:                  %s\n", FormatDuration(stats.AvgUptime))
		fmt.Fprintf(&b, "  Max:                  %s\n", FormatDuration(stats.MaxUptime))
		b.WriteString("\n")
	}

	// Per-unit table
	if cfg.ShowPerUnitStats && len(stats.PerUnitSummaries) > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                 Per Unit\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		summaries := make([]UnitSummary, len(stats.PerUnitSummaries))
		copy(summaries, stats.PerUnitSummaries)
		sort.Slice(summaries, func(i, j int) bool {
			return summaries[i].UnitID < summaries[j].UnitID
		})

		fmt.Fprintf(&b, "  %-6s %-9s %8s %9s %10s %10s\n",
			"Unit", "State", "Spawns", "Respawns", "Last Exit", "Avg Run")
		b.WriteString("  " + strings.Repeat("─", 58) + "\n")
		for _, u := range summaries {
			fmt.Fprintf(&b, "  %-6d %-9s %8d %9d %10d %10s\n",
				u.UnitID,
				u.State.String(),
				u.Spawns,
				u.Respawns,
				u.LastExitCode,
				FormatMs(u.AvgRuntime),
			)
		}
		b.WriteString("\n")
	}

	// Metrics endpoint
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// formatBasicSummary formats a basic summary when stats are not
// available.
func formatBasicSummary(cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("                        go-hackbench-load Exit Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Target Units:           %d\n\n", cfg.TargetUnits)

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 139:
		return "(SIGSEGV)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	if ms >= 10_000 {
		return fmt.Sprintf("%.1f s", d.Seconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatRate formats a rate with appropriate precision.
func FormatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}
