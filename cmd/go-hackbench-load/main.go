// Package main provides the go-hackbench-load CLI entry point.
//
// go-hackbench-load is a CPU/scheduler load generator: it stages and
// builds the hackbench benchmark from a source tarball, then keeps a
// swarm of hackbench processes continuously running until stopped.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/randomizedcoder/go-hackbench-load/internal/config"
	"github.com/randomizedcoder/go-hackbench-load/internal/hackbench"
	"github.com/randomizedcoder/go-hackbench-load/internal/logging"
	"github.com/randomizedcoder/go-hackbench-load/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-hackbench-load
var version = "dev"

// Exit codes. Fatal staging errors get distinct codes so test harnesses
// can tell a misconfigured run from a failed one.
const (
	exitOK              = 0
	exitConfig          = 1
	exitTarballNotFound = 2
	exitExtractTool     = 3
	exitStageMissing    = 4
	exitRunFailure      = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-hackbench-load %s\n", version)
			return exitOK
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return exitConfig
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		level := cfg.LogLevel
		if cfg.Quiet {
			level = "error"
		}
		logger = logging.NewLogger(cfg.LogFormat, level, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitConfig
	}

	// Apply --check mode modifications
	if cfg.Check {
		config.ApplyCheckMode(cfg)
		logger.Info("check_mode_enabled", "parallel", cfg.Parallel, "duration", cfg.Duration)
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"parallel", cfg.Parallel,
		"ramp_rate", cfg.RampRate,
		"source_dir", cfg.SourceDir,
		"work_dir", cfg.WorkDir,
		"workload", cfg.WorkloadString(),
		"metrics_addr", cfg.MetricsAddr,
	)

	// Discovery happens inside New, so a missing tarball is fatal before
	// any staging or building starts.
	orch, err := orchestrator.New(cfg, logger, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	if !cfg.TUIEnabled {
		printBanner(cfg, orch.Archive())
	}

	if err := orch.Run(context.Background()); err != nil {
		logger.Error("run_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	return exitOK
}

// exitCode maps sentinel errors onto the documented exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, hackbench.ErrTarballNotFound):
		return exitTarballNotFound
	case errors.Is(err, hackbench.ErrExtractTool):
		return exitExtractTool
	case errors.Is(err, hackbench.ErrStageMissing):
		return exitStageMissing
	case errors.Is(err, orchestrator.ErrUnitsFailed):
		return exitRunFailure
	default:
		return exitConfig
	}
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config, archive string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      go-hackbench-load                            ║")
	fmt.Println("║     CPU/Scheduler Load Generation with Process Supervision        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Units:       %d at %d/sec\n", cfg.Parallel, cfg.RampRate)
	fmt.Printf("  Workload:    %s\n", cfg.WorkloadString())
	fmt.Printf("  Tarball:     %s\n", archive)
	fmt.Printf("  Work dir:    %s\n", cfg.WorkDir)
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.Duration > 0 {
		fmt.Printf("  Duration:    %s\n", cfg.Duration)
	} else {
		fmt.Println("  Duration:    until interrupted")
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
