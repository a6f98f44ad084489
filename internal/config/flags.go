package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// argList is a custom flag type for repeatable -workload-arg flags.
type argList []string

func (a *argList) String() string {
	return strings.Join(*a, " ")
}

func (a *argList) Set(value string) error {
	*a = append(*a, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if the config file cannot be loaded.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	// Load the config file first (if any) so file values become flag
	// defaults and flags given on the command line still win.
	if path := configFileArg(os.Args[1:]); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	var workloadArgs argList

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-hackbench-load - CPU and scheduler load generation with hackbench process supervision

Usage:
  go-hackbench-load [flags] [SOURCE_DIR]

Load Placement:
`)
		// Print flags by category
		printFlagCategory([]string{"source-dir", "work-dir"})

		fmt.Fprintf(os.Stderr, "\nOrchestration:\n")
		printFlagCategory([]string{"parallel", "ramp-rate", "ramp-jitter", "duration"})

		fmt.Fprintf(os.Stderr, "\nWorkload:\n")
		printFlagCategory([]string{"workload-arg", "tick", "tar", "make"})

		fmt.Fprintf(os.Stderr, "\nSafety & Diagnostics:\n")
		printFlagCategory([]string{"config", "check", "skip-preflight"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "metrics-dump", "prom-unit-metrics", "v", "quiet", "log-format", "log-level"})

		fmt.Fprintf(os.Stderr, "\nDashboard:\n")
		printFlagCategory([]string{"tui"})

		fmt.Fprintf(os.Stderr, `
Flag Convention:
  Single-dash flags (-parallel, -duration) are normal options.
  Double-dash flags (--check, --skip-preflight) are diagnostic modes.

Examples:
  # Build from ./pkgs/hackbench.tar.gz and run one load unit until interrupted
  go-hackbench-load ./pkgs

  # Ten units for five minutes with the live dashboard
  go-hackbench-load -parallel 10 -duration 5m -tui ./pkgs

  # Validate the environment without generating sustained load
  go-hackbench-load --check ./pkgs

`)
	}

	// Load placement
	flag.StringVar(&cfg.SourceDir, "source-dir", cfg.SourceDir, "Directory containing the hackbench source tarball")
	flag.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "Directory the workload is extracted and built in")

	// Orchestration
	flag.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "Number of concurrent load units")
	flag.IntVar(&cfg.RampRate, "ramp-rate", cfg.RampRate, "Load units to start per second")
	flag.DurationVar(&cfg.RampJitter, "ramp-jitter", cfg.RampJitter, "Random jitter per unit start")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (0 = forever)")

	// Workload
	flag.Var(&workloadArgs, "workload-arg", "Argument passed to the hackbench binary (can repeat)")
	flag.DurationVar(&cfg.Tick, "tick", cfg.Tick, "Liveness poll interval")
	flag.StringVar(&cfg.TarPath, "tar", cfg.TarPath, "Path to the tar binary")
	flag.StringVar(&cfg.MakePath, "make", cfg.MakePath, "Path to the make binary")

	// Safety & Diagnostics (double-dash convention)
	flag.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Path to YAML config file")
	flag.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and run 1 unit for 10 seconds")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	flag.BoolVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Print a metrics snapshot on exit")
	flag.BoolVar(&cfg.PerUnitMetrics, "prom-unit-metrics", cfg.PerUnitMetrics, "Export per-unit metric series (one series per unit)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Log errors only")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json", "text" or "tint"`)
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)

	// TUI (Terminal User Interface)
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Parse
	flag.Parse()

	// Repeated -workload-arg flags replace the default argument list
	if len(workloadArgs) > 0 {
		cfg.WorkloadArgs = workloadArgs
	}

	// Positional argument: source directory
	args := flag.Args()
	if len(args) >= 1 {
		cfg.SourceDir = args[0]
	}

	return cfg, nil
}

// configFileArg scans raw arguments for -config/--config ahead of flag
// parsing so file values can seed the flag defaults.
func configFileArg(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return ""
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
