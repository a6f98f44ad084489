// Package config provides configuration management for go-hackbench-load.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration options for the load generator.
type Config struct {
	// Load placement
	SourceDir string `json:"source_dir"`
	WorkDir   string `json:"work_dir"`

	// Orchestration
	Parallel   int           `json:"parallel"`
	RampRate   int           `json:"ramp_rate"`
	RampJitter time.Duration `json:"ramp_jitter"`
	Duration   time.Duration `json:"duration"` // 0 = forever

	// Workload
	WorkloadArgs []string      `json:"workload_args"`
	Tick         time.Duration `json:"tick"`

	// Build tools
	TarPath  string `json:"tar_path"`
	MakePath string `json:"make_path"`

	// Observability
	MetricsAddr    string `json:"metrics_addr"`
	MetricsDump    bool   `json:"metrics_dump"`
	PerUnitMetrics bool   `json:"prom_unit_metrics"`
	Verbose        bool   `json:"verbose"`
	Quiet          bool   `json:"quiet"`
	LogFormat      string `json:"log_format"` // json, text, tint
	LogLevel       string `json:"log_level"`

	// Dashboard
	TUIEnabled bool `json:"tui"`

	// Diagnostic modes
	ConfigFile    string `json:"-"`
	Check         bool   `json:"check"`
	SkipPreflight bool   `json:"skip_preflight"`

	// Launch retry policy
	MaxLaunchRetries int           `json:"max_launch_retries"`
	BackoffInitial   time.Duration `json:"backoff_initial"`
	BackoffMax       time.Duration `json:"backoff_max"`
	BackoffMultiply  float64       `json:"backoff_multiply"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Load placement
		SourceDir: ".",
		WorkDir:   filepath.Join(os.TempDir(), "go-hackbench-load"),

		// Orchestration
		Parallel:   1,
		RampRate:   5,
		RampJitter: 200 * time.Millisecond,
		Duration:   0, // Forever

		// Workload
		WorkloadArgs: []string{"20"},
		Tick:         time.Second,

		// Build tools
		TarPath:  "tar",
		MakePath: "make",

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		Verbose:     false,
		LogFormat:   "json",
		LogLevel:    "info",

		// Launch retry policy
		MaxLaunchRetries: 5,
		BackoffInitial:   250 * time.Millisecond,
		BackoffMax:       5 * time.Second,
		BackoffMultiply:  1.7,
	}
}

// DefaultGroups is the hackbench group count assumed when the first
// workload argument is not a number.
const DefaultGroups = 20

// Groups returns the hackbench group count, parsed from the first
// workload argument. Each group is 40 tasks, so preflight sizes its
// process-limit math from this.
func (c *Config) Groups() int {
	if len(c.WorkloadArgs) == 0 {
		return DefaultGroups
	}
	n, err := strconv.Atoi(c.WorkloadArgs[0])
	if err != nil || n < 1 {
		return DefaultGroups
	}
	return n
}

// WorkloadString renders the workload command line for logs and labels.
func (c *Config) WorkloadString() string {
	return strings.TrimSpace("hackbench " + strings.Join(c.WorkloadArgs, " "))
}
