package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Load placement
	if cfg.SourceDir == "" {
		errs = append(errs, ValidationError{
			Field:   "source_dir",
			Message: "source directory is required",
		})
	}
	if cfg.WorkDir == "" {
		errs = append(errs, ValidationError{
			Field:   "work_dir",
			Message: "work directory is required",
		})
	}

	// Parallel units must be positive
	if cfg.Parallel < 1 {
		errs = append(errs, ValidationError{
			Field:   "parallel",
			Message: "must be at least 1",
		})
	}

	// Ramp rate must be positive
	if cfg.RampRate < 1 {
		errs = append(errs, ValidationError{
			Field:   "ramp_rate",
			Message: "must be at least 1",
		})
	}
	if cfg.RampJitter < 0 {
		errs = append(errs, ValidationError{
			Field:   "ramp_jitter",
			Message: "must not be negative",
		})
	}
	if cfg.Duration < 0 {
		errs = append(errs, ValidationError{
			Field:   "duration",
			Message: "must not be negative (0 = forever)",
		})
	}

	// Liveness poll interval must be positive
	if cfg.Tick <= 0 {
		errs = append(errs, ValidationError{
			Field:   "tick",
			Message: "must be positive",
		})
	}

	// Workload arguments: first one is the hackbench group count
	if len(cfg.WorkloadArgs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "workload_args",
			Message: "at least one argument is required",
		})
	} else {
		if n, err := strconv.Atoi(cfg.WorkloadArgs[0]); err != nil || n < 1 {
			errs = append(errs, ValidationError{
				Field:   "workload_args",
				Message: fmt.Sprintf("group count must be a positive integer (got %q)", cfg.WorkloadArgs[0]),
			})
		}
		for _, arg := range cfg.WorkloadArgs {
			if arg == "" {
				errs = append(errs, ValidationError{
					Field:   "workload_args",
					Message: "arguments must not be empty",
				})
				break
			}
		}
	}

	// Build tools
	if cfg.TarPath == "" {
		errs = append(errs, ValidationError{
			Field:   "tar_path",
			Message: "must not be empty",
		})
	}
	if cfg.MakePath == "" {
		errs = append(errs, ValidationError{
			Field:   "make_path",
			Message: "must not be empty",
		})
	}

	// Metrics listen address (empty disables the server)
	if cfg.MetricsAddr != "" {
		if err := validateListenAddr(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true, "tint": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json', 'text' or 'tint' (got %q)", cfg.LogFormat),
		})
	}

	// Log level must be valid (empty falls back to info)
	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.LogLevel] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be 'debug', 'info', 'warn' or 'error' (got %q)", cfg.LogLevel),
		})
	}

	if cfg.Verbose && cfg.Quiet {
		errs = append(errs, ValidationError{
			Field:   "quiet",
			Message: "cannot combine -quiet with -v",
		})
	}

	// Launch retry policy
	if cfg.MaxLaunchRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "max_launch_retries",
			Message: "must be at least 1",
		})
	}
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateListenAddr checks host:port listen address syntax.
func validateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// ApplyCheckMode modifies config for --check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.Parallel = 1
	cfg.Duration = 10 * time.Second
	cfg.Verbose = true
	cfg.Quiet = false
}
