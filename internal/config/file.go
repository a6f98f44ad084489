package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for the YAML file form. Fields are pointers
// so absent keys leave the existing value untouched, and durations are
// strings so the file can use "30s" style values.
type fileConfig struct {
	SourceDir *string `yaml:"source_dir"`
	WorkDir   *string `yaml:"work_dir"`

	Parallel   *int    `yaml:"parallel"`
	RampRate   *int    `yaml:"ramp_rate"`
	RampJitter *string `yaml:"ramp_jitter"`
	Duration   *string `yaml:"duration"`

	WorkloadArgs []string `yaml:"workload_args"`
	Tick         *string  `yaml:"tick"`

	TarPath  *string `yaml:"tar_path"`
	MakePath *string `yaml:"make_path"`

	MetricsAddr    *string `yaml:"metrics_addr"`
	MetricsDump    *bool   `yaml:"metrics_dump"`
	PerUnitMetrics *bool   `yaml:"prom_unit_metrics"`
	Verbose        *bool   `yaml:"verbose"`
	Quiet          *bool   `yaml:"quiet"`
	LogFormat      *string `yaml:"log_format"`
	LogLevel       *string `yaml:"log_level"`

	TUIEnabled *bool `yaml:"tui"`

	MaxLaunchRetries *int     `yaml:"max_launch_retries"`
	BackoffInitial   *string  `yaml:"backoff_initial"`
	BackoffMax       *string  `yaml:"backoff_max"`
	BackoffMultiply  *float64 `yaml:"backoff_multiply"`
}

// LoadFile overlays values from a YAML file onto cfg. Keys absent from
// the file keep their current values, so defaults survive a partial file.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.SourceDir, fc.SourceDir)
	setString(&cfg.WorkDir, fc.WorkDir)

	setInt(&cfg.Parallel, fc.Parallel)
	setInt(&cfg.RampRate, fc.RampRate)
	if err := setDuration(&cfg.RampJitter, fc.RampJitter, "ramp_jitter"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Duration, fc.Duration, "duration"); err != nil {
		return err
	}

	if len(fc.WorkloadArgs) > 0 {
		cfg.WorkloadArgs = fc.WorkloadArgs
	}
	if err := setDuration(&cfg.Tick, fc.Tick, "tick"); err != nil {
		return err
	}

	setString(&cfg.TarPath, fc.TarPath)
	setString(&cfg.MakePath, fc.MakePath)

	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setBool(&cfg.MetricsDump, fc.MetricsDump)
	setBool(&cfg.PerUnitMetrics, fc.PerUnitMetrics)
	setBool(&cfg.Verbose, fc.Verbose)
	setBool(&cfg.Quiet, fc.Quiet)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.LogLevel, fc.LogLevel)

	setBool(&cfg.TUIEnabled, fc.TUIEnabled)

	setInt(&cfg.MaxLaunchRetries, fc.MaxLaunchRetries)
	if err := setDuration(&cfg.BackoffInitial, fc.BackoffInitial, "backoff_initial"); err != nil {
		return err
	}
	if err := setDuration(&cfg.BackoffMax, fc.BackoffMax, "backoff_max"); err != nil {
		return err
	}
	if fc.BackoffMultiply != nil {
		cfg.BackoffMultiply = *fc.BackoffMultiply
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("config file field %s: %w", field, err)
	}
	*dst = d
	return nil
}
