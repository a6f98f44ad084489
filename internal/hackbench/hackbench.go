// Package hackbench stages, builds, and supervises the hackbench
// scheduler benchmark as a continuous CPU load source.
//
// The lifecycle mirrors how the benchmark is driven by hand: find the
// source tarball, unpack it into a scratch directory, run make, then
// keep `hackbench <groups>` running until told to stop. Each phase is
// deliberately forgiving: staging is idempotent, a failed build is not
// an error, and a missing binary at run time is a silent skip rather
// than a crash.
package hackbench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/randomizedcoder/go-hackbench-load/internal/load"
	"github.com/randomizedcoder/go-hackbench-load/internal/process"
	"github.com/randomizedcoder/go-hackbench-load/internal/supervisor"
)

const (
	// SourceGlob matches candidate source archives in the source
	// directory.
	SourceGlob = "hackbench*"

	// SourceSubdir is the directory the archive unpacks to under the
	// work directory.
	SourceSubdir = "hackbench"

	// BinaryName is the workload binary the build produces inside the
	// staged tree.
	BinaryName = "hackbench"

	// DefaultGroups is the default group count argument passed to the
	// workload. Each group is 20 sender and 20 receiver tasks.
	DefaultGroups = "20"
)

var (
	// ErrTarballNotFound means no hackbench source archive exists in
	// the source directory.
	ErrTarballNotFound = errors.New("hackbench: no source tarball found")

	// ErrExtractTool means the external tar tool could not be started.
	ErrExtractTool = errors.New("hackbench: extraction tool failed to start")

	// ErrStageMissing means extraction ran but the staged source
	// directory still does not exist.
	ErrStageMissing = errors.New("hackbench: staged directory missing after extraction")
)

// Config carries everything a Load needs to stage, build, and run the
// benchmark.
type Config struct {
	// Archive is the path to the hackbench source tarball, usually
	// found by Discover.
	Archive string

	// WorkDir is the scratch directory the archive unpacks into.
	WorkDir string

	// WorkloadArgs are passed to the hackbench binary. The first entry
	// is the group count. Defaults to [DefaultGroups].
	WorkloadArgs []string

	// Runner builds the external tar, make, and workload commands.
	// Defaults to tar and make from PATH.
	Runner process.Runner

	// Logger receives staging and build diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Tick is each unit's liveness poll interval.
	Tick time.Duration

	// MaxLaunchRetries bounds consecutive launch failures per unit.
	MaxLaunchRetries int

	// Backoff shapes launch retry delays. Zero value selects the
	// package default.
	Backoff supervisor.BackoffConfig

	// BackoffSeed makes retry jitter reproducible across units.
	BackoffSeed int64

	// Callbacks receive unit lifecycle events.
	Callbacks supervisor.Callbacks
}

// Load drives the hackbench benchmark through its setup, build, and
// run phases.
type Load struct {
	archive string
	workDir string
	args    []string
	runner  process.Runner
	logger  *slog.Logger

	tick             time.Duration
	maxLaunchRetries int
	backoffCfg       supervisor.BackoffConfig
	backoffSeed      int64
	callbacks        supervisor.Callbacks
}

var (
	_ load.Load                 = (*Load)(nil)
	_ supervisor.ProcessBuilder = (*Load)(nil)
)

// New creates a Load from cfg, filling unset fields with defaults.
func New(cfg Config) *Load {
	args := cfg.WorkloadArgs
	if len(args) == 0 {
		args = []string{DefaultGroups}
	}

	runner := cfg.Runner
	if runner == nil {
		runner = process.NewExecRunner("", "")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoffCfg := cfg.Backoff
	if backoffCfg == (supervisor.BackoffConfig{}) {
		backoffCfg = supervisor.DefaultBackoffConfig()
	}

	return &Load{
		archive:          cfg.Archive,
		workDir:          cfg.WorkDir,
		args:             args,
		runner:           runner,
		logger:           logger,
		tick:             cfg.Tick,
		maxLaunchRetries: cfg.MaxLaunchRetries,
		backoffCfg:       backoffCfg,
		backoffSeed:      cfg.BackoffSeed,
		callbacks:        cfg.Callbacks,
	}
}

// Name implements load.Load and supervisor.ProcessBuilder.
func (l *Load) Name() string {
	return "hackbench"
}

// Archive returns the source tarball path.
func (l *Load) Archive() string {
	return l.archive
}

// StagedDir returns the directory the sources unpack to.
func (l *Load) StagedDir() string {
	return filepath.Join(l.workDir, SourceSubdir)
}

// BinaryPath implements supervisor.ProcessBuilder. The binary exists
// only after a successful Build.
func (l *Load) BinaryPath() string {
	return filepath.Join(l.StagedDir(), BinaryName)
}

// Setup unpacks the source archive into the work directory. A staged
// tree left by an earlier run is reused without touching tar at all.
//
// tar's own exit status is not inspected. Success is judged solely by
// the staged directory existing afterwards, so a noisy-but-working
// extraction still counts.
func (l *Load) Setup(ctx context.Context) error {
	staged := l.StagedDir()

	if _, err := os.Stat(staged); err == nil {
		l.logger.Debug("sources_already_staged", "dir", staged)
		return nil
	}

	if err := os.MkdirAll(l.workDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	cmd := l.runner.TarCommand(ctx, l.workDir, l.archive)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	l.logger.Info("unpacking_sources",
		"archive", l.archive,
		"command", process.CommandString(cmd),
	)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The tool never ran at all.
			return fmt.Errorf("%w: %v", ErrExtractTool, err)
		}
		l.logger.Debug("tar_exited_nonzero",
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()),
		)
	}

	if _, err := os.Stat(staged); err != nil {
		return fmt.Errorf("%w: %s", ErrStageMissing, staged)
	}

	l.logger.Info("sources_staged", "dir", staged)
	return nil
}

// Build runs make over the staged sources. Build problems are logged
// and swallowed. A failed build leaves the binary absent, which
// RunLoad later treats as a silent skip.
func (l *Load) Build(ctx context.Context) error {
	// A binary dropped in the current directory by an older run would
	// shadow the staged one in casual testing. Clear it if possible.
	if err := os.Remove(BinaryName); err != nil && !os.IsNotExist(err) {
		l.logger.Debug("stale_binary_remove_failed", "error", err)
	}

	cmd := l.runner.MakeCommand(ctx, l.StagedDir())

	l.logger.Info("building_workload", "command", process.CommandString(cmd))

	if err := cmd.Run(); err != nil {
		l.logger.Debug("build_failed", "error", err)
	}

	return nil
}

// BuildCommand implements supervisor.ProcessBuilder.
func (l *Load) BuildCommand(unitID int) (*exec.Cmd, error) {
	return l.runner.WorkloadCommand(l.BinaryPath(), l.args...), nil
}

// RunLoad implements load.Load. It keeps one hackbench process alive
// until ctx is cancelled, respawning on every exit. Blocks for the
// whole run.
func (l *Load) RunLoad(ctx context.Context, unit int) error {
	sup := supervisor.New(supervisor.Config{
		UnitID:           unit,
		Builder:          l,
		Backoff:          supervisor.NewBackoff(unit, l.backoffSeed, l.backoffCfg),
		Logger:           l.logger,
		Callbacks:        l.callbacks,
		Tick:             l.tick,
		MaxLaunchRetries: l.maxLaunchRetries,
	})

	return sup.Run(ctx)
}
