// Package process provides command construction for the external
// processes the load generator runs: tar, make, and the hackbench
// workload itself.
package process

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Runner creates executable commands for the stage, build and load
// phases. The interface allows tests to substitute stub commands.
type Runner interface {
	// TarCommand returns a command that extracts archive into dir.
	TarCommand(ctx context.Context, dir, archive string) *exec.Cmd

	// MakeCommand returns a command that builds the sources in dir.
	MakeCommand(ctx context.Context, dir string) *exec.Cmd

	// WorkloadCommand returns a ready-to-start workload command.
	// The command is NOT started yet.
	WorkloadCommand(binary string, args ...string) *exec.Cmd
}

// Result captures the outcome of one workload execution.
type Result struct {
	Unit      int
	Pid       int
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
	Error     error
}

// Runtime returns the wall-clock duration of the execution.
func (r *Result) Runtime() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Exit classes for counters and reporting.
const (
	ExitClean  = "clean"
	ExitError  = "error"
	ExitSignal = "signal"
)

// ExitClass buckets an exit code for reporting. Codes above 128 are
// signal terminations by shell convention.
func ExitClass(code int) string {
	switch {
	case code == 0:
		return ExitClean
	case code > 128:
		return ExitSignal
	default:
		return ExitError
	}
}

// TarArgs returns the argument list for extracting archive into dir.
// The order is fixed: -C <dir> -x [compression] -f <archive>.
// Compression is selected by filename suffix; unknown suffixes rely on
// tar's own detection.
func TarArgs(dir, archive string) []string {
	args := []string{"-C", dir, "-x"}
	switch {
	case strings.HasSuffix(archive, ".bz2"):
		args = append(args, "-j")
	case strings.HasSuffix(archive, ".gz"):
		args = append(args, "-z")
	}
	return append(args, "-f", archive)
}

// ExecRunner builds real commands with the configured tool paths.
type ExecRunner struct {
	TarPath  string
	MakePath string
}

// NewExecRunner returns an ExecRunner using the given tool paths.
// Empty paths fall back to resolution via PATH.
func NewExecRunner(tarPath, makePath string) *ExecRunner {
	if tarPath == "" {
		tarPath = "tar"
	}
	if makePath == "" {
		makePath = "make"
	}
	return &ExecRunner{
		TarPath:  tarPath,
		MakePath: makePath,
	}
}

// TarCommand returns the extraction command for archive into dir.
func (r *ExecRunner) TarCommand(ctx context.Context, dir, archive string) *exec.Cmd {
	return exec.CommandContext(ctx, r.TarPath, TarArgs(dir, archive)...)
}

// MakeCommand returns the build command for the sources in dir.
// Stream fields are left nil so the build runs with /dev/null streams.
func (r *ExecRunner) MakeCommand(ctx context.Context, dir string) *exec.Cmd {
	return exec.CommandContext(ctx, r.MakePath, "-C", dir)
}

// WorkloadCommand returns the hackbench command. It deliberately does
// not take a context: the supervisor owns termination and signals the
// process itself, never through command cancellation. Stream fields are
// left nil so the workload runs with /dev/null streams.
func (r *ExecRunner) WorkloadCommand(binary string, args ...string) *exec.Cmd {
	cmd := exec.Command(binary, args...)
	// New process group so Ctrl+C in the terminal doesn't signal the
	// workload directly.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
	return cmd
}

// CommandString formats a command line for logging.
func CommandString(cmd *exec.Cmd) string {
	return strings.Join(cmd.Args, " ")
}
