package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-hackbench-load/internal/process"
)

// ProcessBuilder creates workload commands for load units.
// This interface decouples the supervisor from hackbench specifics.
type ProcessBuilder interface {
	// BinaryPath returns the path of the workload binary. The supervisor
	// stats it once before the first spawn.
	BinaryPath() string

	// BuildCommand returns a ready-to-start command for the given unit.
	BuildCommand(unitID int) (*exec.Cmd, error)

	// Name returns a human-readable name for this workload type.
	Name() string
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the unit state changes.
	OnStateChange func(unitID int, oldState, newState State)

	// OnSpawn is called when a workload process starts.
	OnSpawn func(unitID int, pid int)

	// OnExit is called when a workload exit is observed.
	OnExit func(unitID int, result process.Result)

	// OnLaunchRetry is called before a delayed launch attempt.
	OnLaunchRetry func(unitID int, attempt int, delay time.Duration)
}

// waitResult carries the outcome of cmd.Wait for a spawned process.
type waitResult struct {
	err error
}

// runningProcess tracks one spawned workload process. The wait
// goroutine delivers the reaped status on waitCh; the run loop polls
// it once per tick.
type runningProcess struct {
	cmd    *exec.Cmd
	pid    int
	start  time.Time
	waitCh chan waitResult
}

// Supervisor owns the lifecycle of a single load unit: one workload
// process at a time, respawned whenever an exit is observed, until the
// context is cancelled.
type Supervisor struct {
	unitID    int
	builder   ProcessBuilder
	backoff   *Backoff
	logger    *slog.Logger
	callbacks Callbacks

	// Liveness poll interval
	tick time.Duration

	// Consecutive failed launch attempts tolerated
	maxLaunchRetries int

	// State management
	state   State
	stateMu sync.RWMutex

	// Current process
	proc   *runningProcess
	procMu sync.Mutex

	// Counters
	spawns   atomic.Int64
	respawns atomic.Int64
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	UnitID           int
	Builder          ProcessBuilder
	Backoff          *Backoff
	Logger           *slog.Logger
	Callbacks        Callbacks
	Tick             time.Duration // liveness poll interval (default 1s)
	MaxLaunchRetries int           // failed launches tolerated in a row (default 5)
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Second
	}

	retries := cfg.MaxLaunchRetries
	if retries <= 0 {
		retries = 5
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := cfg.Backoff
	if backoff == nil {
		backoff = NewBackoff(cfg.UnitID, 0, DefaultBackoffConfig())
	}

	return &Supervisor{
		unitID:           cfg.UnitID,
		builder:          cfg.Builder,
		backoff:          backoff,
		logger:           logger,
		callbacks:        cfg.Callbacks,
		tick:             tick,
		maxLaunchRetries: retries,
		state:            StateCreated,
	}
}

// Run starts the supervision loop. It blocks until the context is
// cancelled, and returns nil on cancellation.
//
// A missing workload binary is not an error: the unit logs at debug
// level and returns nil without ever entering the loop, so load
// generation proceeds without it.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Debug("unit_starting",
		"unit_id", s.unitID,
		"workload", s.builder.Name(),
	)

	binary := s.builder.BinaryPath()
	if _, err := os.Stat(binary); err != nil {
		s.logger.Debug("workload_binary_missing",
			"unit_id", s.unitID,
			"binary", binary,
			"error", err,
		)
		s.setState(StateStopped)
		return nil
	}

	// The first launch is never retried; a binary that just passed the
	// stat check but cannot start is a configuration fault. Only respawn
	// launches go through the backoff path.
	if err := s.spawn(); err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("launching %s: %w", s.builder.Name(), err)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		// Stop wins over liveness: once cancellation is observed the
		// loop signals the workload and never respawns again.
		if ctx.Err() != nil {
			return s.shutdown()
		}

		select {
		case <-ctx.Done():
			return s.shutdown()

		case <-ticker.C:
			result, exited := s.poll()
			if !exited {
				continue
			}
			s.recordExit(result)

			if ShouldReset(result.Runtime(), result.ExitCode) {
				s.backoff.Reset()
			}

			if err := s.launch(ctx); err != nil {
				if ctx.Err() != nil {
					return s.shutdown()
				}
				s.setState(StateStopped)
				return err
			}
			s.respawns.Add(1)
		}
	}
}

// launch spawns a replacement workload during respawn, retrying with
// backoff when the command cannot be started. Returns an error once the
// retry budget is exhausted or the context is cancelled.
func (s *Supervisor) launch(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := s.spawn()
		if err == nil {
			return nil
		}

		if attempt >= s.maxLaunchRetries {
			s.logger.Error("launch_retries_exhausted",
				"unit_id", s.unitID,
				"attempts", attempt,
				"error", err,
			)
			return fmt.Errorf("launching %s: %w", s.builder.Name(), err)
		}

		delay := s.backoff.Next()

		if s.callbacks.OnLaunchRetry != nil {
			s.callbacks.OnLaunchRetry(s.unitID, attempt, delay)
		}

		s.logger.Warn("launch_retry_scheduled",
			"unit_id", s.unitID,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)

		s.setState(StateBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// spawn builds and starts one workload process and hands reaping to a
// dedicated wait goroutine.
func (s *Supervisor) spawn() error {
	cmd, err := s.builder.BuildCommand(s.unitID)
	if err != nil {
		s.logger.Error("build_command_failed",
			"unit_id", s.unitID,
			"error", err,
		)
		return err
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		s.logger.Error("workload_start_failed",
			"unit_id", s.unitID,
			"command", process.CommandString(cmd),
			"error", err,
		)
		return err
	}

	proc := &runningProcess{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		start:  start,
		waitCh: make(chan waitResult, 1),
	}

	// Reap promptly: Wait runs in its own goroutine and the loop
	// observes the status at tick granularity. The channel is buffered
	// so the goroutine never outlives the process it reaped.
	go func() {
		proc.waitCh <- waitResult{err: proc.cmd.Wait()}
	}()

	s.procMu.Lock()
	s.proc = proc
	s.procMu.Unlock()

	s.spawns.Add(1)
	s.setState(StateRunning)

	s.logger.Info("workload_started",
		"unit_id", s.unitID,
		"pid", proc.pid,
	)

	if s.callbacks.OnSpawn != nil {
		s.callbacks.OnSpawn(s.unitID, proc.pid)
	}

	return nil
}

// poll performs one non-blocking liveness check. When the wait
// goroutine has delivered an exit status, poll clears the process slot
// and returns the reaped result.
func (s *Supervisor) poll() (process.Result, bool) {
	s.procMu.Lock()
	proc := s.proc
	s.procMu.Unlock()

	if proc == nil {
		return process.Result{}, false
	}

	select {
	case wr := <-proc.waitCh:
		end := time.Now()

		s.procMu.Lock()
		s.proc = nil
		s.procMu.Unlock()

		return process.Result{
			Unit:      s.unitID,
			Pid:       proc.pid,
			ExitCode:  extractExitCode(wr.err),
			StartTime: proc.start,
			EndTime:   end,
			Error:     wr.err,
		}, true
	default:
		return process.Result{}, false
	}
}

// recordExit logs an observed exit and notifies the callback.
func (s *Supervisor) recordExit(result process.Result) {
	s.logger.Info("workload_exited",
		"unit_id", s.unitID,
		"pid", result.Pid,
		"exit_code", result.ExitCode,
		"runtime", result.Runtime().String(),
	)

	if s.callbacks.OnExit != nil {
		s.callbacks.OnExit(s.unitID, result)
	}
}

// shutdown signals the current workload and returns. The stop is
// fire-and-forget: SIGTERM is sent once and the unit does not wait for
// the process to die. The wait goroutine still reaps the status
// whenever the process exits.
func (s *Supervisor) shutdown() error {
	s.setState(StateStopping)

	s.procMu.Lock()
	proc := s.proc
	s.proc = nil
	s.procMu.Unlock()

	if proc != nil {
		s.logger.Debug("signaling_workload",
			"unit_id", s.unitID,
			"pid", proc.pid,
			"signal", "SIGTERM",
		)
		// Best effort. The process may already be gone.
		_ = syscall.Kill(proc.pid, syscall.SIGTERM)
	}

	s.setState(StateStopped)
	s.logger.Debug("unit_stopped", "unit_id", s.unitID)
	return nil
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(s.unitID, oldState, newState)
	}
}

// UnitID returns the unit ID for this supervisor.
func (s *Supervisor) UnitID() int {
	return s.unitID
}

// Spawns returns the number of workload processes started.
func (s *Supervisor) Spawns() int64 {
	return s.spawns.Load()
}

// Respawns returns the number of spawns that followed an observed exit.
func (s *Supervisor) Respawns() int64 {
	return s.respawns.Load()
}

// Pid returns the pid of the live workload process, or 0 if none.
func (s *Supervisor) Pid() int {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.pid
}

// Uptime returns how long the current workload process has been
// running, or 0 if none is live.
func (s *Supervisor) Uptime() time.Duration {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if s.proc == nil {
		return 0
	}
	return time.Since(s.proc.start)
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
