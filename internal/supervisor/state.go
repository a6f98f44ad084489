// Package supervisor manages the lifecycle of individual hackbench
// workload processes.
package supervisor

// State represents the current state of a supervised load unit.
type State int

const (
	// StateCreated is the initial state before the unit has started.
	StateCreated State = iota

	// StateRunning indicates the workload process is actively running.
	StateRunning

	// StateBackoff indicates the unit is waiting before a launch retry.
	StateBackoff

	// StateStopping indicates the unit is signaling its workload.
	StateStopping

	// StateStopped indicates the unit has been permanently stopped.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents an active unit
// (running or waiting to retry a launch).
func (s State) IsActive() bool {
	return s == StateRunning || s == StateBackoff
}

// IsTerminal returns true if the state is a terminal state (stopped).
func (s State) IsTerminal() bool {
	return s == StateStopped
}
