// Package load defines the lifecycle contract for benchmark workloads.
//
// A Load owns one kind of workload from source to running process. The
// orchestrator drives every Load through the same three phases: Setup
// stages the sources, Build compiles them, and RunLoad keeps a workload
// process alive until the run is cancelled.
package load

import "context"

// Load prepares and runs one kind of benchmark workload.
type Load interface {
	// Name returns a human readable name for the workload.
	Name() string

	// Setup stages the workload into its work directory. It is safe to
	// call on every start; staging that already happened is detected
	// and skipped.
	Setup(ctx context.Context) error

	// Build compiles the staged workload. A failed build leaves the
	// workload binary absent and is not reported as an error.
	Build(ctx context.Context) error

	// RunLoad blocks, keeping one workload process alive until ctx is
	// cancelled. unit distinguishes parallel instances of the same
	// load. A missing workload binary is skipped silently.
	RunLoad(ctx context.Context, unit int) error
}
