// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	pscpu "github.com/shirou/gopsutil/v3/cpu"
	psload "github.com/shirou/gopsutil/v3/load"
	psmem "github.com/shirou/gopsutil/v3/mem"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

// tasksPerGroup is how many processes one hackbench group spawns
// (20 senders + 20 receivers).
const tasksPerGroup = 40

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks. units is the number of parallel
// workload instances, groups the hackbench group count per instance.
// tarPath and makePath may be bare names (resolved on PATH) or explicit
// paths.
func RunAll(units, groups int, tarPath, makePath, sourceDir, workDir string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 6),
		Passed: true,
	}

	// Extraction tool check (fatal: staging cannot proceed without tar)
	tarCheck := checkTool(tarPath, false)
	result.Checks = append(result.Checks, tarCheck)
	if !tarCheck.Passed {
		result.Passed = false
	}

	// Build tool check (warning only: build is best-effort and a staged
	// tree may already carry a binary)
	makeCheck := checkTool(makePath, true)
	result.Checks = append(result.Checks, makeCheck)

	// Source directory check
	srcCheck := checkSourceDir(sourceDir)
	result.Checks = append(result.Checks, srcCheck)
	if !srcCheck.Passed {
		result.Passed = false
	}

	// Working directory check
	workCheck := checkWorkDir(workDir)
	result.Checks = append(result.Checks, workCheck)
	if !workCheck.Passed {
		result.Passed = false
	}

	// Process limit check (warning only)
	procCheck := checkProcessLimit(units, groups)
	result.Checks = append(result.Checks, procCheck)

	// System snapshot (informational)
	sysCheck := checkSystem(units, groups)
	result.Checks = append(result.Checks, sysCheck)

	return result
}

// checkTool verifies an external tool resolves on PATH.
func checkTool(name string, warnOnly bool) Check {
	path, err := exec.LookPath(name)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  warnOnly,
			Warning: warnOnly,
			Message: "not found on PATH",
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s", path),
	}
}

// checkSourceDir verifies the tarball source directory is readable.
func checkSourceDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{
			Name:    "source_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "source_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}
	if _, err := os.ReadDir(dir); err != nil {
		return Check{
			Name:    "source_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s not readable: %v", dir, err),
		}
	}
	return Check{
		Name:    "source_dir",
		Passed:  true,
		Message: dir,
	}
}

// checkWorkDir verifies the extraction directory is writable. A missing
// directory is fine: staging creates it, so the nearest existing parent
// is probed instead.
func checkWorkDir(dir string) Check {
	probeDir := dir
	created := false

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		probeDir = existingParent(dir)
		created = true
	} else if err != nil {
		return Check{
			Name:    "work_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", dir, err),
		}
	} else if !info.IsDir() {
		return Check{
			Name:    "work_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	probe, err := os.CreateTemp(probeDir, ".preflight-*")
	if err != nil {
		return Check{
			Name:    "work_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s not writable: %v", probeDir, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	msg := dir
	if created {
		msg = fmt.Sprintf("%s (will be created)", dir)
	}
	return Check{
		Name:    "work_dir",
		Passed:  true,
		Message: msg,
	}
}

// existingParent walks up from dir to the first path that exists.
func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// checkProcessLimit verifies sufficient process slots are available.
// hackbench with G groups spawns G*40 tasks per instance, so parallel
// runs chew through RLIMIT_NPROC quickly.
func checkProcessLimit(units, groups int) Check {
	required := units*groups*tasksPerGroup + 50

	// Read soft limit from /proc/self/limits
	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	// Parse "Max processes" line
	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   true, // headroom shortfall is a warning, not a stop
		Warning:  actual < required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d for %d units)", actual, required, units),
	}
}

// checkSystem captures a host snapshot so run context lands in the log:
// a scheduler benchmark on an already loaded box produces junk numbers.
func checkSystem(units, groups int) Check {
	parts := make([]string, 0, 3)
	warning := false

	cores, err := pscpu.Counts(true)
	if err != nil {
		parts = append(parts, "cpus unknown")
		warning = true
	} else {
		parts = append(parts, fmt.Sprintf("%d logical CPUs (%d tasks projected)",
			cores, units*groups*tasksPerGroup))
	}

	if avg, err := psload.Avg(); err != nil {
		parts = append(parts, "load unknown")
		warning = true
	} else {
		parts = append(parts, fmt.Sprintf("load %.2f/%.2f/%.2f", avg.Load1, avg.Load5, avg.Load15))
		if cores > 0 && avg.Load1 > float64(cores) {
			warning = true
		}
	}

	if vm, err := psmem.VirtualMemory(); err != nil {
		parts = append(parts, "memory unknown")
		warning = true
	} else {
		parts = append(parts, fmt.Sprintf("mem %d/%d MiB available",
			vm.Available/(1024*1024), vm.Total/(1024*1024)))
	}

	return Check{
		Name:    "system",
		Passed:  true,
		Warning: warning,
		Message: strings.Join(parts, ", "),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "tar":
		return "install tar (apt install tar / brew install gnu-tar)"
	case "make":
		return "install make (apt install build-essential)"
	case "source_dir":
		return "pass -source-dir pointing at the directory holding the hackbench tarball"
	case "work_dir":
		return "pass -work-dir pointing at a writable scratch directory"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
