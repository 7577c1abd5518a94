package build

import "fmt"

// Lifecycle phase of a single stage within a pipeline run.
//
// Phases advance strictly forward: pending, provisioning, executing,
// built, and (for the final stage) exported. Any failure moves the stage
// to failed, a terminal phase. The pipeline has no resume semantics; a
// failed run starts over from pending.
type phase int

const (
	phasePending phase = iota
	phaseProvisioning
	phaseExecuting
	phaseBuilt
	phaseExported
	phaseFailed
)

// Returns the phase name for logs and errors.
func (p phase) String() string {
	switch p {
	case phasePending:
		return "pending"
	case phaseProvisioning:
		return "provisioning"
	case phaseExecuting:
		return "executing"
	case phaseBuilt:
		return "built"
	case phaseExported:
		return "exported"
	case phaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Tracks the phase of each stage during one platform's pipeline run.
type progress struct {
	phases map[string]phase
}

// Creates an empty progress tracker.
func newProgress() *progress {
	return &progress{phases: make(map[string]phase)}
}

// Moves a stage to the given phase.
//
// Transitions are monotonic: a stage never moves backwards, and a failed
// stage never leaves the failed phase. Out-of-order calls are programming
// errors and panic.
func (pr *progress) advance(stage string, next phase) {
	current := pr.phases[stage]
	if current == phaseFailed || next <= current {
		panic(fmt.Sprintf("invalid phase transition for stage %q: %s -> %s", stage, current, next))
	}
	pr.phases[stage] = next
}

// Marks a stage as failed.
func (pr *progress) fail(stage string) {
	pr.phases[stage] = phaseFailed
}

// Reports whether a stage has completed execution.
//
// Only built or exported stages may serve as cross-stage copy sources.
func (pr *progress) completed(stage string) bool {
	p := pr.phases[stage]
	return p == phaseBuilt || p == phaseExported
}
