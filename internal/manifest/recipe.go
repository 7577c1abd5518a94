package manifest

// Default recipe filename looked up in the project root.
const DefaultFilename = "kiln.yaml"

// A parsed build recipe.
//
// A recipe is an ordered list of stages. Transient stages exist only to
// produce artifacts for later stages; the single non-transient stage is
// exported as the output image. The workdir, command, and entrypoint
// fields describe the output image's OCI config.
type Recipe struct {
	Version    string   `yaml:"version"`    // Schema version, currently unused beyond validation.
	Workdir    string   `yaml:"workdir"`    // Working directory recorded on the output image.
	Command    []string `yaml:"command"`    // Default command (OCI Cmd) of the output image.
	Entrypoint []string `yaml:"entrypoint"` // OCI entrypoint of the output image (services only).
	Stages     []Stage  `yaml:"stages"`     // Stages in declaration (and execution) order.
}

// A single build stage.
//
// Each stage is provisioned from its own base image and executes its steps
// in an isolated container. Stages are immutable once parsed.
type Stage struct {
	Name      string `yaml:"name"`      // Stage name, referenced by cross-stage copies. May be empty.
	From      string `yaml:"from"`      // Base image reference (e.g., "docker.io/library/debian:bookworm-slim").
	Transient bool   `yaml:"transient"` // Whether the stage is discarded instead of exported.
	Steps     []Step `yaml:"steps"`     // Steps executed in order.
}

// A single step within a stage.
//
// A step is either an operation (run or copy), a group of nested steps
// with group-level modifiers, or a standalone modifier that persists for
// all subsequent steps in the stage.
type Step struct {
	Run      string            `yaml:"run,omitempty"`      // Shell command to execute in the stage container.
	Copy     string            `yaml:"copy,omitempty"`     // "src dest" host copy or "stage:src dest" artifact transfer.
	Optional bool              `yaml:"optional,omitempty"` // Whether a missing host copy source is skipped rather than fatal.
	Cache    *Cache            `yaml:"cache,omitempty"`    // Dependency-layer cache policy for a run step.
	Shell    string            `yaml:"shell,omitempty"`    // Shell override for run steps.
	Workdir  string            `yaml:"workdir,omitempty"`  // Working directory modifier.
	Env      map[string]string `yaml:"env,omitempty"`      // Environment variable modifiers.
	Steps    []Step            `yaml:"steps,omitempty"`    // Nested steps for grouped modifiers.
}

// Cache policy for a run step.
//
// The step's command is keyed by the content of the declared input files
// (typically dependency manifests and lockfiles). On a key match the
// preserved container path is restored from the layer cache and the
// command is skipped, so source-only changes never repeat the work.
type Cache struct {
	Inputs []string `yaml:"inputs"` // Host files whose content forms the cache key.
	Path   string   `yaml:"path"`   // Absolute container path preserved and restored.
}
