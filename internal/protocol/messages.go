package protocol

import "github.com/kilnhq/kilnd/internal/manifest"

// Payload of a build command.
type BuildRequest struct {
	Recipe    *manifest.Recipe `json:"recipe"`              // Recipe to execute.
	Resource  string           `json:"resource"`            // Resource name, prefixes container IDs.
	Output    string           `json:"output"`              // Directory for the exported image.
	Root      string           `json:"root"`                // Project root for resolving copy sources.
	Platforms []string         `json:"platforms,omitempty"` // Target platforms. Empty means host.
	NoCache   bool             `json:"no_cache,omitempty"`  // Whether to bypass the dependency-layer cache.
	Timeout   int              `json:"timeout,omitempty"`   // Per run-step timeout in seconds. Zero means none.
}

// Payload of a successful build response.
type BuildResult struct {
	Output string `json:"output"` // Directory containing the exported image.
}

// Payload of a status response.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"` // Total build commands processed since start.
}

// Payload of an error response.
type ErrorResult struct {
	Message string `json:"message"`
}
