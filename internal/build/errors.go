package build

import "go.trai.ch/zerr"

var (
	// ErrBuild wraps any stage failure with its stage and platform context.
	ErrBuild = zerr.New("build failed")

	// ErrEnvironmentUnavailable is returned when a stage's base image
	// reference cannot be resolved or pulled.
	ErrEnvironmentUnavailable = zerr.New("environment unavailable")

	// ErrSourceNotFound is returned when a required host copy source does
	// not exist.
	ErrSourceNotFound = zerr.New("source not found")

	// ErrBuildFailed is returned when a run step exits non-zero. The exit
	// code and captured output are attached verbatim.
	ErrBuildFailed = zerr.New("command failed")

	// ErrArtifactMissing is returned when a cross-stage copy names a path
	// that does not exist in the source stage's snapshot.
	ErrArtifactMissing = zerr.New("artifact missing")

	// ErrStageNotYetBuilt is returned when a cross-stage copy names a stage
	// that has not completed execution.
	ErrStageNotYetBuilt = zerr.New("stage not yet built")

	// ErrCopy wraps failures while transferring files into a container.
	ErrCopy = zerr.New("copy failed")

	// ErrFileSystemOperation wraps host filesystem failures.
	ErrFileSystemOperation = zerr.New("file system operation failed")
)
