// Package build orchestrates recipe execution against the container runtime.
//
// A recipe is an ordered sequence of stages, each backed by a container
// created from a base image. The pipeline provisions a container for each
// stage, dispatches its steps (shell commands, file copies from the project
// root, and artifact transfers from earlier stages), and exports the final
// stage as an OCI image. Transient stages leave nothing behind: the output
// image contains only what was explicitly transferred into the final stage.
// Multi-platform builds run the pipeline once per platform, each writing to
// a platform-specific output directory.
//
// Stage execution is strictly sequential and every failure is terminal:
// the pipeline halts at the first error, tears down its containers, and
// produces no image. Run steps that declare a cache policy consult the
// dependency-layer cache, so builds that change only source files skip
// re-fetching dependencies.
//
// Container operations are delegated to the runtime package. Step state
// (environment variables, working directory, shell) is accumulated across
// steps within a stage and reset between stages.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe:    recipe,
//	    Resource:  "my-library",
//	    Output:    "dist",
//	    Root:      ".",
//	    Platforms: []string{"linux/amd64", "linux/arm64"},
//	    Layers:    cache.NewStore(paths.LayerCache()),
//	})
//	if err != nil {
//	    return err
//	}
package build
