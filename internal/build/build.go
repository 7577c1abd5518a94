package build

import (
	"context"
	"errors"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/kilnhq/kilnd/internal/cache"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Controls pipeline execution.
type Options struct {
	Recipe    *manifest.Recipe // Recipe to execute.
	Resource  string           // Resource name, used as a prefix for container IDs.
	Output    string           // Directory for the exported image.
	Root      string           // Project root, for resolving copy sources and cache inputs.
	Platforms []string         // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
	Layers    *cache.Store     // Dependency-layer cache. Nil disables caching.
	Timeout   time.Duration    // Per run-step timeout. Zero means no timeout.
}

// Returned after successful pipeline execution.
type Result struct {
	Output string // Directory containing the exported image.
}

// Executes a recipe against the container runtime.
//
// Stages are built strictly in declaration order. Each stage starts a
// container from its base image and executes its steps; the final stage
// is exported as the output image. The first failure halts the pipeline
// and no image is produced. Platforms are independent pipelines and run
// concurrently.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if opts.Recipe == nil {
		return nil, errors.Join(ErrBuild, manifest.ErrInvalid)
	}

	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{"linux/" + goruntime.GOARCH}
	}

	slog.Info("executing recipe",
		"resource", opts.Resource,
		"output", opts.Output,
		"stages", len(opts.Recipe.Stages),
		"platforms", opts.Platforms,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, errors.Join(ErrFileSystemOperation, err)
	}

	return newPipeline(rt, opts).build(ctx)
}
