package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/kilnhq/kilnd/internal/cache"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Holds shared state for building all stages of a recipe.
type pipeline struct {
	rt        *runtime.Runtime // Container runtime for image and container operations.
	recipe    *manifest.Recipe // Recipe under execution.
	resource  string           // Resource name, used as a prefix for container IDs.
	output    string           // Output directory for the final build artifact.
	root      string           // Project root for resolving copy sources and cache inputs.
	platforms []string         // Target platforms to build for.
	layers    *cache.Store     // Dependency-layer cache, nil when caching is disabled.
	timeout   time.Duration    // Per run-step timeout, zero for none.
}

// Creates a new [pipeline] from the given options.
func newPipeline(rt *runtime.Runtime, opts Options) *pipeline {
	return &pipeline{
		rt:        rt,
		recipe:    opts.Recipe,
		resource:  opts.Resource,
		output:    opts.Output,
		root:      opts.Root,
		platforms: opts.Platforms,
		layers:    opts.Layers,
		timeout:   opts.Timeout,
	}
}

// Builds the recipe end-to-end against the container runtime.
//
// Each target platform is an independent pipeline with its own containers
// and runs concurrently with the others; the first failure cancels the
// rest. Within a platform, stages are built strictly in declaration order.
func (p *pipeline) build(ctx context.Context) (*Result, error) {
	g, ctx := errgroup.WithContext(ctx)

	for _, platform := range p.platforms {
		g.Go(func() error {
			return p.buildPlatform(ctx, platform)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{Output: p.output}, nil
}

// Builds all stages of the recipe for a single platform.
//
// Each platform maintains its own set of completed stage containers for
// cross-stage copy lookups. All of the platform's containers are destroyed
// when its pipeline finishes, successfully or not. The output is written
// to a platform-specific subdirectory when building for multiple platforms.
func (p *pipeline) buildPlatform(ctx context.Context, platform string) error {
	slog.Info("building platform", "platform", platform)

	output := p.platformOutput(platform)
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return errors.Join(ErrFileSystemOperation, err)
	}

	var containers []*runtime.Container
	defer func() {
		// Teardown must run even when the build context is cancelled.
		cleanup := context.WithoutCancel(ctx)
		for _, ctr := range containers {
			ctr.Destroy(cleanup)
		}
	}()

	built := make(map[string]*runtime.Container)
	tracker := newProgress()

	for i, stage := range p.recipe.Stages {
		ctr, err := p.buildStage(ctx, stage, i, platform, output, built, tracker)
		if ctr != nil {
			containers = append(containers, ctr)
		}
		if err != nil {
			tracker.fail(stageKey(stage.Name, i))
			return zerr.Wrap(errors.Join(ErrBuild, err), fmt.Sprintf("platform %s, stage %s", platform, stageLabel(stage.Name, i)))
		}
	}

	return nil
}

// Builds a single stage of a recipe for a specific platform.
//
// Provisions a container from the stage's base image, executes the stage's
// steps, then records the stage as built. The final stage is stopped and
// its filesystem exported to the output directory with the recipe's image
// configuration. The container is returned even on failure so the caller
// can destroy it.
func (p *pipeline) buildStage(ctx context.Context, stage manifest.Stage, index int, platform, output string, built map[string]*runtime.Container, tracker *progress) (*runtime.Container, error) {
	key := stageKey(stage.Name, index)
	slog.Info(fmt.Sprintf("building stage %s", stageLabel(stage.Name, index)), "platform", platform)

	tracker.advance(key, phaseProvisioning)

	id := p.containerID(stage.Name, index, platform)
	ctr, err := p.rt.Provision(ctx, stage.From, id, platform)
	if err != nil {
		if errors.Is(err, runtime.ErrImageUnavailable) {
			return nil, zerr.Wrap(errors.Join(ErrEnvironmentUnavailable, err), stage.From)
		}
		return nil, err
	}

	tracker.advance(key, phaseExecuting)

	exec := &stageExec{
		ctr:     ctr,
		stage:   stage,
		root:    p.root,
		built:   built,
		tracker: tracker,
		layers:  p.layers,
		timeout: p.timeout,
	}
	if err := exec.run(ctx, stage.Steps, newStepState()); err != nil {
		return ctr, err
	}

	tracker.advance(key, phaseBuilt)
	if stage.Name != "" {
		built[stage.Name] = ctr
	}

	if !stage.Transient {
		if err := ctr.Stop(ctx); err != nil {
			return ctr, err
		}

		if err := ctr.Export(ctx, output, runtime.ExportConfig{
			Workdir:    p.recipe.Workdir,
			Cmd:        p.recipe.Command,
			Entrypoint: p.recipe.Entrypoint,
		}); err != nil {
			return ctr, err
		}

		tracker.advance(key, phaseExported)
	}

	return ctr, nil
}

// Returns a unique container ID for a stage, scoped to this resource and platform.
func (p *pipeline) containerID(name string, index int, platform string) string {
	slug := platformSlug(platform)
	if name != "" {
		return fmt.Sprintf("%s-%s-stage-%s", p.resource, slug, name)
	}
	return fmt.Sprintf("%s-%s-stage-%d", p.resource, slug, index+1)
}

// Returns the output directory for a specific platform.
//
// When building for a single platform, the output directory is left as-is
// to preserve the existing {output}/image.tar convention. For multi-platform
// builds, each platform gets a subdirectory (e.g., {output}/linux-amd64).
func (p *pipeline) platformOutput(platform string) string {
	if len(p.platforms) == 1 {
		return p.output
	}
	return filepath.Join(p.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
//
// Replaces slashes with dashes (e.g., "linux/amd64" becomes "linux-amd64").
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}

// Returns the progress-tracking key for a stage: its name when available,
// the 1-based index otherwise. Cross-stage copies resolve completion by
// this key.
func stageKey(name string, index int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%d", index+1)
}

// Returns a label for a stage, preferring the name when available and falling
// back to the 1-based index.
func stageLabel(name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%d", index+1)
}
