package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"go.trai.ch/zerr"

	"github.com/kilnhq/kilnd/internal/cache"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Executes the steps of a single stage against its container.
type stageExec struct {
	ctr     *runtime.Container            // Container backing the stage.
	stage   manifest.Stage                // Stage under execution.
	root    string                        // Project root for resolving copy sources and cache inputs.
	built   map[string]*runtime.Container // Completed stage containers, for cross-stage copies.
	tracker *progress                     // Stage phase tracker, for ordering checks.
	layers  *cache.Store                  // Dependency-layer cache, nil when disabled.
	timeout time.Duration                 // Per run-step timeout, zero for none.
}

// Executes a list of steps in order.
func (e *stageExec) run(ctx context.Context, steps []manifest.Step, state *stepState) error {
	for i, step := range steps {
		if err := e.runStep(ctx, step, state); err != nil {
			return zerr.Wrap(err, fmt.Sprintf("step %d", i+1))
		}
	}
	return nil
}

// Executes a single step, dispatching to operation execution, group recursion,
// or state mutation depending on the step's fields.
func (e *stageExec) runStep(ctx context.Context, step manifest.Step, state *stepState) error {
	hasOp := step.Run != "" || step.Copy != ""

	// Group: apply group-level modifiers and recurse.
	if len(step.Steps) > 0 {
		state.apply(step)
		return e.run(ctx, step.Steps, state)
	}

	// Operation with optional scoped modifiers.
	if hasOp {
		return e.runOperation(ctx, step, state)
	}

	// Standalone modifier(s): persist in state.
	state.apply(step)
	return nil
}

// Executes a run or copy operation with scoped modifier overrides.
//
// Step-level modifiers override the persistent state for this operation only.
// The persistent state is not modified.
func (e *stageExec) runOperation(ctx context.Context, step manifest.Step, state *stepState) error {
	resolved := state.resolve(step)

	if resolved.workdir != "" {
		if err := e.ctr.MkdirAll(ctx, resolved.workdir); err != nil {
			return err
		}
	}

	switch {
	case step.Run != "":
		return e.runCommand(ctx, step, resolved)
	case step.Copy != "":
		return e.runCopy(ctx, step, resolved.workdir)
	}

	return nil
}

// Executes a run step, consulting the dependency-layer cache when the step
// declares a cache policy.
//
// A cached step whose key matches a stored entry restores the preserved
// container path instead of executing the command. On a miss the command
// runs and the path is archived into the store afterwards, so the next
// build with unchanged inputs skips the work.
func (e *stageExec) runCommand(ctx context.Context, step manifest.Step, resolved *stepState) error {
	var key string
	if step.Cache != nil && e.layers != nil {
		var err error
		key, err = cache.Key(e.stage.From, step.Run, step.Cache.Inputs, e.root)
		if err != nil {
			return err
		}

		restored, err := e.restoreLayer(ctx, key, step.Cache.Path)
		if err != nil {
			return err
		}
		if restored {
			return nil
		}
	}

	if err := e.execute(ctx, step.Run, resolved); err != nil {
		return err
	}

	if key != "" {
		return e.storeLayer(ctx, key, step.Cache.Path)
	}
	return nil
}

// Runs a command inside the stage container, applying the per-step timeout.
//
// A non-zero exit is terminal for the pipeline; the exit code and captured
// stderr are surfaced verbatim. There are no retries.
func (e *stageExec) execute(ctx context.Context, command string, resolved *stepState) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	slog.Debug("run", "command", command, "shell", resolved.shell)

	result, err := e.ctr.Exec(ctx, resolved.shell, command, resolved.environ(), resolved.workdir)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return zerr.Wrap(ErrBuildFailed, fmt.Sprintf("exit code %d: %s", result.ExitCode, result.Stderr))
	}
	return nil
}

// Restores a cached layer into the container, if an entry exists for the key.
func (e *stageExec) restoreLayer(ctx context.Context, key, path string) (bool, error) {
	entry, ok, err := e.layers.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer entry.Close()

	destDir := filepath.Dir(path)
	if err := e.ctr.MkdirAll(ctx, destDir); err != nil {
		return false, err
	}
	if err := e.ctr.CopyTo(ctx, entry, destDir); err != nil {
		return false, err
	}

	slog.Info("layer cache hit", "key", key, "path", path)
	return true, nil
}

// Archives a container path into the layer cache.
//
// A missing path is not an error; the command may legitimately produce
// nothing (e.g., no dependencies to fetch), in which case there is nothing
// to cache.
func (e *stageExec) storeLayer(ctx context.Context, key, path string) error {
	exists, err := e.ctr.PathExists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		slog.Debug("cache path absent after run, skipping store", "path", path)
		return nil
	}

	pr, pw := io.Pipe()

	// A failed archive must propagate through the pipe so the store
	// discards the staged entry instead of committing a truncated tar.
	go func() {
		pw.CloseWithError(e.ctr.CopyFrom(ctx, pw, path))
	}()

	if err := e.layers.Put(key, pr); err != nil {
		return errors.Join(ErrCopy, err)
	}

	slog.Debug("layer cached", "key", key, "path", path)
	return nil
}
