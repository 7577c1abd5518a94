package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/cache"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
	"github.com/kilnhq/kilnd/internal/server"
)

// Represents the 'kilnd build' command.
//
// Executes a recipe directly against containerd, without going through a
// running daemon.
type BuildCmd struct {
	File      string        `short:"f" help:"Recipe file path. Defaults to kiln.yaml in the project root." placeholder:"PATH"`
	Root      string        `help:"Project root for resolving copy sources." default:"." type:"existingdir"`
	Output    string        `short:"o" help:"Output directory for the exported image." default:"dist"`
	Resource  string        `help:"Resource name used to scope container IDs. Defaults to the root directory name." placeholder:"NAME"`
	Platform  []string      `help:"Target platform (e.g. linux/amd64). Repeatable. Defaults to the host platform."`
	NoCache   bool          `help:"Bypass the dependency-layer cache."`
	Timeout   time.Duration `help:"Per run-step timeout (e.g. 10m). Zero disables the timeout."`
	Address   string        `help:"Containerd socket address." placeholder:"PATH"`
	Namespace string        `help:"Containerd namespace." placeholder:"NAME"`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return err
	}

	file := c.File
	if file == "" {
		file = filepath.Join(root, manifest.DefaultFilename)
	}

	recipe, err := manifest.Load(file)
	if err != nil {
		return err
	}

	address := c.Address
	if address == "" {
		address = server.DefaultContainerdAddress
	}
	namespace := c.Namespace
	if namespace == "" {
		namespace = server.DefaultContainerdNamespace
	}

	rt, err := runtime.New(address, namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	resource := c.Resource
	if resource == "" {
		resource = filepath.Base(root)
	}

	var layers *cache.Store
	if !c.NoCache {
		layers = cache.NewStore(paths.LayerCache())
	}

	result, err := build.Run(ctx, rt, build.Options{
		Recipe:    recipe,
		Resource:  resource,
		Output:    c.Output,
		Root:      root,
		Platforms: c.Platform,
		Layers:    layers,
		Timeout:   c.Timeout,
	})
	if err != nil {
		return err
	}

	slog.Info("build complete", "output", result.Output)
	return nil
}
