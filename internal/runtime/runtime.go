package runtime

import (
	"context"
	"errors"
	"log/slog"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/platforms"
)

const (

	// Snapshotter used for container filesystems. fuse-overlayfs provides
	// overlay semantics without requiring root privileges (no mount(2)),
	// allowing kilnd to run as a regular user.
	snapshotter = "fuse-overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client *containerd.Client // Containerd client for managing containers and images.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(address, namespace string) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, errors.Join(ErrRuntime, err)
	}
	return &Runtime{client: client}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Pulls a base image and starts a stage container from it.
//
// The image is resolved from its registry reference, its layers for the
// target platform are unpacked into the snapshotter, and a container is
// created with a fresh snapshot. A long-running task (sleep infinity) is
// started so that subsequent Exec calls have a running process to attach
// to. Any existing container with the same ID is removed before the new
// one is created. Building for a platform other than the host requires
// QEMU / binfmt_misc support in the kernel.
//
// A failure to resolve or pull the reference is reported as
// [ErrImageUnavailable] so callers can distinguish an unreachable base
// environment from other runtime faults.
func (rt *Runtime) Provision(ctx context.Context, ref, id, platform string) (*Container, error) {
	image, err := rt.pullImage(ctx, ref, platform)
	if err != nil {
		return nil, errors.Join(ErrImageUnavailable, err)
	}

	c := &Container{
		client:   rt.client,
		id:       id,
		platform: platform,
	}

	// Remove any stale container from a previous build with the same ID.
	c.remove(ctx)

	ctr, err := c.create(ctx, image)
	if err != nil {
		return nil, errors.Join(ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, errors.Join(ErrRuntime, err)
	}

	slog.Debug("container started", "id", id, "image", ref)

	return c, nil
}

// Pulls an image for the target platform and unpacks it.
//
// Pulling an already-present reference is a metadata-only round trip; the
// content store deduplicates layers, so repeated builds from the same base
// are cheap after the first.
func (rt *Runtime) pullImage(ctx context.Context, ref, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	return rt.client.Pull(ctx, ref,
		containerd.WithPlatformMatcher(platforms.Only(p)),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(snapshotter),
	)
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
