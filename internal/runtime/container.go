package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Capability needed to trace processes inside a container.
const CapSysPtrace = "CAP_SYS_PTRACE"

// Primary process and environment of a container.
type ContainerSpec struct {
	Args         []string // Primary process argv. Overrides the image entrypoint and command.
	Env          []string // "KEY=value" entries merged over the image environment.
	Mounts       []Mount  // Host paths bound into the container.
	Tmpfs        []string // Container paths backed by a fresh tmpfs.
	Capabilities []string // Capabilities added to the default set.
}

// A read-only or read-write bind mount from the host.
type Mount struct {
	Source   string // Host path.
	Target   string // Path inside the container.
	ReadOnly bool
}

// A single-use container backed by containerd.
type Container struct {
	client      *containerd.Client // Containerd client for managing the container.
	id          string             // Unique identifier for the container, used as the containerd container ID.
	platform    string             // OCI platform (e.g., "linux/amd64").
	snapshotter string             // Snapshotter holding the container's filesystem.
}

// Creates a container from an image with a fresh snapshot.
//
// Any existing container with the same ID is removed first. The container
// is not started; [Container.Run] starts its primary process.
func (rt *Runtime) NewContainer(ctx context.Context, image containerd.Image, id string, spec ContainerSpec) (*Container, error) {
	c := &Container{
		client:      rt.client,
		id:          id,
		platform:    rt.platform,
		snapshotter: rt.snapshotter,
	}

	// Remove any stale container from a previous run with the same ID.
	c.remove(ctx)

	if _, err := c.create(ctx, image, spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("container created", "id", id, "image", image.Name())
	return c, nil
}

// Returns the container ID.
func (c *Container) ID() string {
	return c.id
}

// Creates the containerd container with the given process configuration.
func (c *Container) create(ctx context.Context, image containerd.Image, spec ContainerSpec) (containerd.Container, error) {
	opts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(c.platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
		oci.WithMounts(specMounts(spec)),
	}
	if len(spec.Args) > 0 {
		opts = append(opts, oci.WithProcessArgs(spec.Args...))
	}
	if len(spec.Env) > 0 {
		opts = append(opts, oci.WithEnv(spec.Env))
	}
	if len(spec.Capabilities) > 0 {
		opts = append(opts, oci.WithAddedCapabilities(spec.Capabilities))
	}

	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(c.snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(opts...),
	)
}

// Converts bind and tmpfs mounts into OCI mount entries.
func specMounts(spec ContainerSpec) []specs.Mount {
	mounts := make([]specs.Mount, 0, len(spec.Mounts)+len(spec.Tmpfs))
	for _, m := range spec.Mounts {
		options := []string{"rbind"}
		if m.ReadOnly {
			options = append(options, "ro")
		} else {
			options = append(options, "rw")
		}
		mounts = append(mounts, specs.Mount{
			Type:        "bind",
			Source:      m.Source,
			Destination: m.Target,
			Options:     options,
		})
	}
	for _, target := range spec.Tmpfs {
		mounts = append(mounts, specs.Mount{
			Type:        "tmpfs",
			Source:      "tmpfs",
			Destination: target,
			Options:     []string{"nosuid", "nodev", "mode=1777"},
		})
	}
	return mounts
}

// Runs the container's primary process to completion.
//
// Standard output and error are streamed to the given writers, either of
// which may be nil. The task is deleted once the process exits, leaving the
// container and its snapshot in place for export. A non-zero exit code is
// not treated as an error; the caller decides.
func (c *Container) Run(ctx context.Context, stdout, stderr io.Writer) (int, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	task, err := ctr.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, stdout, stderr)))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return awaitProcess(ctx, task)
}

// Starts a process, waits for it to exit, and returns the exit code.
//
// The wait channel is registered before the process starts so a fast exit
// is never missed. The process is always deleted before returning. When the
// context is cancelled the process is killed.
func awaitProcess(ctx context.Context, process containerd.Process) (int, error) {
	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(context.WithoutCancel(ctx))
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := process.Start(ctx); err != nil {
		process.Delete(context.WithoutCancel(ctx))
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	var exitStatus containerd.ExitStatus
	select {
	case exitStatus = <-statusC:
	case <-ctx.Done():
		cleanup := context.WithoutCancel(ctx)
		process.Kill(cleanup, syscall.SIGKILL)
		process.Delete(cleanup, containerd.WithProcessKill)
		return 0, fmt.Errorf("%w: %w", ErrRuntime, ctx.Err())
	}
	process.Delete(ctx)

	code, _, err := exitStatus.Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return int(code), nil
}

// Removes the container and its resources.
//
// The task is killed and the container is removed from containerd along
// with its snapshot. After destruction the handle is invalid.
func (c *Container) Destroy(ctx context.Context) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load container for destruction", "id", c.id, "error", err)
		}
		return
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete container during destruction", "id", c.id, "error", err)
	}
}

// Removes an existing container with this ID, if one exists.
//
// Any running task is killed and the container is deleted along with its
// snapshot. This is a no-op when no container with the ID is found.
func (c *Container) remove(ctx context.Context) {
	existing, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}
