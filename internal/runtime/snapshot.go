package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/mount"
	"github.com/containerd/containerd/v2/pkg/archive"
	"github.com/google/uuid"
	"github.com/opencontainers/image-spec/identity"
)

// Writes the container's complete filesystem to w as a tar stream.
//
// The container's snapshot is mounted read-only in a temporary location,
// so the export reflects every change made while it ran, deletions
// included. The container must not be running.
func (c *Container) ExportFilesystem(ctx context.Context, w io.Writer) error {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	info, err := ctr.Info(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	mounts, err := c.client.SnapshotService(info.Snapshotter).Mounts(ctx, info.SnapshotKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	if err := writeFilesystem(ctx, mounts, w); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExport, c.id, err)
	}

	slog.Debug("container filesystem exported", "id", c.id)
	return nil
}

// Writes an image's complete root filesystem to w as a tar stream.
//
// A temporary read-only view of the image's top snapshot is created and
// removed when the export completes. The image must be unpacked.
func (rt *Runtime) ExportFilesystem(ctx context.Context, image containerd.Image, w io.Writer) error {
	ctx, done, err := rt.client.WithLease(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	defer done(context.WithoutCancel(ctx))

	diffIDs, err := image.RootFS(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	sn := rt.client.SnapshotService(rt.snapshotter)
	key := viewKey()

	mounts, err := sn.View(ctx, key, identity.ChainID(diffIDs).String())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	defer func() {
		if err := sn.Remove(context.WithoutCancel(ctx), key); err != nil {
			slog.Warn("failed to remove snapshot view", "key", key, "error", err)
		}
	}()

	if err := writeFilesystem(ctx, mounts, w); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExport, image.Name(), err)
	}

	slog.Debug("image filesystem exported", "image", image.Name())
	return nil
}

// Mounts a snapshot read-only and archives its whole tree.
//
// An empty lower directory makes the diff a full listing of the mount.
func writeFilesystem(ctx context.Context, mounts []mount.Mount, w io.Writer) error {
	return mount.WithReadonlyTempMount(ctx, mounts, func(root string) error {
		return archive.WriteDiff(ctx, w, "", root)
	})
}

// Returns a unique snapshot key for a temporary view.
func viewKey() string {
	return "cruxslim-view-" + uuid.NewString()
}
