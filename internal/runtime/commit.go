package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Records a new image derived from a base image.
//
// The base's platform manifest and config are read, mutate is applied to
// them, and the results are written to the content store as new blobs.
// When the base was resolved through an index, a new single-entry index is
// written for the updated manifest. The new image is recorded under name,
// replacing any previous image with that name, and unpacked. The base image
// record is never modified.
//
// Blobs referenced by mutate (new layers) must already be in the content
// store, and ctx should carry a lease protecting them.
func (rt *Runtime) Commit(ctx context.Context, base containerd.Image, name string, mutate func(*ocispec.Manifest, *ocispec.Image)) (containerd.Image, error) {
	ic, err := rt.ReadImage(ctx, base)
	if err != nil {
		return nil, err
	}

	mutate(&ic.Manifest, &ic.Config)

	configDesc, err := rt.writeBlob(ctx, ic.Manifest.Config.MediaType, ic.Config, name+"-config")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	ic.Manifest.Config = configDesc

	manifestDesc, err := rt.writeBlob(ctx, ic.Target.MediaType, ic.Manifest, name+"-manifest", content.WithLabels(manifestGCLabels(ic.Manifest)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	manifestDesc.Platform = ic.Target.Platform

	target, err := rt.buildImageTarget(ctx, ic.Root, ic.Index, manifestDesc, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.setImage(ctx, name, target); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	image, err := rt.resolveImage(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.unpackImage(ctx, image); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, name, err)
	}

	slog.Debug("image committed", "name", name, "digest", target.Digest)
	return image, nil
}

// Produces the final image target descriptor after a manifest update.
//
// When the image was resolved through an index, a new single-entry index is
// written containing only the updated manifest. Entries for other platforms
// are dropped because their layer blobs are typically not present in the
// content store (only the target platform's layers are fetched).
func (rt *Runtime) buildImageTarget(ctx context.Context, root ocispec.Descriptor, index *ocispec.Index, newManifest ocispec.Descriptor, imageName string) (ocispec.Descriptor, error) {
	if index == nil {
		return newManifest, nil
	}

	out := *index
	out.Manifests = []ocispec.Descriptor{newManifest}
	return rt.writeBlob(ctx, root.MediaType, out, imageName+"-index", content.WithLabels(indexGCLabels(out)))
}

// Writes an image to an OCI tar archive at the given path.
//
// The image name is attached as the OCI reference annotation on the archive
// entry. Only the manifest matching the runtime's platform is included.
func (rt *Runtime) ExportImage(ctx context.Context, image containerd.Image, path string) (err error) {
	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrRuntime, cerr)
		}
	}()

	if err := rt.client.Export(ctx, f,
		archive.WithManifest(image.Target(), image.Name()),
		archive.WithPlatform(platforms.Only(p)),
	); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Info("image exported", "path", path)
	return nil
}

// Computes containerd GC reference labels for a manifest's children.
//
// These labels allow containerd's garbage collector to trace reachability
// from the manifest blob to its config and layer blobs.
func manifestGCLabels(m ocispec.Manifest) map[string]string {
	labels := map[string]string{
		"containerd.io/gc.ref.content.config": m.Config.Digest.String(),
	}
	for i, layer := range m.Layers {
		key := fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)
		labels[key] = layer.Digest.String()
	}
	return labels
}

// Computes containerd GC reference labels for an index's children.
func indexGCLabels(idx ocispec.Index) map[string]string {
	labels := make(map[string]string, len(idx.Manifests))
	for i, m := range idx.Manifests {
		key := fmt.Sprintf("containerd.io/gc.ref.content.m.%d", i)
		labels[key] = m.Digest.String()
	}
	return labels
}
