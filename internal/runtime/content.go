package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Content-store label recording a compressed layer's uncompressed digest.
const uncompressedLabel = "containerd.io/uncompressed"

// Manifest and config of an image for the runtime's platform.
type ImageContent struct {
	Root     ocispec.Descriptor // Descriptor of the image record's target.
	Index    *ocispec.Index     // Index the manifest was selected from. Nil when Root is a manifest.
	Target   ocispec.Descriptor // Descriptor of the platform manifest.
	Manifest ocispec.Manifest
	Config   ocispec.Image
}

// Reads the platform manifest and config of an image.
func (rt *Runtime) ReadImage(ctx context.Context, image containerd.Image) (*ImageContent, error) {
	root := image.Target()

	target, index, _, err := rt.resolveManifestDescriptor(ctx, root, image.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	manifest, err := rt.readManifest(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return &ImageContent{
		Root:     root,
		Index:    index,
		Target:   target,
		Manifest: manifest,
		Config:   config,
	}, nil
}

// Returns the annotations of the image's platform manifest merged over
// those of its index entry.
func (ic *ImageContent) Annotations() map[string]string {
	merged := make(map[string]string)
	if ic.Index != nil {
		maps.Copy(merged, ic.Index.Annotations)
	}
	maps.Copy(merged, ic.Target.Annotations)
	maps.Copy(merged, ic.Manifest.Annotations)
	return merged
}

// Writes a compressed layer blob to the content store.
//
// The blob is labelled with its uncompressed digest so unpacking does not
// need to decompress it again to verify the diff ID.
func (rt *Runtime) WriteLayer(ctx context.Context, r io.Reader, desc ocispec.Descriptor, diffID digest.Digest) error {
	labels := map[string]string{uncompressedLabel: diffID.String()}
	ref := "layer-" + desc.Digest.Encoded()

	if err := content.WriteBlob(ctx, rt.client.ContentStore(), ref, r, desc, content.WithLabels(labels)); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return nil
}

// Resolves the image root descriptor to a platform-specific manifest.
//
// If the root is an OCI Image Index, the index is read and walked to find
// the manifest matching the runtime's platform. Returns the manifest
// descriptor, the index (nil when the root is already a manifest), and the
// position of the manifest within the index.
//
// Some registries (notably Docker Hub) serve index entries without explicit
// platform metadata. When a descriptor lacks a platform field, the manifest
// and its config are read to extract the platform from the image config, the
// same fallback that containerd's images.Manifest uses internally.
func (rt *Runtime) resolveManifestDescriptor(ctx context.Context, root ocispec.Descriptor, imageName string) (ocispec.Descriptor, *ocispec.Index, int, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil, 0, nil
	}

	idx, err := rt.readIndex(ctx, root)
	if err != nil {
		return ocispec.Descriptor{}, nil, 0, err
	}

	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return ocispec.Descriptor{}, nil, 0, err
	}

	i, ok := rt.matchManifest(ctx, idx, platforms.OnlyStrict(p))
	if ok {
		return idx.Manifests[i], &idx, i, nil
	}

	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, nil, 0, fmt.Errorf("%w: %s", ErrEmptyIndex, imageName)
	}
	return idx.Manifests[0], &idx, 0, nil
}

// Searches the index for a manifest matching the given platform.
//
// Descriptors with an explicit platform field are checked first. If none
// match, descriptors without a platform field are probed by reading the
// image config to discover the platform.
func (rt *Runtime) matchManifest(ctx context.Context, idx ocispec.Index, matcher platforms.MatchComparer) (int, bool) {
	for i, m := range idx.Manifests {
		if m.Platform != nil && matcher.Match(*m.Platform) {
			return i, true
		}
	}
	for i, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if p, ok := rt.configPlatform(ctx, m); ok && matcher.Match(p) {
			return i, true
		}
	}
	return 0, false
}

// Reads the image config referenced by a manifest descriptor and returns the
// platform declared in the config.
func (rt *Runtime) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	manifest, err := rt.readManifest(ctx, desc)
	if err != nil {
		return ocispec.Platform{}, false
	}
	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return ocispec.Platform{}, false
	}
	return ocispec.Platform{
		OS:           config.OS,
		Architecture: config.Architecture,
		Variant:      config.Variant,
	}, true
}

// Loads an OCI manifest from the content store.
func (rt *Runtime) readManifest(ctx context.Context, desc ocispec.Descriptor) (ocispec.Manifest, error) {
	var m ocispec.Manifest
	return m, rt.readJSON(ctx, desc, &m)
}

// Loads an OCI image index from the content store.
func (rt *Runtime) readIndex(ctx context.Context, desc ocispec.Descriptor) (ocispec.Index, error) {
	var idx ocispec.Index
	return idx, rt.readJSON(ctx, desc, &idx)
}

// Loads an OCI image config from the content store.
func (rt *Runtime) readConfig(ctx context.Context, desc ocispec.Descriptor) (ocispec.Image, error) {
	var img ocispec.Image
	return img, rt.readJSON(ctx, desc, &img)
}

// Reads a blob and decodes it as JSON into v.
func (rt *Runtime) readJSON(ctx context.Context, desc ocispec.Descriptor, v any) error {
	b, err := content.ReadBlob(ctx, rt.client.ContentStore(), desc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Serializes a value and writes it to the content store, returning the
// descriptor that references the stored blob.
func (rt *Runtime) writeBlob(ctx context.Context, mediaType string, v any, ref string, opts ...content.Opt) (ocispec.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}
	if err := content.WriteBlob(ctx, rt.client.ContentStore(), ref, bytes.NewReader(b), desc, opts...); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}
