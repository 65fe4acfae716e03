package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Snapshotter used when none is configured.
	DefaultSnapshotter = "overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Connection settings for a [Runtime].
type Config struct {
	Address     string // Containerd socket path.
	Namespace   string // Containerd namespace scoping every operation.
	Snapshotter string // Snapshotter for unpacked images and containers. Empty uses [DefaultSnapshotter].
	Platform    string // Target platform, e.g. "linux/amd64". Empty uses the host platform.
}

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client      *containerd.Client // Containerd client for managing containers and images.
	snapshotter string             // Snapshotter for unpacking and container filesystems.
	platform    string             // OCI platform every image is resolved for.
}

// Creates a runtime connected to the containerd socket at the configured
// address.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(cfg Config) (*Runtime, error) {
	if cfg.Snapshotter == "" {
		cfg.Snapshotter = DefaultSnapshotter
	}
	if cfg.Platform == "" {
		cfg.Platform = defaultPlatform()
	}
	if _, err := platforms.Parse(cfg.Platform); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	client, err := containerd.New(cfg.Address, containerd.WithDefaultNamespace(cfg.Namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return &Runtime{
		client:      client,
		snapshotter: cfg.Snapshotter,
		platform:    cfg.Platform,
	}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Returns the platform images are resolved for.
func (rt *Runtime) Platform() string {
	return rt.platform
}

// Resolves an image reference and makes sure it is unpacked.
//
// A reference naming an existing file is treated as an OCI archive: it is
// imported and tagged under a name derived from its path. Any other
// reference is looked up in the image store and pulled when absent.
func (rt *Runtime) Image(ctx context.Context, ref string) (containerd.Image, error) {
	name := ref
	if IsArchive(ref) {
		name = imageTag(ref)
		if err := rt.importImage(ctx, ref, name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
		}
	}

	image, err := rt.resolveImage(ctx, name)
	if errdefs.IsNotFound(err) {
		image, err = rt.pullImage(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, ref, err)
	}

	if err := rt.unpackImage(ctx, image); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, ref, err)
	}

	return image, nil
}

// Imports an OCI archive and tags it under the given name.
func (rt *Runtime) importImage(ctx context.Context, path, tag string) error {
	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return err
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return err
	}

	slog.Debug("image imported", "path", path, "tag", tag)
	return nil
}

// Imports an OCI archive into the content store.
//
// The archive must contain exactly one image. Multi-platform archives
// are supported (single OCI index with per-platform manifests).
func (rt *Runtime) importArchive(ctx context.Context, path string) (images.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return images.Image{}, err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return images.Image{}, err
	}

	// A multi-platform archive has a single entry whose target is an index;
	// platform selection happens in resolveImage.
	if len(imported) == 0 {
		return images.Image{}, ErrEmptyArchive
	} else if len(imported) > 1 {
		return images.Image{}, ErrMultipleImages
	}

	return imported[0], nil
}

// Records an image under a name, replacing any previous target.
//
// Removes the source record when its name differs from the tag to avoid
// duplicates.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	if err := rt.setImage(ctx, tag, source.Target); err != nil {
		return err
	}

	if source.Name != "" && source.Name != tag {
		_ = rt.client.ImageService().Delete(ctx, source.Name)
	}

	return nil
}

// Creates or updates the image record for name.
func (rt *Runtime) setImage(ctx context.Context, name string, target ocispec.Descriptor) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   name,
		Target: target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}
	return nil
}

// Pulls an image for the runtime's platform, unpacking it as it lands.
func (rt *Runtime) pullImage(ctx context.Context, ref string) (containerd.Image, error) {
	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return nil, err
	}

	slog.Info("pulling image", "ref", ref, "platform", rt.platform)

	return rt.client.Pull(ctx, ref,
		containerd.WithPlatformMatcher(platforms.Only(p)),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(rt.snapshotter),
	)
}

// Unpacks the image layers into the snapshotter unless already done.
func (rt *Runtime) unpackImage(ctx context.Context, image containerd.Image) error {
	unpacked, err := image.IsUnpacked(ctx, rt.snapshotter)
	if err != nil {
		return err
	}
	if unpacked {
		return nil
	}

	slog.Debug("unpacking image", "image", image.Name(), "snapshotter", rt.snapshotter)
	return image.Unpack(ctx, rt.snapshotter)
}

// Looks up a tagged image and selects the manifest for the runtime's
// platform.
func (rt *Runtime) resolveImage(ctx context.Context, name string) (containerd.Image, error) {
	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, name)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Protects content written under the returned context from garbage
// collection until done is called.
func (rt *Runtime) WithLease(ctx context.Context) (context.Context, func(context.Context) error, error) {
	ctx, done, err := rt.client.WithLease(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return ctx, done, nil
}

// Reports whether a reference names a regular file on disk, which is then
// treated as an OCI archive rather than a registry reference.
func IsArchive(ref string) bool {
	info, err := os.Stat(ref)
	return err == nil && info.Mode().IsRegular()
}

// Produces a containerd image tag from an archive path.
//
// The path is hashed to produce a tag that is always valid for OCI references
// regardless of which characters the path contains.
func imageTag(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("import/%s:latest", hex.EncodeToString(h[:]))
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
