package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/cruxslim/internal/recipe"
	"github.com/cruciblehq/cruxslim/internal/runtime"
)

// Controls recipe execution.
type Options struct {
	Recipe  *recipe.Recipe // Recipe to execute.
	Context string         // Directory ADD sources are resolved against.
	Name    string         // Name the new image is recorded under.
	Output  string         // Path of an OCI archive to export the image to. Empty skips the export.
}

// Returned after successful recipe execution.
type Result struct {
	Name   string        // Name of the committed image.
	Digest digest.Digest // Digest of the committed image's target.
	Layers int           // Layers added on top of the base image.
	Output string        // Path of the exported archive, if any.
}

// Executes a recipe against the container runtime.
//
// The base image named by FROM is resolved (pulled when absent), the
// instructions are applied in order, and the result is committed under the
// configured name. Content written along the way is protected by a lease
// until the image record references it.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	from, err := opts.Recipe.BaseImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	slog.Info("executing recipe",
		"name", opts.Name,
		"base", from,
		"instructions", len(opts.Recipe.Instructions),
	)

	ctx, done, err := rt.WithLease(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	defer done(context.WithoutCancel(ctx))

	base, err := rt.Image(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	ic, err := rt.ReadImage(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	b := newBuilder(rt, opts.Context, ic)
	if err := b.execute(ctx, opts.Recipe.Instructions); err != nil {
		return nil, err
	}

	img, err := rt.Commit(ctx, base, opts.Name, b.mutate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	res := &Result{
		Name:   img.Name(),
		Digest: img.Target().Digest,
		Layers: len(b.layers),
	}

	if opts.Output != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		if err := rt.ExportImage(ctx, img, opts.Output); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}
		res.Output = opts.Output
	}

	slog.Info("image built", "name", res.Name, "digest", res.Digest, "layers", res.Layers)

	return res, nil
}

// Accepts layer blobs produced by ADD instructions.
type layerStore interface {
	WriteLayer(ctx context.Context, r io.Reader, desc ocispec.Descriptor, diffID digest.Digest) error
}

// Holds the state accumulated while executing a recipe.
type builder struct {
	store     layerStore        // Destination for new layer blobs.
	context   string            // Directory ADD sources are resolved against.
	mediaType string            // Media type of new layers, matching the base manifest.
	state     *imageState       // Image config as modified so far.
	layers    []layer           // Layers added so far, in order.
	history   []ocispec.History // History entries for every executed instruction.
	froms     int               // FROM instructions seen.
	now       func() time.Time  // Clock for history and creation timestamps.
}

// Creates a [builder] starting from a base image's config.
func newBuilder(store layerStore, buildCtx string, base *runtime.ImageContent) *builder {
	return &builder{
		store:     store,
		context:   buildCtx,
		mediaType: layerMediaType(base.Target.MediaType, base.Manifest.MediaType),
		state:     newImageState(base.Config.Config),
		now:       time.Now,
	}
}

// Applies the builder's results to the base manifest and config.
func (b *builder) mutate(manifest *ocispec.Manifest, config *ocispec.Image) {
	created := b.now().UTC()

	for _, l := range b.layers {
		manifest.Layers = append(manifest.Layers, l.desc)
		config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, l.diffID)
	}

	config.Config = b.state.config
	if b.state.author != "" {
		config.Author = b.state.author
	}
	config.Created = &created
	config.History = append(config.History, b.history...)
}
