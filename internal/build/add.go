package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Executes an ADD of a local tar archive as a new layer.
//
// The archive's entries are placed under the destination directory. The
// compressed layer is staged in the build context before being handed to the
// layer store and removed afterwards.
func (b *builder) executeAdd(ctx context.Context, args string) (layer, error) {
	src, dest, err := parseAdd(args, b.state.config.WorkingDir)
	if err != nil {
		return layer{}, fmt.Errorf("%w: %w", ErrAdd, err)
	}

	if !filepath.IsAbs(src) {
		src = filepath.Join(b.context, src)
	}

	in, err := os.Open(src)
	if err != nil {
		return layer{}, fmt.Errorf("%w: %w", ErrAdd, err)
	}
	defer in.Close()

	staged, err := os.CreateTemp(b.context, "layer-*.tar.gz")
	if err != nil {
		return layer{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer os.Remove(staged.Name())
	defer staged.Close()

	digests, err := compressLayer(staged, in, dest)
	if err != nil {
		return layer{}, fmt.Errorf("%w: %s: %w", ErrAdd, src, err)
	}

	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return layer{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	l := layer{
		desc: ocispec.Descriptor{
			MediaType: b.mediaType,
			Digest:    digests.compressed,
			Size:      digests.size,
		},
		diffID: digests.uncompressed,
	}

	if err := b.store.WriteLayer(ctx, staged, l.desc, l.diffID); err != nil {
		return layer{}, fmt.Errorf("%w: %w", ErrAdd, err)
	}

	slog.Debug("layer added", "src", src, "dest", dest, "digest", l.desc.Digest, "size", l.desc.Size)
	return l, nil
}

// Parses ADD arguments into source and destination paths.
//
// The arguments must contain exactly two whitespace-separated tokens. If
// dest is not absolute, it is joined with workdir (or "/"). Remote sources are not
// supported.
func parseAdd(s, workdir string) (src, dest string, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected source and destination, got %q", s)
	}

	src = parts[0]
	dest = parts[1]

	if strings.Contains(src, "://") {
		return "", "", fmt.Errorf("%w: remote source %q", ErrUnsupported, src)
	}

	if !path.IsAbs(dest) {
		dest = path.Join("/", workdir, dest)
	}

	return src, path.Clean(dest), nil
}

// A layer added on top of the base image.
type layer struct {
	desc   ocispec.Descriptor // Compressed blob descriptor.
	diffID digest.Digest      // Digest of the uncompressed tar.
}
