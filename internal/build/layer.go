package build

import (
	"archive/tar"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Digests and size produced while compressing a layer.
type layerDigests struct {
	uncompressed digest.Digest // Diff ID.
	compressed   digest.Digest // Blob digest.
	size         int64         // Compressed size in bytes.
}

// Re-archives a tar stream under a destination directory and gzips it.
//
// Entry headers and contents are preserved; only names (and hardlink
// targets) are moved below dest. The uncompressed and compressed digests
// are computed in the same pass.
func compressLayer(dst io.Writer, src io.Reader, dest string) (layerDigests, error) {
	compressed := digest.SHA256.Digester()
	counter := &countingWriter{}

	gz := gzip.NewWriter(io.MultiWriter(dst, compressed.Hash(), counter))

	uncompressed := digest.SHA256.Digester()
	tw := tar.NewWriter(io.MultiWriter(gz, uncompressed.Hash()))

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return layerDigests{}, err
		}

		hdr.Name = relocate(hdr.Name, dest)
		if hdr.Typeflag == tar.TypeLink {
			hdr.Linkname = relocate(hdr.Linkname, dest)
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return layerDigests{}, err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return layerDigests{}, err
		}
	}

	if err := tw.Close(); err != nil {
		return layerDigests{}, err
	}
	if err := gz.Close(); err != nil {
		return layerDigests{}, err
	}

	return layerDigests{
		uncompressed: uncompressed.Digest(),
		compressed:   compressed.Digest(),
		size:         counter.n,
	}, nil
}

// Moves an archive entry name below dest, keeping it relative.
//
// Directory entries keep their trailing slash.
func relocate(name, dest string) string {
	rel := strings.TrimPrefix(path.Clean("/"+path.Join(dest, name)), "/")
	if rel == "" {
		return "./"
	}
	if strings.HasSuffix(name, "/") {
		rel += "/"
	}
	return rel
}

// Returns the layer media type matching a base image's manifest format.
func layerMediaType(targetType, manifestType string) string {
	if targetType == images.MediaTypeDockerSchema2Manifest || manifestType == images.MediaTypeDockerSchema2Manifest {
		return images.MediaTypeDockerSchema2LayerGzip
	}
	return ocispec.MediaTypeImageLayerGzip
}

// Counts bytes written through it.
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
