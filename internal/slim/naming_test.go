package slim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/cruxslim/internal/runtime"
)

func TestNormalizeReference(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"nginx", "docker.io/library/nginx:latest"},
		{"nginx:1.25", "docker.io/library/nginx:1.25"},
		{"ghcr.io/acme/app", "ghcr.io/acme/app:latest"},
		{"localhost:5000/app:dev", "localhost:5000/app:dev"},
		{
			"alpine@sha256:0000000000000000000000000000000000000000000000000000000000000000",
			"docker.io/library/alpine@sha256:0000000000000000000000000000000000000000000000000000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := NormalizeReference(tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeReference(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestNormalizeReferenceInvalid(t *testing.T) {
	for _, ref := range []string{"", "library/UPPER", "nginx:bad tag", "a:b:c"} {
		t.Run(ref, func(t *testing.T) {
			if _, err := NormalizeReference(ref); !errors.Is(err, ErrReference) {
				t.Fatalf("error = %v, want ErrReference", err)
			}
		})
	}
}

func TestNormalizeReferenceArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.tar")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NormalizeReference(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Fatalf("NormalizeReference() = %q, want the archive path", got)
	}
}

func TestSlimName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"docker.io/library/nginx:latest", "docker.io/library/nginx:latest-slim"},
		{"ghcr.io/acme/app:1.2", "ghcr.io/acme/app:1.2-slim"},
		{
			"docker.io/library/alpine@sha256:0000000000000000000000000000000000000000000000000000000000000000",
			"docker.io/library/alpine:slim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := SlimName(tt.ref); got != tt.want {
				t.Fatalf("SlimName(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestSlimNameArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My App_v2.tar")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if got, want := SlimName(path), "localhost/my-app-v2:slim"; got != want {
		t.Fatalf("SlimName() = %q, want %q", got, want)
	}
}

func TestArchiveRepository(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/nginx.tar", "nginx"},
		{"/tmp/App.Image.tar", "app-image"},
		{"/tmp/___.tar", "image"},
		{"rootfs", "rootfs"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := archiveRepository(tt.path); got != tt.want {
				t.Fatalf("archiveRepository(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestArchiveName(t *testing.T) {
	got := archiveName("docker.io/library/nginx:latest-slim")
	if want := "docker.io_library_nginx_latest-slim.tar"; got != want {
		t.Fatalf("archiveName() = %q, want %q", got, want)
	}
}

func TestBaseHint(t *testing.T) {
	withAnnotation := &runtime.ImageContent{
		Manifest: ocispec.Manifest{Annotations: map[string]string{ocispec.AnnotationBaseImageName: "debian:12"}},
	}
	withIndexAnnotation := &runtime.ImageContent{
		Index: &ocispec.Index{},
		Target: ocispec.Descriptor{
			Annotations: map[string]string{ocispec.AnnotationBaseImageName: "ubuntu:24.04"},
		},
	}
	withLabel := &runtime.ImageContent{
		Config: ocispec.Image{Config: ocispec.ImageConfig{
			Labels: map[string]string{ocispec.AnnotationBaseImageName: "alpine:3.19"},
		}},
	}

	tests := []struct {
		name     string
		explicit string
		ic       *runtime.ImageContent
		want     string
	}{
		{"explicit wins", "busybox", withAnnotation, "busybox"},
		{"manifest annotation", "", withAnnotation, "debian:12"},
		{"descriptor annotation", "", withIndexAnnotation, "ubuntu:24.04"},
		{"config label", "", withLabel, "alpine:3.19"},
		{"unknown", "", &runtime.ImageContent{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := baseHint(tt.explicit, tt.ic); got != tt.want {
				t.Fatalf("baseHint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentifyBase(t *testing.T) {
	ic := &runtime.ImageContent{
		Manifest: ocispec.Manifest{Annotations: map[string]string{ocispec.AnnotationBaseImageName: "debian:12"}},
	}
	got, err := identifyBase("", ic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "docker.io/library/debian:12" {
		t.Fatalf("identifyBase() = %q", got)
	}

	if _, err := identifyBase("", &runtime.ImageContent{}); err == nil {
		t.Fatal("expected error for an image without a base, got nil")
	}
}
