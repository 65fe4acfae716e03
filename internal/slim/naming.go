package slim

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/cruxslim/internal/runtime"
)

const (

	// Suffix appended to the tag of a slimmed image.
	slimSuffix = "-slim"

	// Repository host used for images imported from archives.
	localDomain = "localhost"
)

// Characters not allowed in a repository path component.
var invalidComponent = regexp.MustCompile(`[^a-z0-9]+`)

// Normalizes an image reference.
//
// Paths to existing archives are returned unchanged. Registry references
// are expanded to their fully qualified form with "latest" as the default
// tag ("nginx" becomes "docker.io/library/nginx:latest").
func NormalizeReference(ref string) (string, error) {
	if runtime.IsArchive(ref) {
		return ref, nil
	}
	named, err := reference.ParseDockerRef(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrReference, ref, err)
	}
	return named.String(), nil
}

// Returns the default name of the slimmed image for a normalized reference.
//
// The tag gets a "-slim" suffix. Digest-only references and archives get
// the tag "slim"; archives are named after their file under "localhost/".
func SlimName(ref string) string {
	if runtime.IsArchive(ref) {
		return localDomain + "/" + archiveRepository(ref) + ":slim"
	}

	named, err := reference.ParseDockerRef(ref)
	if err != nil {
		return ref + slimSuffix
	}

	repo := reference.TrimNamed(named).String()
	if tagged, ok := named.(reference.Tagged); ok {
		return repo + ":" + tagged.Tag() + slimSuffix
	}
	return repo + ":slim"
}

// Derives a repository path component from an archive file name.
func archiveRepository(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := strings.Trim(invalidComponent.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if name == "" {
		return "image"
	}
	return name
}

// Returns the file name an image is exported under.
func archiveName(name string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "@", "_")
	return r.Replace(name) + ".tar"
}

// Returns the base image of an image, as far as it can be told.
//
// An explicit reference wins. Otherwise the base name annotation of the
// platform manifest (or its index entry) is used, then a config label of
// the same key. Returns "" when none is set.
func baseHint(explicit string, ic *runtime.ImageContent) string {
	if explicit != "" {
		return explicit
	}
	if name := ic.Annotations()[ocispec.AnnotationBaseImageName]; name != "" {
		return name
	}
	return ic.Config.Config.Labels[ocispec.AnnotationBaseImageName]
}
