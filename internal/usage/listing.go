package usage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/cruciblehq/cruxslim/internal/pathset"
)

// Returns the directories listed and reduced when none are configured.
func DefaultRoots() []string {
	return []string{"/usr", "/lib", "/var", "/root", "/sbin", "/bin"}
}

// Lists every regular file under the given roots of a filesystem.
//
// Paths are returned as absolute in-root paths. Directories, symlinks,
// devices and sockets are never listed, and symlinks are never followed. A
// root that is itself a symlink (a merged /lib -> usr/lib, for instance)
// contributes nothing, since its files are reached through the real
// directory. Missing roots and unreadable subdirectories are skipped.
func List(root string, roots []string) (pathset.Set, error) {
	root = rootDir(root)

	var files []string
	for _, r := range roots {
		dir := filepath.Join(root, filepath.FromSlash(r))

		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == dir && errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				slog.Debug("skipping unreadable entry", "path", p, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			rel, err := inRoot(root, p)
			if err != nil {
				return err
			}
			files = append(files, rel)
			return nil
		})
		if err != nil {
			return pathset.Set{}, fmt.Errorf("%w: %s: %w", ErrListing, r, err)
		}
	}

	return pathset.New(files...), nil
}
