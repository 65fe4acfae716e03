package usage

import (
	"os"
	"path/filepath"
	"testing"
)

// Filesystem entry created by buildTree. Exactly one of the fields is used.
type entry struct {
	content string // Regular file content.
	link    string // Symlink target.
	dir     bool   // Empty directory.
}

// Creates a filesystem tree under a temporary root and returns the root.
func buildTree(t *testing.T, entries map[string]entry) string {
	t.Helper()

	root := t.TempDir()
	for name, e := range entries {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}

		var err error
		switch {
		case e.dir:
			err = os.MkdirAll(full, 0755)
		case e.link != "":
			err = os.Symlink(e.link, full)
		default:
			err = os.WriteFile(full, []byte(e.content), 0644)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// Reports whether an in-root path exists, without following symlinks.
func exists(root, p string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(p)))
	return err == nil
}
