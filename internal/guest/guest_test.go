package guest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cruciblehq/cruxslim/internal/usage"
)

// Creates a small container-like filesystem under a temporary root.
func guestRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"usr/bin/app":       "app",
		"usr/bin/extra":     "extra",
		"usr/lib/libc.so.6": "libc",
		"var/lib/cache.db":  "cache",
		"etc/app/config":    "cfg",
	}
	for name, content := range files {
		full := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("libc.so.6", filepath.Join(root, "usr/lib/libc.so")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/etc/app/config", filepath.Join(root, "usr/bin/app.conf")); err != nil {
		t.Fatal(err)
	}
	return root
}

// Writes a fake strace that records a fixed trace of the app.
func appStrace(t *testing.T) string {
	t.Helper()
	return fakeStrace(t, `40  execve("/usr/bin/app", ["/usr/bin/app"], 0x0 /* 2 vars */) = 0
40  openat(AT_FDCWD, "/usr/lib/libc.so", O_RDONLY|O_CLOEXEC) = 3
40  openat(AT_FDCWD, "/usr/bin/app.conf", O_RDONLY) = 4
40  openat(AT_FDCWD, "/usr/lib/libmissing.so", O_RDONLY) = -1 ENOENT (No such file or directory)
40  +++ exited with 0 +++
`)
}

// Writes a fake strace that writes records to its output file and prints
// "app output".
func fakeStrace(t *testing.T, records string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	path := filepath.Join(t.TempDir(), "strace")
	script := "#!/bin/sh\ncat > \"$6\" <<'TRACE'\n" + records + "TRACE\necho \"app output\"\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	root := guestRoot(t)
	var out bytes.Buffer

	res, err := Run(context.Background(), []string{"--", "/usr/bin/app"}, Options{
		Root:    root,
		Strace:  appStrace(t),
		Scratch: t.TempDir(),
		Output:  &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// app, libc.so.6 and the config behind app.conf.
	if res.Used.Count != 3 {
		t.Fatalf("Used = %+v, want 3 files", res.Used)
	}
	if res.Unused.Count != 2 || res.Removal.Removed != 2 {
		t.Fatalf("Unused = %+v, Removal = %+v, want 2 files removed", res.Unused, res.Removal)
	}

	for _, name := range []string{"usr/bin/app", "usr/lib/libc.so.6", "etc/app/config", "usr/lib/libc.so", "usr/bin/app.conf"} {
		if _, err := os.Lstat(filepath.Join(root, name)); err != nil {
			t.Fatalf("%s was removed: %v", name, err)
		}
	}
	for _, name := range []string{"usr/bin/extra", "var/lib/cache.db"} {
		if _, err := os.Lstat(filepath.Join(root, name)); err == nil {
			t.Fatalf("%s was not removed", name)
		}
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"app output", "Used files: 3 (10B)", "Unused files: 2 (10B)"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("output = %q, want %q", lines, want)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	root := guestRoot(t)

	_, err := Run(context.Background(), []string{"--"}, Options{Root: root, Strace: "/nonexistent/strace"})
	if !errors.Is(err, usage.ErrEmptyUsage) {
		t.Fatalf("error = %v, want ErrEmptyUsage", err)
	}
	if _, err := os.Lstat(filepath.Join(root, "usr/bin/extra")); err != nil {
		t.Fatalf("files were removed despite the guard: %v", err)
	}
}

func TestRunEmptyCommandAllowed(t *testing.T) {
	root := guestRoot(t)

	res, err := Run(context.Background(), nil, Options{Root: root, AllowEmpty: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every listed file goes: the hazard is visible in the summary.
	if res.Used.Count != 0 || res.Unused.Count != 4 || res.Removal.Removed != 4 {
		t.Fatalf("Result = %+v, want every listed file removed", res)
	}
}

func TestRunUnknownResolver(t *testing.T) {
	root := guestRoot(t)

	_, err := Run(context.Background(), []string{"/usr/bin/app"}, Options{
		Root:     root,
		Strace:   appStrace(t),
		Scratch:  t.TempDir(),
		Resolver: "magic",
	})
	if !errors.Is(err, ErrUnknownResolver) {
		t.Fatalf("error = %v, want ErrUnknownResolver", err)
	}
	if _, err := os.Lstat(filepath.Join(root, "usr/bin/extra")); err != nil {
		t.Fatalf("files were removed after a setup failure: %v", err)
	}
}

func TestRunKeepsRelativePaths(t *testing.T) {
	tests := []struct {
		name    string
		workdir string
		records string
		kept    string
		removed string
	}{
		{
			name:    "relative to the default workdir",
			records: `40  openat(AT_FDCWD, "usr/bin/extra", O_RDONLY) = 3` + "\n",
			kept:    "usr/bin/extra",
			removed: "var/lib/cache.db",
		},
		{
			name:    "relative to an explicit workdir",
			workdir: "/usr/bin",
			records: `40  openat(AT_FDCWD, "extra", O_RDONLY) = 3` + "\n",
			kept:    "usr/bin/extra",
			removed: "var/lib/cache.db",
		},
		{
			name:    "relative to a directory descriptor",
			workdir: "/",
			records: `40  openat(5</var/lib>, "cache.db", O_RDONLY) = 6</var/lib/cache.db>` + "\n",
			kept:    "var/lib/cache.db",
			removed: "usr/bin/extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := guestRoot(t)

			res, err := Run(context.Background(), []string{"/usr/bin/app"}, Options{
				Root:    root,
				Strace:  fakeStrace(t, tt.records),
				Scratch: t.TempDir(),
				Workdir: tt.workdir,
				Output:  io.Discard,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Removal.Removed == 0 {
				t.Fatalf("Removal = %+v, want unused files removed", res.Removal)
			}
			if _, err := os.Lstat(filepath.Join(root, tt.kept)); err != nil {
				t.Fatalf("%s was removed: %v", tt.kept, err)
			}
			if _, err := os.Lstat(filepath.Join(root, tt.removed)); err == nil {
				t.Fatalf("%s was not removed", tt.removed)
			}
		})
	}
}
