package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
)

func TestRun(t *testing.T) {
	got := Run("abc")
	if filepath.Dir(got) != Runs() {
		t.Fatalf("Run() = %q, want a child of %q", got, Runs())
	}
	if filepath.Base(got) != "abc" {
		t.Fatalf("Run() = %q, want base abc", got)
	}
	if !strings.HasPrefix(Runs(), xdg.CacheHome) {
		t.Fatalf("Runs() = %q, want below %q", Runs(), xdg.CacheHome)
	}
}

func TestConfigFile(t *testing.T) {
	got := ConfigFile()
	if filepath.Base(got) != "config.toml" {
		t.Fatalf("ConfigFile() = %q, want config.toml", got)
	}
	if filepath.Base(filepath.Dir(got)) != "cruxslim" {
		t.Fatalf("ConfigFile() = %q, want a cruxslim directory", got)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()

	if got := FindConfigFile(); got != "" {
		t.Fatalf("FindConfigFile() = %q, want none", got)
	}

	want := filepath.Join(dir, "cruxslim", "config.toml")
	if err := os.MkdirAll(filepath.Dir(want), DefaultDirMode); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(want, nil, DefaultFileMode); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(); got != want {
		t.Fatalf("FindConfigFile() = %q, want %q", got, want)
	}
}
