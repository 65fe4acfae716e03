package runtime

import (
	"slices"
	"strings"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

func TestSpecMounts(t *testing.T) {
	spec := ContainerSpec{
		Mounts: []Mount{
			{Source: "/usr/local/bin/cruxslim", Target: "/.cruxslim", ReadOnly: true},
			{Source: "/srv/data", Target: "/data"},
		},
		Tmpfs: []string{"/.scratch"},
	}

	got := specMounts(spec)

	want := []specs.Mount{
		{Type: "bind", Source: "/usr/local/bin/cruxslim", Destination: "/.cruxslim", Options: []string{"rbind", "ro"}},
		{Type: "bind", Source: "/srv/data", Destination: "/data", Options: []string{"rbind", "rw"}},
		{Type: "tmpfs", Source: "tmpfs", Destination: "/.scratch", Options: []string{"nosuid", "nodev", "mode=1777"}},
	}
	if len(got) != len(want) {
		t.Fatalf("len(mounts) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i].Type || got[i].Source != want[i].Source || got[i].Destination != want[i].Destination {
			t.Fatalf("mounts[%d] = %+v, want %+v", i, got[i], want[i])
		}
		if !slices.Equal(got[i].Options, want[i].Options) {
			t.Fatalf("mounts[%d].Options = %v, want %v", i, got[i].Options, want[i].Options)
		}
	}
}

func TestSpecMountsEmpty(t *testing.T) {
	if got := specMounts(ContainerSpec{}); len(got) != 0 {
		t.Fatalf("specMounts() = %v, want none", got)
	}
}

func TestViewKey(t *testing.T) {
	a, b := viewKey(), viewKey()
	if a == b {
		t.Fatalf("viewKey returned duplicate: %q", a)
	}
	if !strings.HasPrefix(a, "cruxslim-view-") {
		t.Fatalf("viewKey = %q, want cruxslim-view- prefix", a)
	}
}
