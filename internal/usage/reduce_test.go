package usage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cruciblehq/cruxslim/internal/pathset"
)

func systemTree(t *testing.T) string {
	return buildTree(t, map[string]entry{
		"/usr/bin/app":         {content: "app"},
		"/usr/bin/unused":      {content: "unused"},
		"/usr/lib/libc.so":     {content: "libc"},
		"/usr/lib/gconv/x.so":  {content: "gconv"},
		"/usr/share/doc/a.txt": {content: "docs docs docs"},
		"/usr/bin/sh":          {link: "app"},
		"/bin":                 {link: "usr/bin"},
		"/lib":                 {link: "usr/lib"},
		"/var/cache/empty":     {dir: true},
		"/var/log/app.log":     {content: "log"},
		"/etc/app.conf":        {content: "conf"},
		"/app/main":            {content: "main"},
	})
}

func TestList(t *testing.T) {
	root := systemTree(t)

	got, err := List(root, DefaultRoots())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"/usr/bin/app",
		"/usr/bin/unused",
		"/usr/lib/gconv/x.so",
		"/usr/lib/libc.so",
		"/usr/share/doc/a.txt",
		"/var/log/app.log",
	}
	if diff := cmp.Diff(want, got.Paths()); diff != "" {
		t.Fatalf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestListOverlappingRoots(t *testing.T) {
	root := systemTree(t)

	got, err := List(root, []string{"/usr/lib", "/usr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 5 {
		t.Fatalf("List() returned %d files, want 5: %v", got.Len(), got.Paths())
	}
}

func TestPlanComplement(t *testing.T) {
	root := systemTree(t)
	used := pathset.New("/usr/bin/app", "/usr/lib/libc.so", "/etc/app.conf", "/app/main")

	r := &Reducer{Root: root}
	plan, err := r.Plan(used)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !plan.Unused.Intersect(used).Empty() {
		t.Fatalf("unused set intersects used set: %v", plan.Unused.Intersect(used).Paths())
	}
	if !plan.Unused.Union(plan.Listing.Intersect(used)).Equal(plan.Listing) {
		t.Fatalf("unused and used files do not partition the listing")
	}

	want := []string{"/usr/bin/unused", "/usr/lib/gconv/x.so", "/usr/share/doc/a.txt", "/var/log/app.log"}
	if diff := cmp.Diff(want, plan.Unused.Paths()); diff != "" {
		t.Fatalf("Unused mismatch (-want +got):\n%s", diff)
	}

	// Planning never touches the filesystem.
	for _, p := range want {
		if !exists(root, p) {
			t.Fatalf("%s was deleted by Plan", p)
		}
	}
}

func TestReduce(t *testing.T) {
	root := systemTree(t)
	used := pathset.New("/usr/bin/app", "/usr/lib/libc.so", "/etc/app.conf")

	r := &Reducer{Root: root}
	plan, res, err := r.Reduce(used)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Removed != plan.Unused.Len() || res.Failed != 0 || res.Missing != 0 {
		t.Fatalf("Removal = %+v, want %d removed", res, plan.Unused.Len())
	}
	for _, p := range plan.Unused.Paths() {
		if exists(root, p) {
			t.Fatalf("%s was not removed", p)
		}
	}
	for _, p := range []string{"/usr/bin/app", "/usr/lib/libc.so", "/etc/app.conf", "/app/main", "/usr/bin/sh", "/bin"} {
		if !exists(root, p) {
			t.Fatalf("%s was removed", p)
		}
	}
}

func TestApplyIgnoresMissing(t *testing.T) {
	root := systemTree(t)

	r := &Reducer{Root: root}
	res := r.Apply(&Plan{Unused: pathset.New("/usr/bin/unused", "/usr/bin/already-gone")})

	if res.Removed != 1 || res.Missing != 1 || res.Failed != 0 {
		t.Fatalf("Removal = %+v, want 1 removed and 1 missing", res)
	}
}

func TestPlanEmptyUsageGuard(t *testing.T) {
	tests := []struct {
		name string
		used pathset.Set
	}{
		{"empty used set", pathset.Set{}},
		{"nothing under the roots", pathset.New("/etc/app.conf", "/app/main")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := systemTree(t)

			r := &Reducer{Root: root}
			if _, err := r.Plan(tt.used); !errors.Is(err, ErrEmptyUsage) {
				t.Fatalf("error = %v, want ErrEmptyUsage", err)
			}
			if !exists(root, "/usr/bin/unused") {
				t.Fatalf("files were deleted despite the guard")
			}
		})
	}
}

func TestPlanAllowEmpty(t *testing.T) {
	root := systemTree(t)

	r := &Reducer{Root: root, AllowEmpty: true}
	plan, err := r.Plan(pathset.Set{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Unused.Equal(plan.Listing) {
		t.Fatalf("Unused = %v, want the whole listing", plan.Unused.Paths())
	}
}

func TestSummarize(t *testing.T) {
	root := systemTree(t)

	got := Summarize(root, pathset.New("/usr/bin/app", "/usr/share/doc/a.txt", "/usr/bin/sh", "/missing"))
	want := Summary{Count: 4, Size: int64(len("app") + len("docs docs docs"))}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
	if s := (Summary{Count: 2, Size: 1500}).String(); s != "2 (1.5kB)" {
		t.Fatalf("String() = %q, want %q", s, "2 (1.5kB)")
	}
}
