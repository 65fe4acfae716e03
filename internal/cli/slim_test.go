package cli

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cruciblehq/cruxslim/internal/delta"
	"github.com/cruciblehq/cruxslim/internal/settings"
	"github.com/cruciblehq/cruxslim/internal/slim"
)

func TestSlimOptionsFromSettings(t *testing.T) {
	s := settings.Defaults()
	s.Guest.Strace = "/opt/strace"
	s.Guest.Resolver = "trace"
	s.Guest.Timeout = settings.Duration(time.Minute)
	s.Guest.Strict = true
	s.Diff.Policy = delta.AllTypes

	c := &SlimCmd{Image: "nginx"}
	got, err := c.options(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := slim.Options{
		Image:    "nginx",
		Policy:   delta.AllTypes,
		Resolver: "trace",
		Roots:    s.Guest.Roots,
		Strict:   true,
		Timeout:  time.Minute,
		Strace:   "/opt/strace",
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(slim.Options{}, "Stdout", "Stderr", "Debug")); diff != "" {
		t.Fatalf("options() mismatch (-want +got):\n%s", diff)
	}
}

func TestSlimOptionsFlagsOverride(t *testing.T) {
	s := settings.Defaults()

	c := &SlimCmd{
		Image:      "nginx",
		Policy:     "all",
		Resolver:   "trace",
		Timeout:    5 * time.Second,
		Strace:     "/usr/local/bin/strace",
		AllowEmpty: true,
		Keep:       true,
	}
	got, err := c.options(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Policy != delta.AllTypes {
		t.Errorf("policy = %v, want all", got.Policy)
	}
	if got.Resolver != "trace" || got.Timeout != 5*time.Second || got.Strace != "/usr/local/bin/strace" {
		t.Errorf("flags not applied: %+v", got)
	}
	if !got.AllowEmpty || !got.Keep {
		t.Errorf("boolean flags not applied: %+v", got)
	}
}

func TestSlimOptionsInvalidPolicy(t *testing.T) {
	c := &SlimCmd{Image: "nginx", Policy: "some"}
	if _, err := c.options(settings.Defaults()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOverride(t *testing.T) {
	if got := override("", "fallback"); got != "fallback" {
		t.Errorf("override() = %q, want fallback", got)
	}
	if got := override("flag", "fallback"); got != "flag" {
		t.Errorf("override() = %q, want flag", got)
	}
	if got := override(time.Duration(0), time.Second); got != time.Second {
		t.Errorf("override() = %v, want 1s", got)
	}
}
