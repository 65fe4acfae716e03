package internal

import (
	"log/slog"
	"testing"
)

// Resets the modes after a test.
func resetModes(t *testing.T) {
	t.Helper()
	q, v, d := IsQuiet(), IsVerbose(), IsDebug()
	t.Cleanup(func() {
		quietMode.Store(q)
		verboseMode.Store(v)
		debugMode.Store(d)
	})
	quietMode.Store(false)
	verboseMode.Store(false)
	debugMode.Store(false)
}

func TestParseFlag(t *testing.T) {
	tests := map[string]bool{
		"true":  true,
		"1":     true,
		"false": false,
		"":      false,
		"yes":   false,
	}
	for raw, want := range tests {
		if got := parseFlag(raw); got != want {
			t.Errorf("parseFlag(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		quiet bool
		debug bool
		want  slog.Level
	}{
		{"default", false, false, slog.LevelInfo},
		{"quiet", true, false, slog.LevelWarn},
		{"debug", false, true, slog.LevelDebug},
		{"debug wins", true, true, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetModes(t)
			EnableModes(tt.quiet, false, tt.debug)
			if got := LogLevel(); got != tt.want {
				t.Fatalf("LogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnableModesKeepsEnabled(t *testing.T) {
	resetModes(t)
	EnableModes(false, true, false)
	EnableModes(false, false, false)
	if !IsVerbose() {
		t.Fatal("verbose mode disabled by a later call")
	}
}

func TestVersionString(t *testing.T) {
	saved := [3]string{version, stage, gitCommit}
	t.Cleanup(func() { version, stage, gitCommit = saved[0], saved[1], saved[2] })

	version, stage, gitCommit = "", "", ""
	if got := VersionString(); got != "(local)" {
		t.Fatalf("VersionString() = %q, want (local)", got)
	}

	version, stage, gitCommit = "v1.2.3", "main", "abc123"
	if got, want := VersionString(), "1.2.3 abc123 ["+Arch()+"]"; got != want {
		t.Fatalf("VersionString() = %q, want %q", got, want)
	}

	stage = "Beta"
	if got, want := VersionString(), "1.2.3+beta abc123 ["+Arch()+"]"; got != want {
		t.Fatalf("VersionString() = %q, want %q", got, want)
	}
}
