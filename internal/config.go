package internal

import (
	"log/slog"
	"strconv"
	"sync/atomic"
)

var (
	quietMode   atomic.Bool // Indicates whether quiet mode is enabled.
	debugMode   atomic.Bool // Indicates whether debug logging is enabled.
	verboseMode atomic.Bool // Indicates whether verbose logging is enabled.
)

// Parses the linker flags into usable runtime variables.
//
// The rawQuiet, rawDebug, and rawVerbose variables should be set via ldflags
// during the build process. If not set, they default to "false".
func init() {
	quietMode.Store(parseFlag(rawQuiet))
	debugMode.Store(parseFlag(rawDebug))
	verboseMode.Store(parseFlag(rawVerbose))
}

// Parses a boolean linker flag. Malformed values count as false.
func parseFlag(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

// Enables the modes requested on the command line.
//
// Modes already enabled by linker flags stay enabled.
func EnableModes(quiet, verbose, debug bool) {
	if quiet {
		quietMode.Store(true)
	}
	if verbose {
		verboseMode.Store(true)
	}
	if debug {
		debugMode.Store(true)
	}
}

// Returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode.Load()
}

// Returns true if debug mode is enabled.
func IsDebug() bool {
	return debugMode.Load()
}

// Returns true if verbose logging is enabled.
func IsVerbose() bool {
	return verboseMode.Load()
}

// Returns the log level selected by the enabled modes.
//
// Debug wins over quiet.
func LogLevel() slog.Level {
	switch {
	case IsDebug():
		return slog.LevelDebug
	case IsQuiet():
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
