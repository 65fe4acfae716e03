package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/cruciblehq/cruxslim/internal/pathset"
)

const (

	// Binary used when no strace path is configured.
	DefaultStrace = "strace"

	// Syscall class covering every call that takes a file name argument.
	DefaultSyscalls = "file"
)

// Runs commands under strace and collects the paths they touch.
type Tracer struct {
	Strace   string        // Path to the strace binary. Empty uses [DefaultStrace] from PATH.
	Syscalls string        // Filter passed to "-e trace=". Empty uses [DefaultSyscalls].
	Parser   Parser        // Parser applied to the trace output.
	Scratch  string        // Directory for the trace output file. Empty uses [os.TempDir].
	Timeout  time.Duration // Upper bound for the traced command. Zero means no bound.
	Env      []string      // Environment for the traced command. Nil inherits the current one.
	Stdout   io.Writer     // Receives the traced command's standard output.
	Stderr   io.Writer     // Receives the traced command's standard error and strace diagnostics.
}

// Runs argv under strace, following every forked and executed child, and
// returns the set of path literals seen in file syscalls.
//
// An empty argv returns an empty set without running anything. Failure to
// start strace, or strace exiting non-zero without producing a single record,
// is reported as [ErrTraceSetup]. Exceeding the timeout or cancellation is
// reported as [ErrTraceIncomplete]; a partial trace is never returned. A
// traced command that exits non-zero is not an error.
func (t *Tracer) Trace(ctx context.Context, argv []string) (pathset.Set, error) {
	if len(argv) == 0 {
		return pathset.Set{}, nil
	}

	out, err := os.CreateTemp(t.Scratch, "trace-*")
	if err != nil {
		return pathset.Set{}, fmt.Errorf("%w: %w", ErrTraceSetup, err)
	}
	defer os.Remove(out.Name())
	defer out.Close()

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.strace(), t.args(out.Name(), argv)...)
	cmd.Env = t.Env
	cmd.Stdout = t.Stdout
	cmd.Stderr = t.Stderr

	slog.Debug("tracing", "strace", cmd.Path, "argv", argv)

	if err := cmd.Start(); err != nil {
		return pathset.Set{}, fmt.Errorf("%w: %w", ErrTraceSetup, err)
	}

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return pathset.Set{}, fmt.Errorf("%w: %w", ErrTraceIncomplete, ctxErr)
	}

	paths, err := t.Parser.Parse(out)
	if err != nil {
		return pathset.Set{}, err
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr) && !paths.Empty():
		slog.Warn("traced command exited with non-zero status", "code", exitErr.ExitCode())
	default:
		return pathset.Set{}, fmt.Errorf("%w: strace produced no records: %w", ErrTraceSetup, waitErr)
	}

	slog.Debug("trace collected", "paths", paths.Len())
	return paths, nil
}

// Returns the strace binary to run.
func (t *Tracer) strace() string {
	if t.Strace != "" {
		return t.Strace
	}
	return DefaultStrace
}

// Builds the strace argument list.
//
// -f follows forks, -qq suppresses attach and exit notices, -y prints the
// path behind every descriptor so paths relative to a directory descriptor
// can be placed, and the output goes to a file so the traced command's own
// output cannot interleave with it.
func (t *Tracer) args(output string, argv []string) []string {
	syscalls := t.Syscalls
	if syscalls == "" {
		syscalls = DefaultSyscalls
	}

	args := []string{"-f", "-qq", "-e", "trace=" + syscalls, "-o", output, "-y", "--"}
	return append(args, argv...)
}
