package guest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cruciblehq/cruxslim/internal/trace"
	"github.com/cruciblehq/cruxslim/internal/usage"
)

const (
	ResolverScoped = "scoped" // In-process, root-scoped symlink resolution.
	ResolverTrace  = "trace"  // Traced "readlink -f" oracle.
)

// Locations inside the target container where the host mounts the guest's
// dependencies.
const (
	BinaryPath  = "/.cruxslim" // The cruxslim binary, read-only.
	StracePath  = "/.strace"   // A statically linked strace, read-only.
	ScratchPath = "/.scratch"  // Tmpfs for trace output files.
)

// Options for a guest run.
type Options struct {
	Root       string        // Filesystem root. Empty means "/".
	Roots      []string      // Directories listed for reduction. Nil uses [usage.DefaultRoots].
	Resolver   string        // [ResolverScoped] or [ResolverTrace]. Empty means scoped.
	Strict     bool          // Fail on malformed trace records and unresolvable paths.
	AllowEmpty bool          // Reduce even when no listed file was used.
	Strace     string        // Path to the strace binary.
	Scratch    string        // Directory for trace output files.
	Workdir    string        // Working directory of the traced command, for relative paths. Empty means "/".
	Timeout    time.Duration // Upper bound for the traced command.
	Output     io.Writer     // Receives the summary lines and the traced command's output.
	Stderr     io.Writer     // Receives the traced command's standard error.
}

// Outcome of a guest run.
type Result struct {
	Used    usage.Summary
	Unused  usage.Summary
	Removal usage.Removal
}

// Traces argv and reduces the filesystem to the files it used.
//
// A leading "--" in argv is dropped. An empty argv traces nothing, which
// trips the reducer's empty-usage guard unless AllowEmpty is set. Listing
// and planning complete before anything is deleted; the summaries are
// computed before deletion as well so the unused size reflects what was
// removed.
func Run(ctx context.Context, argv []string, opts Options) (*Result, error) {
	if len(argv) > 0 && argv[0] == "--" {
		argv = argv[1:]
	}

	workdir := opts.Workdir
	if workdir == "" {
		workdir = "/"
	}

	tracer := trace.Tracer{
		Strace:  opts.Strace,
		Parser:  trace.Parser{Strict: opts.Strict, Workdir: workdir},
		Scratch: opts.Scratch,
		Timeout: opts.Timeout,
		Stdout:  opts.Output,
		Stderr:  opts.Stderr,
	}

	traced, err := tracer.Trace(ctx, argv)
	if err != nil {
		return nil, err
	}
	slog.Info("trace collected", "paths", traced.Len())

	resolver, err := newResolver(opts, tracer)
	if err != nil {
		return nil, err
	}

	used, err := resolver.Resolve(ctx, traced)
	if err != nil {
		return nil, err
	}
	slog.Info("paths resolved", "used", used.Len())

	reducer := &usage.Reducer{
		Root:       opts.Root,
		Roots:      opts.Roots,
		AllowEmpty: opts.AllowEmpty,
	}

	plan, err := reducer.Plan(used)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Used:   usage.Summarize(opts.Root, plan.Used),
		Unused: usage.Summarize(opts.Root, plan.Unused),
	}

	if opts.Output != nil {
		fmt.Fprintf(opts.Output, "Used files: %s\n", res.Used)
		fmt.Fprintf(opts.Output, "Unused files: %s\n", res.Unused)
	}

	res.Removal = reducer.Apply(plan)
	if res.Removal.Failed > 0 {
		slog.Warn("some unused files could not be removed", "failed", res.Removal.Failed)
	}

	return res, nil
}

// Creates the resolver selected by the options.
func newResolver(opts Options, tracer trace.Tracer) (usage.Resolver, error) {
	switch opts.Resolver {
	case "", ResolverScoped:
		return &usage.ScopedResolver{Root: opts.Root, Strict: opts.Strict}, nil
	case ResolverTrace:
		tracer.Stdout = io.Discard
		tracer.Timeout = 0
		return &usage.TraceResolver{Tracer: tracer, Root: opts.Root}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResolver, opts.Resolver)
	}
}
