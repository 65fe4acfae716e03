package slim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/cruxslim/internal"
	"github.com/cruciblehq/cruxslim/internal/build"
	"github.com/cruciblehq/cruxslim/internal/delta"
	"github.com/cruciblehq/cruxslim/internal/guest"
	"github.com/cruciblehq/cruxslim/internal/paths"
	"github.com/cruciblehq/cruxslim/internal/recipe"
	"github.com/cruciblehq/cruxslim/internal/runtime"
)

// Name of the delta archive inside the build context.
const DeltaArchive = "rootfs.tar"

// Options for a slimming run.
type Options struct {
	Image      string        // Image reference or path to an OCI archive.
	Cmd        string        // Command line to trace. Empty uses the image's entrypoint and command.
	Base       string        // Base image reference. Empty derives it from the image.
	Tag        string        // Name of the slimmed image. Empty uses [SlimName].
	Output     string        // Directory to export the slimmed image to as an OCI archive. Empty skips the export.
	Policy     delta.Policy  // Entry types carried into the delta.
	Resolver   string        // Guest symlink resolver.
	Roots      []string      // Directories the guest reduces. Nil uses the guest default.
	Strict     bool          // Fail on malformed trace records and unresolvable paths.
	AllowEmpty bool          // Reduce even when no listed file was used.
	Timeout    time.Duration // Upper bound for the traced command. Zero waits forever.
	Keep       bool          // Keep the workspace after the run.
	Debug      bool          // Enable debug logging in the guest.
	Strace     string        // Host path of a statically linked strace.
	Executable string        // Host path of the binary run as the guest. Empty uses the running executable.
	Workspace  string        // Directory run workspaces are created in. Empty uses [paths.Runs].
	Stdout     io.Writer     // Receives the guest's output. Nil discards it.
	Stderr     io.Writer     // Receives the guest's diagnostics. Nil discards them.
}

// Outcome of a slimming run.
type Result struct {
	Name      string        // Name of the slimmed image.
	Digest    digest.Digest // Digest of the slimmed image's target.
	Base      string        // Base image the delta was layered on.
	Report    *delta.Report // Delta contents.
	Output    string        // Path of the exported archive, if any.
	Workspace string        // Workspace directory. Already removed unless kept.
}

// Slims an image.
//
// Intermediate state is cleaned up on every exit path, including
// cancellation: the guest container is destroyed and the workspace is
// removed unless [Options.Keep] is set.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if opts.Strace == "" {
		return nil, fmt.Errorf("%w: no strace binary configured", ErrGuest)
	}

	ref, err := NormalizeReference(opts.Image)
	if err != nil {
		return nil, err
	}

	name := opts.Tag
	if name == "" {
		name = SlimName(ref)
	} else if name, err = NormalizeReference(name); err != nil {
		return nil, err
	}

	id := uuid.NewString()

	parent := opts.Workspace
	if parent == "" {
		parent = paths.Runs()
	}
	ws, err := newWorkspace(parent, id)
	if err != nil {
		return nil, err
	}
	if opts.Keep {
		defer slog.Info("workspace kept", "dir", ws.dir)
	} else {
		defer ws.remove()
	}

	slog.Info("slimming image", "image", ref, "name", name, "run", id)

	ctx, done, err := rt.WithLease(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}
	defer done(context.WithoutCancel(ctx))

	target, err := rt.Image(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}
	targetContent, err := rt.ReadImage(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}

	from, err := identifyBase(opts.Base, targetContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSlim, ref, err)
	}
	slog.Info("base image identified", "base", from)

	argv, err := traceCommand(opts.Cmd, targetContent.Config.Config)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		slog.Warn("image defines no command to trace", "image", ref)
	}

	if err := runGuest(ctx, rt, target, id, ws, opts, targetContent.Config.Config.WorkingDir, argv); err != nil {
		return nil, err
	}

	baseImage, err := rt.Image(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}
	if err := exportFile(ws.base(), func(w io.Writer) error {
		return rt.ExportFilesystem(ctx, baseImage, w)
	}); err != nil {
		return nil, err
	}
	slog.Info("base filesystem exported", "size", units.HumanSize(float64(fileSize(ws.base()))))

	report, err := delta.DiffFiles(ws.base(), ws.slim(), ws.delta(), delta.Options{
		Policy:  opts.Policy,
		Exclude: delta.DefaultExclude,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}
	slog.Info("delta archive written",
		"added", len(report.Added),
		"changed", len(report.Changed),
		"skipped", len(report.Skipped),
		"size", units.HumanSize(float64(fileSize(ws.delta()))),
	)
	for _, p := range report.Changed {
		slog.Warn("file differs from base image and is not carried over", "path", p)
	}

	full, err := deriveRecipe(ctx, rt, targetContent, from, baseImage)
	if err != nil {
		return nil, err
	}
	slimmed := full.Slim(DeltaArchive)
	if err := writeRecipe(ws.recipe(), slimmed); err != nil {
		return nil, err
	}

	var output string
	if opts.Output != "" {
		output = filepath.Join(opts.Output, archiveName(name))
	}

	built, err := build.Run(ctx, rt, build.Options{
		Recipe:  slimmed,
		Context: ws.build(),
		Name:    name,
		Output:  output,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}

	return &Result{
		Name:      built.Name,
		Digest:    built.Digest,
		Base:      from,
		Report:    report,
		Output:    built.Output,
		Workspace: ws.dir,
	}, nil
}

// Runs the guest in a fresh container from the target image and exports
// the reduced filesystem to the workspace.
//
// The container is destroyed before returning.
func runGuest(ctx context.Context, rt *runtime.Runtime, target containerd.Image, id string, ws *workspace, opts Options, workdir string, argv []string) error {
	exe := opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("%w: %w", ErrGuest, err)
		}
	}

	ctr, err := rt.NewContainer(ctx, target, containerID(id), runtime.ContainerSpec{
		Args: guestArgs(opts, workdir, argv),
		Mounts: []runtime.Mount{
			{Source: exe, Target: guest.BinaryPath, ReadOnly: true},
			{Source: opts.Strace, Target: guest.StracePath, ReadOnly: true},
		},
		Tmpfs:        []string{guest.ScratchPath},
		Capabilities: []string{runtime.CapSysPtrace},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGuest, err)
	}
	defer ctr.Destroy(context.WithoutCancel(ctx))

	logFile, err := os.Create(ws.guestLog())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	defer logFile.Close()

	stdout := io.MultiWriter(logFile, orDiscard(opts.Stdout))
	stderr := io.MultiWriter(logFile, orDiscard(opts.Stderr))

	slog.Info("tracing command", "container", ctr.ID(), "argv", argv)

	code, err := ctr.Run(ctx, stdout, stderr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGuest, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: exit code %d, see %s", ErrGuest, code, ws.guestLog())
	}

	if err := exportFile(ws.slim(), func(w io.Writer) error {
		return ctr.ExportFilesystem(ctx, w)
	}); err != nil {
		return err
	}
	slog.Info("slim filesystem exported", "size", units.HumanSize(float64(fileSize(ws.slim()))))

	return nil
}

// Returns the containerd ID of a run's guest container.
func containerID(id string) string {
	return internal.Name + "-" + id
}

// Creates path and fills it with write. A partial file is removed on failure.
func exportFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("%w: %w", ErrWorkspace, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("%w: %w", ErrSlim, err)
	}
	return nil
}

// Writes a recipe to path.
func writeRecipe(path string, r *recipe.Recipe) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	defer f.Close()

	if err := r.Render(f); err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	return f.Close()
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
