package slim

import (
	"fmt"
	"slices"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"mvdan.cc/sh/v3/shell"

	"github.com/cruciblehq/cruxslim/internal/guest"
)

// Returns the command traced inside the container.
//
// An explicit command line is split into words the way a POSIX shell
// would, expanding variables against the image environment. Without one,
// the image's entrypoint followed by its command is used.
func traceCommand(cmdline string, cfg ocispec.ImageConfig) ([]string, error) {
	if cmdline == "" {
		return slices.Concat(cfg.Entrypoint, cfg.Cmd), nil
	}

	env := func(name string) string {
		for _, e := range cfg.Env {
			if k, v, ok := strings.Cut(e, "="); ok && k == name {
				return v
			}
		}
		return ""
	}

	argv, err := shell.Fields(cmdline, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCommand, cmdline, err)
	}
	return argv, nil
}

// Returns the argv of the guest container's primary process.
func guestArgs(opts Options, workdir string, argv []string) []string {
	args := []string{
		guest.BinaryPath, "guest",
		"--strace=" + guest.StracePath,
		"--scratch=" + guest.ScratchPath,
	}
	if opts.Resolver != "" {
		args = append(args, "--resolver="+opts.Resolver)
	}
	if len(opts.Roots) > 0 {
		args = append(args, "--roots="+strings.Join(opts.Roots, ","))
	}
	// containerd starts the process in "/" when the image names no directory.
	if workdir == "" {
		workdir = "/"
	}
	args = append(args, "--workdir="+workdir)
	if opts.Timeout > 0 {
		args = append(args, "--timeout="+opts.Timeout.String())
	}
	if opts.Strict {
		args = append(args, "--strict")
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if opts.Debug {
		args = append(args, "--debug")
	}
	args = append(args, "--")
	return append(args, argv...)
}
