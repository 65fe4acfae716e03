package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cruciblehq/cruxslim/internal"
	"github.com/cruciblehq/cruxslim/internal/delta"
	"github.com/cruciblehq/cruxslim/internal/settings"
	"github.com/cruciblehq/cruxslim/internal/slim"
)

// Represents the 'cruxslim slim' command.
type SlimCmd struct {
	Image      string        `arg:"" help:"Image reference or path to an OCI archive."`
	Cmd        string        `help:"Command line to trace. Defaults to the image's entrypoint and command." placeholder:"CMD"`
	Base       string        `help:"Base image the kept files are layered on. Defaults to the image's base annotation." placeholder:"REF"`
	Tag        string        `help:"Name of the slimmed image. Defaults to the image's tag with a -slim suffix." placeholder:"NAME"`
	Output     string        `type:"path" help:"Directory to export the slimmed image to as an OCI archive." placeholder:"DIR"`
	Policy     string        `enum:",regular,all" default:"" help:"Entry types carried into the delta (regular, all)."`
	Resolver   string        `enum:",scoped,trace" default:"" help:"Symlink resolver used by the guest (scoped, trace)."`
	Strict     bool          `help:"Fail on malformed trace records and unresolvable paths."`
	AllowEmpty bool          `help:"Remove files even when the command used none of them."`
	Timeout    time.Duration `help:"Upper bound for the traced command." placeholder:"DURATION"`
	Keep       bool          `help:"Keep the run workspace."`
	Strace     string        `type:"path" help:"Host path of a statically linked strace." placeholder:"PATH"`
}

// Executes the slim command.
func (c *SlimCmd) Run(ctx context.Context, s *settings.Settings) error {
	opts, err := c.options(s)
	if err != nil {
		return err
	}

	rt, err := openRuntime(s)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := slim.Run(ctx, rt, opts)
	if err != nil {
		return err
	}

	slog.Info("image slimmed",
		"name", res.Name,
		"digest", res.Digest,
		"base", res.Base,
		"files", len(res.Report.Added),
	)
	fmt.Println(res.Name)
	return nil
}

// Merges flags over the loaded settings.
func (c *SlimCmd) options(s *settings.Settings) (slim.Options, error) {
	policy := s.Diff.Policy
	if c.Policy != "" {
		p, err := delta.ParsePolicy(c.Policy)
		if err != nil {
			return slim.Options{}, err
		}
		policy = p
	}

	return slim.Options{
		Image:      c.Image,
		Cmd:        c.Cmd,
		Base:       c.Base,
		Tag:        c.Tag,
		Output:     c.Output,
		Policy:     policy,
		Resolver:   override(c.Resolver, s.Guest.Resolver),
		Roots:      s.Guest.Roots,
		Strict:     c.Strict || s.Guest.Strict,
		AllowEmpty: c.AllowEmpty || s.Guest.AllowEmpty,
		Timeout:    override(c.Timeout, s.Guest.Timeout.Std()),
		Keep:       c.Keep,
		Debug:      internal.IsDebug(),
		Strace:     override(c.Strace, s.Guest.Strace),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}, nil
}

// Returns flag unless it is the zero value, in which case fallback.
func override[T comparable](flag, fallback T) T {
	var zero T
	if flag == zero {
		return fallback
	}
	return flag
}
