package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cruciblehq/cruxslim/internal/delta"
	"github.com/cruciblehq/cruxslim/internal/settings"
)

// Represents the 'cruxslim diff' command.
type DiffCmd struct {
	Base    string   `arg:"" type:"existingfile" help:"Base filesystem archive."`
	Slim    string   `arg:"" type:"existingfile" help:"Slimmed filesystem archive."`
	Out     string   `arg:"" type:"path" help:"Delta archive to write."`
	Policy  string   `enum:",regular,all" default:"" help:"Entry types carried into the delta (regular, all)."`
	Exclude []string `sep:"," help:"Names never carried into the delta. Defaults to the guest mount points." placeholder:"PATH,..."`
}

// Executes the diff command.
func (c *DiffCmd) Run(ctx context.Context, s *settings.Settings) error {
	opts := delta.Options{Policy: s.Diff.Policy, Exclude: c.Exclude}
	if c.Policy != "" {
		p, err := delta.ParsePolicy(c.Policy)
		if err != nil {
			return err
		}
		opts.Policy = p
	}
	if len(opts.Exclude) == 0 {
		opts.Exclude = delta.DefaultExclude
	}

	report, err := delta.DiffFiles(c.Base, c.Slim, c.Out, opts)
	if err != nil {
		return err
	}

	for _, name := range report.Changed {
		slog.Warn("file differs from base and is not carried over", "path", name)
	}
	for _, name := range report.Skipped {
		slog.Debug("entry skipped by policy", "path", name, "policy", opts.Policy)
	}

	fmt.Printf("Added: %d\nChanged: %d\nSkipped: %d\n", len(report.Added), len(report.Changed), len(report.Skipped))
	return nil
}
