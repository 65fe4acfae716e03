package cli

import (
	"context"
	"os"
	"time"

	"github.com/cruciblehq/cruxslim/internal/guest"
)

// Represents the 'cruxslim guest' command.
//
// The host runs it as the primary process of the target container; it is
// not meant to be invoked by hand.
type GuestCmd struct {
	Root       string        `default:"/" help:"Filesystem root to reduce." placeholder:"DIR"`
	Roots      []string      `sep:"," help:"Directories considered for removal." placeholder:"DIR,..."`
	Resolver   string        `enum:"scoped,trace" default:"scoped" help:"Symlink resolver (scoped, trace)."`
	Strict     bool          `help:"Fail on malformed trace records and unresolvable paths."`
	AllowEmpty bool          `help:"Remove files even when the command used none of them."`
	Strace     string        `default:"${strace}" help:"Path to the strace binary." placeholder:"PATH"`
	Scratch    string        `default:"${scratch}" help:"Directory for trace output files." placeholder:"DIR"`
	Workdir    string        `default:"/" help:"Working directory of the traced command." placeholder:"DIR"`
	Timeout    time.Duration `help:"Upper bound for the traced command." placeholder:"DURATION"`
	Command    []string      `arg:"" optional:"" passthrough:"" help:"Command to trace."`
}

// Executes the guest command.
func (c *GuestCmd) Run(ctx context.Context) error {
	_, err := guest.Run(ctx, c.Command, guest.Options{
		Root:       c.Root,
		Roots:      c.Roots,
		Resolver:   c.Resolver,
		Strict:     c.Strict,
		AllowEmpty: c.AllowEmpty,
		Strace:     c.Strace,
		Scratch:    c.Scratch,
		Workdir:    c.Workdir,
		Timeout:    c.Timeout,
		Output:     os.Stdout,
		Stderr:     os.Stderr,
	})
	return err
}
