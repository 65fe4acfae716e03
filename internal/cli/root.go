package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/cruciblehq/cruxslim/internal"
	"github.com/cruciblehq/cruxslim/internal/guest"
	"github.com/cruciblehq/cruxslim/internal/runtime"
	"github.com/cruciblehq/cruxslim/internal/settings"
)

// Represents the root command for cruxslim.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Verbose bool       `short:"v" help:"Enable verbose output."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Config  string     `type:"path" help:"Override the configuration file path." placeholder:"PATH"`
	Slim    SlimCmd    `cmd:"" help:"Slim an image down to the files its command uses."`
	Guest   GuestCmd   `cmd:"" hidden:"" help:"Trace a command and remove unused files (runs inside the container)."`
	Diff    DiffCmd    `cmd:"" help:"Write the entries of a filesystem archive that are absent from another."`
	Recipe  RecipeCmd  `cmd:"" help:"Print the recipe derived from an image's history."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Slims container images.\n\nTraces the files an image's command uses and rebuilds the image on its base with only those files."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
			"strace":  guest.StracePath,
			"scratch": guest.ScratchPath,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	s, err := settings.Load(RootCmd.Config)
	if err != nil {
		return err
	}

	return kongCtx.Run(s)
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	logger, ok := slog.Default().Handler().(*log.Logger)
	if !ok {
		return // Not a charm logger, nothing to configure
	}

	internal.EnableModes(RootCmd.Quiet, RootCmd.Verbose, RootCmd.Debug)
	timestamps := internal.IsVerbose() || internal.IsDebug()

	logger.SetLevel(log.Level(internal.LogLevel()))

	// Formatter
	if isatty(os.Stderr) {
		logger.SetFormatter(log.TextFormatter)
	} else {
		logger.SetFormatter(log.LogfmtFormatter)
	}
	logger.SetReportTimestamp(timestamps)
	logger.SetReportCaller(internal.IsVerbose())
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Connects to containerd with the configured settings.
func openRuntime(s *settings.Settings) (*runtime.Runtime, error) {
	rt, err := runtime.New(s.Containerd.Runtime())
	if err != nil {
		return nil, err
	}
	slog.Debug("connected to containerd",
		"address", s.Containerd.Address,
		"namespace", s.Containerd.Namespace,
		"platform", rt.Platform(),
	)
	return rt, nil
}
