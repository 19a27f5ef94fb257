package cli

import (
	"context"
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/ardnew/lgen/cli/cmd"
	"github.com/ardnew/lgen/pkg"
)

// CLI is the top-level command-line interface for lgen.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	cmd.Globals `embed:""`

	Version kong.VersionFlag `help:"Print version and exit." short:"V"`

	Eval    cmd.Eval    `cmd:"" default:"withargs" help:"Evaluate a template or inline text."`
	Expand  cmd.Expand  `cmd:""                    help:"List every expansion of a template."`
	Analyze cmd.Analyze `cmd:""                    help:"Report the variables and templates a template uses."`
	Check   cmd.Check   `cmd:""                    help:"Report diagnostics of LG sources."`
	Fmt     cmd.Fmt     `cmd:""                    help:"Format LG sources."`
	Repl    cmd.Repl    `cmd:""                    help:"Start an interactive session on an LG source."`
	Init    cmd.Init    `cmd:""                    help:"Write the current flags to the configuration file."`
}

// Run executes the lgen CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		"version":            pkg.Version,
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  pkg.CacheDir(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Configure the logger before parsing so that parse errors are reported
	// with the requested level and format.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(loadConfig, configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)

	// TimeLayout and Caller have no TextUnmarshaler, so the logger is
	// finalized only after parsing.
	cli.Globals.Logger = cli.Log.start(ctx)

	// No-op unless built with tag pprof and a mode is selected.
	defer cli.Pprof.start(ctx)()

	cli.Globals.Logger.DebugContext(ctx, "run command",
		slog.String("command", ktx.Command()),
		slog.String("config", configFilePath),
	)

	return ktx.Run(ctx, &cli.Globals)
}
