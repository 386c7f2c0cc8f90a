// Package cli assembles the mycli command tree: builtin specs, units
// discovered from the commands directory, the global flag surface, and the
// exit code contract.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	completionscmd "github.com/Miyamura80/CLI-Template/cmd/mycli/completions"
	configcmd "github.com/Miyamura80/CLI-Template/cmd/mycli/config"
	doctorcmd "github.com/Miyamura80/CLI-Template/cmd/mycli/doctor"
	greetcmd "github.com/Miyamura80/CLI-Template/cmd/mycli/greet"
	"github.com/Miyamura80/CLI-Template/cmd/mycli/initcmd"
	secretscmd "github.com/Miyamura80/CLI-Template/cmd/mycli/secrets"
	telemetrycmd "github.com/Miyamura80/CLI-Template/cmd/mycli/telemetry"
	updatecmd "github.com/Miyamura80/CLI-Template/cmd/mycli/update"
	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/discovery"
	"github.com/Miyamura80/CLI-Template/internal/execrunner"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/internal/version"
	"github.com/Miyamura80/CLI-Template/pkg/telemetry"
)

// App is the assembled CLI: the mounted cobra tree plus the registry it was
// generated from. Invocation and Command are populated once the global flags
// parse, before any entry point runs.
type App struct {
	Root     *cobra.Command
	Registry *registry.Registry

	// Logger, when set before Execute, receives sanitized lifecycle entries
	// for unit subprocesses on debug invocations.
	Logger telemetry.StructuredLogger

	Invocation *invocation.Context
	Command    string

	settings  settings.Settings
	stateFile string
	runner    *execrunner.Runner
}

type globalFlags struct {
	verbose bool
	quiet   bool
	debug   bool
	dryRun  bool
	format  string
	version bool
}

// NewApp loads the process settings, scans the commands directory, and
// mounts every accepted spec onto a cobra tree. Discovery and registration
// failures abort assembly; nothing is dispatched from a partial table.
func NewApp(ctx context.Context) (*App, error) {
	loaded, err := settings.Load()
	if err != nil {
		return nil, err
	}
	resolver := paths.NewResolver(paths.Overrides{
		ConfigDir:   loaded.ConfigDir,
		CommandsDir: loaded.CommandsDir,
	})
	commandsDir, err := resolver.CommandsDir()
	if err != nil {
		return nil, err
	}
	stateFile, err := resolver.StateFile()
	if err != nil {
		return nil, err
	}

	app := &App{
		settings:  loaded,
		stateFile: stateFile,
		runner:    execrunner.New(ctx),
	}
	root := app.newRootCommand()

	reg := registry.New()
	for _, spec := range builtinSpecs() {
		if err := reg.Register(spec); err != nil {
			return nil, err
		}
	}
	completions := completionscmd.Spec(completionscmd.Deps{
		Root: func() (*cobra.Command, error) { return root, nil },
	})
	if err := reg.Register(completions); err != nil {
		return nil, err
	}

	discovered, err := discovery.Load(discovery.Options{Dir: commandsDir, Entry: app.runner.Entry})
	if err != nil {
		return nil, err
	}
	for _, spec := range discovered {
		if err := reg.Register(spec); err != nil {
			return nil, err
		}
	}

	mount(root, reg)
	app.Root = root
	app.Registry = reg
	return app, nil
}

// Execute runs the assembled tree.
func (a *App) Execute(ctx context.Context) error {
	return a.Root.ExecuteContext(ctx)
}

func builtinSpecs() []*registry.CommandSpec {
	return []*registry.CommandSpec{
		configcmd.Spec(),
		doctorcmd.Spec(),
		greetcmd.Spec(),
		initcmd.Spec(),
		secretscmd.Spec(),
		telemetrycmd.Spec(),
		updatecmd.Spec(),
	}
}

func (a *App) newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:              "mycli",
		Short:            "Extensible command-line toolkit with discoverable command units",
		Args:             cobra.ArbitraryArgs,
		SilenceErrors:    true,
		TraverseChildren: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "print additional detail")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "print only essential output")
	pf.BoolVar(&flags.debug, "debug", false, "print diagnostics and full error chains")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "describe changes without making them")
	pf.StringVarP(&flags.format, "format", "f", "table", "output format (table, json, plain)")
	root.Flags().BoolVarP(&flags.version, "version", "V", false, "print the version and exit")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierrors.Usagef("%v", err)
	})

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		inv, err := invocation.New(invocation.Options{
			Verbose: flags.verbose,
			Quiet:   flags.quiet,
			Debug:   flags.debug,
			DryRun:  flags.dryRun,
			Format:  flags.format,
		})
		if err != nil {
			return err
		}
		a.Invocation = inv
		a.Command = commandPath(cmd)
		if inv.Debug() && a.Logger != nil {
			a.runner.WithLogger(a.Logger)
		}
		cmd.SetContext(invocation.WithContext(cmd.Context(), inv))
		a.showFirstRunNotice(cmd.ErrOrStderr(), inv)
		return nil
	}

	root.RunE = func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if flags.version {
			fmt.Fprintln(cmd.OutOrStdout(), versionLine())
			return nil
		}
		if len(args) > 0 {
			return a.Registry.Dispatch(invocationFrom(cmd), args, nil, cmd.OutOrStdout())
		}
		return cmd.Help()
	}

	return root
}

// mount generates the cobra layer from the registry. Groups dispatch back
// through the registry so invoking one prints its synopsis; pass-through
// leaves receive everything after the command name verbatim.
func mount(root *cobra.Command, reg *registry.Registry) {
	for _, spec := range reg.Specs() {
		root.AddCommand(command(reg, spec, []string{spec.Name}))
	}
}

func command(reg *registry.Registry, spec *registry.CommandSpec, path []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   spec.Name,
		Short: spec.Summary,
		Long:  spec.Description,
		Args:  cobra.ArbitraryArgs,
	}

	switch spec.Kind {
	case registry.KindGroup:
		dispatchPath := append([]string(nil), path...)
		cmd.RunE = func(c *cobra.Command, args []string) error {
			c.SilenceUsage = true
			target := append(append([]string(nil), dispatchPath...), args...)
			return reg.Dispatch(invocationFrom(c), target, nil, c.OutOrStdout())
		}
		for _, child := range spec.Children {
			childPath := append(append([]string(nil), path...), child.Name)
			cmd.AddCommand(command(reg, child, childPath))
		}
	case registry.KindLeaf:
		if spec.Flags != nil {
			spec.Flags(cmd.Flags())
		}
		if spec.PassThrough {
			cmd.DisableFlagParsing = true
		}
		run := spec.Run
		cmd.RunE = func(c *cobra.Command, args []string) error {
			c.SilenceUsage = true
			return run(invocationFrom(c), args)
		}
	}
	return cmd
}

func invocationFrom(cmd *cobra.Command) *invocation.Context {
	if inv, ok := invocation.FromContext(cmd.Context()); ok {
		return inv
	}
	inv, _ := invocation.New(invocation.Options{})
	return inv
}

// commandPath renders the resolved command path without the binary name,
// e.g. "config set". Bare invocations yield "".
func commandPath(cmd *cobra.Command) string {
	return strings.TrimSpace(strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()))
}

func versionLine() string {
	line := "mycli " + version.Version
	if brand := branding.Resolve(); brand.Emoji != "" {
		line = brand.Emoji + " " + line
	}
	return line
}
