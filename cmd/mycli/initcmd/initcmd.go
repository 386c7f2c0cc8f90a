// Package initcmd implements the init command, which scaffolds a new command
// unit into the commands directory.
package initcmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/pkg/scaffold"
)

// Options bundles flag values for easier testing.
type Options struct {
	Description string
}

// Deps carries the collaborators the init command runs with.
type Deps struct {
	Out       io.Writer
	Generator func() (*scaffold.Generator, error)
}

func defaultDeps() Deps {
	return Deps{
		Out:       os.Stdout,
		Generator: defaultGenerator,
	}
}

func defaultGenerator() (*scaffold.Generator, error) {
	cfg, err := settings.Load()
	if err != nil {
		return nil, err
	}
	resolver := paths.NewResolver(paths.Overrides{ConfigDir: cfg.ConfigDir, CommandsDir: cfg.CommandsDir})
	dir, err := resolver.CommandsDir()
	if err != nil {
		return nil, err
	}
	return scaffold.NewGenerator(dir), nil
}

// Spec returns the init command unit.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the init command unit bound to explicit dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	opts := &Options{}
	return &registry.CommandSpec{
		Name:    "init",
		Kind:    registry.KindLeaf,
		Summary: "Scaffold a new command unit",
		Source:  registry.SourceBuiltin,
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&opts.Description, "description", "d", "", "Summary shown in command listings")
		},
		Run: func(inv *invocation.Context, args []string) error {
			return runInit(inv, *opts, args, deps)
		},
	}
}

// RunInitForTest executes the init workflow with explicit options.
func RunInitForTest(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	return runInit(inv, opts, args, deps)
}

func runInit(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	if len(args) != 1 {
		return clierrors.Usagef("init expects exactly one command name")
	}
	unit := scaffold.Unit{Name: args[0], Description: opts.Description}

	generator, err := deps.Generator()
	if err != nil {
		return err
	}

	if inv.DryRun() {
		// Render validates the name and the template without touching disk.
		if _, err := generator.Render(unit); err != nil {
			return err
		}
		fmt.Fprintf(deps.Out, "[DRY RUN] Would create %s\n", generator.Path(unit))
		return nil
	}

	path, err := generator.Create(unit)
	if err != nil {
		return err
	}
	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "created %s\n", path)
		fmt.Fprintf(deps.Out, "run 'mycli %s' to try it\n", unit.Name)
	}
	return nil
}
