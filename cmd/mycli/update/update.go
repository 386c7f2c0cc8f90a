// Package update implements the update command. Check failures are soft: a
// CLI must stay usable when the release host is unreachable.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	configstack "github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/internal/version"
	"github.com/Miyamura80/CLI-Template/pkg/render"
	updater "github.com/Miyamura80/CLI-Template/pkg/update"
)

const installPath = "github.com/Miyamura80/CLI-Template/cmd/mycli"

// Options bundles flag values for easier testing.
type Options struct {
	Apply bool
}

// Deps carries the collaborators the update command runs with.
type Deps struct {
	Out     io.Writer
	Err     io.Writer
	Brand   branding.Brand
	Version string
	Checker func() (*updater.Checker, error)
}

func defaultDeps() Deps {
	return Deps{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Brand:   branding.Resolve(),
		Version: version.Version,
		Checker: defaultChecker,
	}
}

func defaultChecker() (*updater.Checker, error) {
	cfg, err := settings.Load()
	if err != nil {
		return nil, err
	}
	resolver := paths.NewResolver(paths.Overrides{ConfigDir: cfg.ConfigDir, CommandsDir: cfg.CommandsDir})
	overridesFile, err := resolver.OverridesFile()
	if err != nil {
		return nil, err
	}
	stack, err := configstack.LoadStack(overridesFile, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	value, err := stack.Resolver.Resolve("update.check_url")
	if err != nil {
		return nil, err
	}
	url, ok := value.Value.(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("update.check_url is not a string")
	}
	return updater.NewChecker(url), nil
}

// Spec returns the update command unit.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the update command unit bound to explicit dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	opts := &Options{}
	return &registry.CommandSpec{
		Name:    "update",
		Kind:    registry.KindLeaf,
		Summary: "Check for a newer mycli release",
		Source:  registry.SourceBuiltin,
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&opts.Apply, "apply", false, "Print install instructions for the newest release")
		},
		Run: func(inv *invocation.Context, args []string) error {
			return runUpdate(inv, *opts, args, deps)
		},
	}
}

// RunUpdateForTest executes the update workflow with explicit options.
func RunUpdateForTest(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	return runUpdate(inv, opts, args, deps)
}

func runUpdate(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("update takes no arguments")
	}
	checker, err := deps.Checker()
	if err != nil {
		return err
	}

	outcome, err := checker.Check(context.Background(), deps.Version)
	switch {
	case errors.Is(err, updater.ErrVersionInvalid()):
		if !inv.Quiet() {
			fmt.Fprintln(deps.Out, "development build; skipping update check")
		}
		return nil
	case errors.Is(err, updater.ErrCheckFailed()), errors.Is(err, updater.ErrManifestInvalid()):
		if !inv.Quiet() {
			fmt.Fprintf(deps.Err, "update check failed: %v\n", err)
		}
		return nil
	case err != nil:
		return err
	}

	if inv.Format() == invocation.FormatJSON {
		renderer := render.New(deps.Out, deps.Brand.Styles)
		return renderer.Render(string(inv.Format()), render.Document{
			Payload: map[string]any{
				"current": outcome.Current.String(),
				"latest":  outcome.Latest.String(),
				"newer":   outcome.Newer,
				"url":     outcome.Release.URL,
				"notes":   outcome.Release.Notes,
			},
		})
	}

	if inv.Quiet() {
		if outcome.Newer {
			fmt.Fprintf(deps.Out, "v%s\n", outcome.Latest)
		}
		return nil
	}

	if !outcome.Newer {
		fmt.Fprintf(deps.Out, "mycli is up to date (v%s)\n", outcome.Current)
		return nil
	}

	fmt.Fprintf(deps.Out, "update available: v%s (current v%s)\n", outcome.Latest, outcome.Current)
	if outcome.Release.Notes != "" {
		fmt.Fprintf(deps.Out, "notes: %s\n", outcome.Release.Notes)
	}
	if outcome.Release.URL != "" {
		fmt.Fprintf(deps.Out, "download: %s\n", outcome.Release.URL)
	}

	if !opts.Apply {
		fmt.Fprintln(deps.Out, "run 'mycli update --apply' for install instructions")
		return nil
	}
	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would install mycli v%s\n", outcome.Latest)
		return nil
	}
	fmt.Fprintf(deps.Out, "run: go install %s@v%s\n", installPath, outcome.Latest)
	return nil
}
