// Package config implements the config command group: show, get, and set.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	configstack "github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/pkg/render"
)

// Deps carries the collaborators the config commands run with.
type Deps struct {
	Out   io.Writer
	Brand branding.Brand
	Stack func() (*configstack.Stack, error)
}

func defaultDeps() Deps {
	return Deps{
		Out:   os.Stdout,
		Brand: branding.Resolve(),
		Stack: loadStack,
	}
}

func loadStack() (*configstack.Stack, error) {
	cfg, err := settings.Load()
	if err != nil {
		return nil, err
	}
	resolver := paths.NewResolver(paths.Overrides{ConfigDir: cfg.ConfigDir, CommandsDir: cfg.CommandsDir})
	overridesFile, err := resolver.OverridesFile()
	if err != nil {
		return nil, err
	}
	return configstack.LoadStack(overridesFile, os.LookupEnv)
}

// Spec returns the config command group.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the config command group bound to explicit dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	return &registry.CommandSpec{
		Name:    "config",
		Kind:    registry.KindGroup,
		Summary: "Inspect and modify configuration",
		Source:  registry.SourceBuiltin,
		Children: []*registry.CommandSpec{
			{
				Name:    "show",
				Kind:    registry.KindLeaf,
				Summary: "Print the merged configuration with provenance",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runShow(inv, args, deps)
				},
			},
			{
				Name:    "get",
				Kind:    registry.KindLeaf,
				Summary: "Print the effective value of one path",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runGet(inv, args, deps)
				},
			},
			{
				Name:    "set",
				Kind:    registry.KindLeaf,
				Summary: "Persist an override for one path",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runSet(inv, args, deps)
				},
			},
		},
	}
}

// RunShowForTest executes config show with explicit dependencies.
func RunShowForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runShow(inv, args, deps)
}

// RunGetForTest executes config get with explicit dependencies.
func RunGetForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runGet(inv, args, deps)
}

// RunSetForTest executes config set with explicit dependencies.
func RunSetForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runSet(inv, args, deps)
}

func runShow(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("config show takes no arguments")
	}
	stack, err := deps.Stack()
	if err != nil {
		return err
	}

	entries := stack.Resolver.Entries()
	rows := make([][]string, 0, len(entries))
	payload := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{entry.Path, configstack.FormatValue(entry.Value), string(entry.Source)})
		payload = append(payload, map[string]any{
			"path":   entry.Path,
			"value":  entry.Value,
			"source": string(entry.Source),
		})
	}

	renderer := render.New(deps.Out, deps.Brand.Styles)
	if inv.Format() == invocation.FormatTable && !inv.Quiet() {
		renderer.Heading("Configuration")
	}
	doc := render.Document{
		Table:   render.Table{Columns: []string{"path", "value", "source"}, Rows: rows},
		Payload: payload,
	}
	if err := renderer.Render(string(inv.Format()), doc); err != nil {
		return err
	}

	if inv.Verbose() && inv.Format() == invocation.FormatTable {
		for _, message := range stack.Resolver.Messages() {
			fmt.Fprintln(deps.Out, message)
		}
	}
	return nil
}

func runGet(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) != 1 {
		return clierrors.Usagef("config get expects exactly one path")
	}
	stack, err := deps.Stack()
	if err != nil {
		return err
	}
	value, err := stack.Resolver.Resolve(args[0])
	if err != nil {
		return err
	}

	if inv.Format() == invocation.FormatJSON {
		renderer := render.New(deps.Out, deps.Brand.Styles)
		return renderer.Render(string(inv.Format()), render.Document{
			Payload: map[string]any{
				"path":   args[0],
				"value":  value.Value,
				"source": string(value.Source),
			},
		})
	}

	if inv.Verbose() {
		fmt.Fprintf(deps.Out, "%s\t(%s)\n", configstack.FormatValue(value.Value), value.Source)
		return nil
	}
	fmt.Fprintln(deps.Out, configstack.FormatValue(value.Value))
	return nil
}

func runSet(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) != 2 {
		return clierrors.Usagef("config set expects a path and a value")
	}
	path, raw := args[0], args[1]

	stack, err := deps.Stack()
	if err != nil {
		return err
	}

	if inv.DryRun() {
		if err := configstack.ValidatePath(path); err != nil {
			return err
		}
		value, err := stack.Schema.CoerceForPath(path, raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(deps.Out, "[DRY RUN] Would set %s to %s\n", path, configstack.FormatValue(value))
		return nil
	}

	value, err := stack.SetValue(path, raw)
	if err != nil {
		return err
	}
	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "set %s = %s (override)\n", path, configstack.FormatValue(value))
	}
	return nil
}
