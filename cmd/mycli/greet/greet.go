// Package greet implements the example greet command.
package greet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/pkg/render"
)

// Options bundles flag values for easier testing.
type Options struct {
	Shout bool
	Times int
}

// Deps carries the writers and prompt hooks the command runs with.
type Deps struct {
	Out        io.Writer
	Err        io.Writer
	In         io.Reader
	IsTerminal func() bool
	Brand      branding.Brand
}

func defaultDeps() Deps {
	return Deps{
		Out:        os.Stdout,
		Err:        os.Stderr,
		In:         os.Stdin,
		IsTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		Brand:      branding.Resolve(),
	}
}

// Spec returns the greet command unit.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the greet command unit bound to explicit dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	opts := &Options{Times: 1}
	return &registry.CommandSpec{
		Name:    "greet",
		Kind:    registry.KindLeaf,
		Summary: "Greet someone by name",
		Source:  registry.SourceBuiltin,
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVarP(&opts.Shout, "shout", "s", false, "SHOUT the greeting")
			fs.IntVarP(&opts.Times, "times", "t", 1, "Number of times to greet")
		},
		Run: func(inv *invocation.Context, args []string) error {
			return runGreet(inv, *opts, args, deps)
		},
	}
}

// RunGreetForTest executes the greet workflow with explicit options.
func RunGreetForTest(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	return runGreet(inv, opts, args, deps)
}

func runGreet(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	name, err := resolveName(args, deps)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return clierrors.Usagef("unexpected arguments: %s", strings.Join(args[1:], " "))
	}
	if opts.Times < 1 {
		return clierrors.Usagef("--times must be at least 1, got %d", opts.Times)
	}

	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would greet %s\n", name)
		return nil
	}

	greeting := fmt.Sprintf("Hello, %s!", name)
	if opts.Shout {
		greeting = strings.ToUpper(greeting)
	}
	if deps.Brand.Emoji != "" {
		greeting = deps.Brand.Emoji + " " + greeting
	}

	if inv.Verbose() {
		return renderDetails(inv, opts, name, greeting, deps)
	}

	for i := 0; i < opts.Times; i++ {
		fmt.Fprintln(deps.Out, greeting)
	}
	return nil
}

func renderDetails(inv *invocation.Context, opts Options, name, greeting string, deps Deps) error {
	renderer := render.New(deps.Out, deps.Brand.Styles)
	if inv.Format() == invocation.FormatTable && !inv.Quiet() {
		renderer.Heading("Greet Details")
	}

	doc := render.Document{
		Table: render.Table{
			Columns: []string{"field", "value"},
			Rows: [][]string{
				{"name", name},
				{"shout", strconv.FormatBool(opts.Shout)},
				{"times", strconv.Itoa(opts.Times)},
				{"greeting", greeting},
			},
		},
		Payload: map[string]any{
			"name":     name,
			"shout":    opts.Shout,
			"times":    opts.Times,
			"greeting": greeting,
		},
	}
	return renderer.Render(string(inv.Format()), doc)
}

func resolveName(args []string, deps Deps) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if deps.IsTerminal != nil && deps.IsTerminal() {
		fmt.Fprint(deps.Err, "Enter name: ")
		line, _ := bufio.NewReader(deps.In).ReadString('\n')
		if name := strings.TrimSpace(line); name != "" {
			return name, nil
		}
	}
	return "", clierrors.Usagef("name is required")
}
