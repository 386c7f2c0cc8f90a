// Package completions implements the completions command group. Scripts are
// generated from the assembled cobra tree, so discovered units complete the
// same way builtins do.
package completions

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/registry"
)

// Deps carries the collaborators the completions commands run with. Root is
// injected by the cli layer once the full command tree exists.
type Deps struct {
	Out  io.Writer
	Root func() (*cobra.Command, error)
	Home func() (string, error)
}

// Spec returns the completions command group bound to deps. There is no
// zero-argument constructor; the root command closure only exists after the
// tree is assembled.
func Spec(deps Deps) *registry.CommandSpec {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Home == nil {
		deps.Home = os.UserHomeDir
	}
	return &registry.CommandSpec{
		Name:    "completions",
		Kind:    registry.KindGroup,
		Summary: "Generate and install shell completions",
		Source:  registry.SourceBuiltin,
		Children: []*registry.CommandSpec{
			{
				Name:    "show",
				Kind:    registry.KindLeaf,
				Summary: "Write the completion script for a shell to stdout",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runShow(inv, args, deps)
				},
			},
			{
				Name:    "install",
				Kind:    registry.KindLeaf,
				Summary: "Install completions into the shell configuration",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runInstall(inv, args, deps)
				},
			},
		},
	}
}

// RunShowForTest executes completions show with explicit dependencies.
func RunShowForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runShow(inv, args, deps)
}

// RunInstallForTest executes completions install with explicit dependencies.
func RunInstallForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runInstall(inv, args, deps)
}

func parseShell(args []string) (string, error) {
	if len(args) != 1 {
		return "", clierrors.Usagef("expected exactly one shell (bash, zsh, or fish)")
	}
	shell := strings.ToLower(args[0])
	switch shell {
	case "bash", "zsh", "fish":
		return shell, nil
	default:
		return "", clierrors.Usagef("unsupported shell %q (want bash, zsh, or fish)", args[0])
	}
}

func runShow(inv *invocation.Context, args []string, deps Deps) error {
	shell, err := parseShell(args)
	if err != nil {
		return err
	}
	return writeScript(deps, shell, deps.Out)
}

func writeScript(deps Deps, shell string, w io.Writer) error {
	root, err := deps.Root()
	if err != nil {
		return err
	}
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	default:
		return root.GenFishCompletion(w, true)
	}
}

func runInstall(inv *invocation.Context, args []string, deps Deps) error {
	shell, err := parseShell(args)
	if err != nil {
		return err
	}
	home, err := deps.Home()
	if err != nil {
		return fmt.Errorf("determine home directory: %w", err)
	}

	if shell == "fish" {
		return installFish(inv, home, deps)
	}
	return installRC(inv, shell, home, deps)
}

// installRC appends a source line to the shell rc file. The line is a marker
// as well: a second install finds it and leaves the file alone.
func installRC(inv *invocation.Context, shell, home string, deps Deps) error {
	rc := filepath.Join(home, "."+shell+"rc")
	marker := fmt.Sprintf("source <(mycli completions show %s)", shell)

	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would append %q to %s\n", marker, rc)
		return nil
	}

	existing, err := os.ReadFile(rc)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", rc, err)
	}
	if strings.Contains(string(existing), marker) {
		if !inv.Quiet() {
			fmt.Fprintf(deps.Out, "completions already installed in %s\n", rc)
		}
		return nil
	}

	f, err := os.OpenFile(rc, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", rc, err)
	}
	defer f.Close()

	block := marker + "\n"
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		block = "\n" + block
	}
	if _, err := fmt.Fprintf(f, "\n# mycli completions\n%s", block); err != nil {
		return fmt.Errorf("append to %s: %w", rc, err)
	}

	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "installed %s completions (%s)\n", shell, rc)
		fmt.Fprintf(deps.Out, "restart your shell or run 'source %s'\n", rc)
	}
	return nil
}

// installFish writes the generated script where fish auto-loads it. The file
// is regenerated on every install so it tracks the current command tree.
func installFish(inv *invocation.Context, home string, deps Deps) error {
	dir := filepath.Join(home, ".config", "fish", "completions")
	path := filepath.Join(dir, "mycli.fish")

	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would write %s\n", path)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	var script strings.Builder
	if err := writeScript(deps, "fish", &script); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(script.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "installed fish completions (%s)\n", path)
	}
	return nil
}
