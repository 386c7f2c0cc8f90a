// Package doctor implements the doctor command: environment checks with an
// optional repair pass.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	checks "github.com/Miyamura80/CLI-Template/internal/doctor"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/pkg/render"
)

// Options bundles flag values for easier testing.
type Options struct {
	Fix bool
}

// Deps carries the collaborators the doctor command runs with.
type Deps struct {
	Out   io.Writer
	Brand branding.Brand
	Env   func() (checks.Environment, error)
}

func defaultDeps() Deps {
	return Deps{
		Out:   os.Stdout,
		Brand: branding.Resolve(),
		Env:   defaultEnvironment,
	}
}

func defaultEnvironment() (checks.Environment, error) {
	cfg, err := settings.Load()
	if err != nil {
		return checks.Environment{}, err
	}
	resolver := paths.NewResolver(paths.Overrides{ConfigDir: cfg.ConfigDir, CommandsDir: cfg.CommandsDir})

	env := checks.Environment{}
	if env.ConfigDir, err = resolver.ConfigDir(); err != nil {
		return checks.Environment{}, err
	}
	if env.OverridesFile, err = resolver.OverridesFile(); err != nil {
		return checks.Environment{}, err
	}
	if env.CommandsDir, err = resolver.CommandsDir(); err != nil {
		return checks.Environment{}, err
	}
	if env.StateFile, err = resolver.StateFile(); err != nil {
		return checks.Environment{}, err
	}
	if env.SecretsFile, err = resolver.SecretsFile(); err != nil {
		return checks.Environment{}, err
	}
	return env, nil
}

// Spec returns the doctor command unit.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the doctor command unit bound to explicit dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	opts := &Options{}
	return &registry.CommandSpec{
		Name:    "doctor",
		Kind:    registry.KindLeaf,
		Summary: "Check the health of the mycli environment",
		Source:  registry.SourceBuiltin,
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&opts.Fix, "fix", false, "Repair fixable problems before checking")
		},
		Run: func(inv *invocation.Context, args []string) error {
			return runDoctor(inv, *opts, args, deps)
		},
	}
}

// RunDoctorForTest executes the doctor workflow with explicit options.
func RunDoctorForTest(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	return runDoctor(inv, opts, args, deps)
}

func runDoctor(inv *invocation.Context, opts Options, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("doctor takes no arguments")
	}
	env, err := deps.Env()
	if err != nil {
		return err
	}

	if opts.Fix {
		if inv.DryRun() {
			return previewRepairs(env, deps)
		}
		applied, err := checks.Fix(env)
		if err != nil {
			return err
		}
		if !inv.Quiet() {
			for _, action := range applied {
				fmt.Fprintf(deps.Out, "repaired: %s\n", action)
			}
		}
	}

	report := checks.Run(checks.Options{Env: env, WriteProbe: !inv.DryRun()})

	if inv.Quiet() {
		writeQuietSummary(report, deps)
	} else if err := renderReport(inv, opts, report, deps); err != nil {
		return err
	}

	if report.Failed() {
		return clierrors.Runtimef("doctor found failing checks")
	}
	return nil
}

// previewRepairs reports what --fix would do without touching anything. The
// check pass runs with the write probe disabled so it stays read-only.
func previewRepairs(env checks.Environment, deps Deps) error {
	report := checks.Run(checks.Options{Env: env})

	fixable := make([]checks.CheckResult, 0, len(report.Results))
	for _, result := range report.Results {
		if result.Status != checks.StatusPass && result.Fixable {
			fixable = append(fixable, result)
		}
	}
	if len(fixable) == 0 {
		fmt.Fprintln(deps.Out, "[DRY RUN] Nothing to repair")
		return nil
	}
	fmt.Fprintln(deps.Out, "[DRY RUN] Would repair:")
	for _, result := range fixable {
		fmt.Fprintf(deps.Out, "  %s: %s\n", result.Name, result.Detail)
	}
	return nil
}

func writeQuietSummary(report checks.Report, deps Deps) {
	if !report.Failed() {
		fmt.Fprintln(deps.Out, "doctor: OK")
		return
	}
	fmt.Fprintln(deps.Out, "doctor: FAIL")
	for _, result := range report.Results {
		if result.Status == checks.StatusFail {
			fmt.Fprintf(deps.Out, "%s: %s\n", result.Name, result.Detail)
		}
	}
}

func renderReport(inv *invocation.Context, opts Options, report checks.Report, deps Deps) error {
	rows := make([][]string, 0, len(report.Results))
	results := make([]map[string]any, 0, len(report.Results))
	passed, warned, failed := 0, 0, 0
	for _, result := range report.Results {
		rows = append(rows, []string{result.Name, string(result.Status), result.Detail})
		results = append(results, map[string]any{
			"name":    result.Name,
			"status":  string(result.Status),
			"detail":  result.Detail,
			"fixable": result.Fixable,
		})
		switch result.Status {
		case checks.StatusPass:
			passed++
		case checks.StatusWarn:
			warned++
		case checks.StatusFail:
			failed++
		}
	}

	renderer := render.New(deps.Out, deps.Brand.Styles)
	if inv.Format() == invocation.FormatTable {
		renderer.Heading("Doctor Report")
	}
	doc := render.Document{
		Table:   render.Table{Columns: []string{"check", "status", "detail"}, Rows: rows},
		Payload: map[string]any{"results": results, "ok": !report.Failed()},
	}
	if err := renderer.Render(string(inv.Format()), doc); err != nil {
		return err
	}

	if inv.Format() == invocation.FormatTable {
		summary := fmt.Sprintf("%d passed, %d warnings, %d failed", passed, warned, failed)
		style := deps.Brand.Styles.Success
		if report.Failed() {
			style = deps.Brand.Styles.Failure
		}
		fmt.Fprintf(deps.Out, "\n%s\n", style.Sprint(summary))
		if !opts.Fix && report.Fixable() {
			fmt.Fprintln(deps.Out, "run 'mycli doctor --fix' to repair fixable issues")
		}
	}
	return nil
}
