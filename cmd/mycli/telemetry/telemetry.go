// Package telemetry implements the telemetry command group: status, enable,
// and disable. The preference persists in the state file; the
// MYCLI_TELEMETRY_DISABLED kill switch wins over any stored preference.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/pkg/render"
	"github.com/Miyamura80/CLI-Template/pkg/state"
	eventlog "github.com/Miyamura80/CLI-Template/pkg/telemetry"
)

// Environment carries the file locations and the process-level kill switch.
type Environment struct {
	StateFile string
	LogFile   string
	ForcedOff bool
}

// Deps carries the collaborators the telemetry commands run with.
type Deps struct {
	Out   io.Writer
	Brand branding.Brand
	Env   func() (Environment, error)
}

func defaultDeps() Deps {
	return Deps{
		Out:   os.Stdout,
		Brand: branding.Resolve(),
		Env:   defaultEnvironment,
	}
}

func defaultEnvironment() (Environment, error) {
	cfg, err := settings.Load()
	if err != nil {
		return Environment{}, err
	}
	resolver := paths.NewResolver(paths.Overrides{ConfigDir: cfg.ConfigDir, CommandsDir: cfg.CommandsDir})

	stateFile, err := resolver.StateFile()
	if err != nil {
		return Environment{}, err
	}
	logFile, err := resolver.TelemetryFile()
	if err != nil {
		return Environment{}, err
	}
	return Environment{
		StateFile: stateFile,
		LogFile:   logFile,
		ForcedOff: bool(cfg.TelemetryDisabled),
	}, nil
}

// Spec returns the telemetry command group.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the telemetry command group bound to explicit
// dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	return &registry.CommandSpec{
		Name:    "telemetry",
		Kind:    registry.KindGroup,
		Summary: "Inspect and control local usage telemetry",
		Source:  registry.SourceBuiltin,
		Children: []*registry.CommandSpec{
			{
				Name:    "status",
				Kind:    registry.KindLeaf,
				Summary: "Show the effective telemetry state",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runStatus(inv, args, deps)
				},
			},
			{
				Name:    "enable",
				Kind:    registry.KindLeaf,
				Summary: "Record a preference for telemetry collection",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runToggle(inv, args, deps, true)
				},
			},
			{
				Name:    "disable",
				Kind:    registry.KindLeaf,
				Summary: "Record a preference against telemetry collection",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runToggle(inv, args, deps, false)
				},
			},
		},
	}
}

// RunStatusForTest executes telemetry status with explicit dependencies.
func RunStatusForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runStatus(inv, args, deps)
}

// RunToggleForTest executes telemetry enable or disable with explicit
// dependencies.
func RunToggleForTest(inv *invocation.Context, args []string, deps Deps, enable bool) error {
	return runToggle(inv, args, deps, enable)
}

func runStatus(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("telemetry status takes no arguments")
	}
	env, err := deps.Env()
	if err != nil {
		return err
	}
	record, err := state.NewManager(env.StateFile).Load()
	if err != nil {
		return err
	}
	events, err := eventlog.NewRecorder(env.LogFile, "", 0).Events()
	if err != nil {
		return err
	}

	effective := record.TelemetryOn() && !env.ForcedOff
	if inv.Quiet() {
		if effective {
			fmt.Fprintln(deps.Out, "on")
		} else {
			fmt.Fprintln(deps.Out, "off")
		}
		return nil
	}

	renderer := render.New(deps.Out, deps.Brand.Styles)
	if inv.Format() == invocation.FormatTable {
		renderer.Heading("Telemetry")
	}
	doc := render.Document{
		Table: render.Table{
			Columns: []string{"field", "value"},
			Rows: [][]string{
				{"enabled", strconv.FormatBool(effective)},
				{"preference", preference(record)},
				{"kill_switch", strconv.FormatBool(env.ForcedOff)},
				{"events", strconv.Itoa(len(events))},
				{"log", env.LogFile},
			},
		},
		Payload: map[string]any{
			"enabled":     effective,
			"preference":  preference(record),
			"kill_switch": env.ForcedOff,
			"events":      len(events),
			"log":         env.LogFile,
		},
	}
	return renderer.Render(string(inv.Format()), doc)
}

func runToggle(inv *invocation.Context, args []string, deps Deps, enable bool) error {
	if len(args) > 0 {
		return clierrors.Usagef("telemetry %s takes no arguments", verb(enable))
	}
	env, err := deps.Env()
	if err != nil {
		return err
	}

	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would %s telemetry\n", verb(enable))
		return nil
	}

	_, err = state.NewManager(env.StateFile).Update(func(record *state.Record) {
		value := enable
		record.TelemetryEnabled = &value
	})
	if err != nil {
		return err
	}

	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "telemetry %sd\n", verb(enable))
		if enable && env.ForcedOff {
			fmt.Fprintln(deps.Out, "MYCLI_TELEMETRY_DISABLED is set; telemetry stays off until it is unset")
		}
	}
	return nil
}

func preference(record state.Record) string {
	if record.TelemetryEnabled == nil {
		return "enabled (default)"
	}
	if *record.TelemetryEnabled {
		return "enabled"
	}
	return "disabled"
}

func verb(enable bool) string {
	if enable {
		return "enable"
	}
	return "disable"
}
