package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Miyamura80/CLI-Template/internal/cli"
	"github.com/Miyamura80/CLI-Template/internal/cli/logging"
	"github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	telemetryinit "github.com/Miyamura80/CLI-Template/internal/telemetry"
	"github.com/Miyamura80/CLI-Template/internal/version"
	"github.com/Miyamura80/CLI-Template/pkg/state"
	"github.com/Miyamura80/CLI-Template/pkg/telemetry"
)

var (
	telemetryInit = telemetryinit.InitProvider
	newApp        = cli.NewApp
	osExit        = os.Exit
)

func main() {
	ctx := context.Background()
	shutdown, err := telemetryInit(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize telemetry: %v\n", err)
	}
	if shutdown != nil {
		cleanupCtx, cancel := context.WithTimeout(ctx, telemetryinit.ShutdownTimeout)
		defer func() {
			defer cancel()
			if err := shutdown(cleanupCtx); err != nil {
				fmt.Fprintf(os.Stderr, "telemetry shutdown error: %v\n", err)
			}
		}()
	}

	app, err := newApp(ctx)
	if err != nil {
		cli.WriteError(os.Stderr, err, false)
		osExit(1)
		return
	}
	if logger, logErr := telemetry.NewLogger(os.Stderr, uuid.NewString()); logErr == nil {
		app.Logger = logger
	}

	runCtx, span := otel.Tracer("mycli").Start(ctx, "cli.execute",
		trace.WithSpanKind(trace.SpanKindInternal))
	start := time.Now()
	runErr := app.Execute(runCtx)
	elapsed := time.Since(start)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	span.End()

	recordUsage(app, elapsed, runErr == nil)
	logLifecycle(app, elapsed, runErr)

	if runErr != nil {
		debug := app.Invocation != nil && app.Invocation.Debug()
		cli.WriteError(os.Stderr, runErr, debug)
		osExit(cli.ExitCode(runErr))
	}
}

// recordUsage appends the local usage event. Recording is skipped under
// dry-run, when the kill switch is set, and when the stored preference (or,
// absent one, the configured default) is off. Failures never change the exit
// code.
func recordUsage(app *cli.App, elapsed time.Duration, success bool) {
	inv := app.Invocation
	if inv == nil || inv.DryRun() || app.Command == "" {
		return
	}
	loaded, err := settings.Load()
	if err != nil || bool(loaded.TelemetryDisabled) {
		return
	}
	resolver := paths.NewResolver(paths.Overrides{
		ConfigDir:   loaded.ConfigDir,
		CommandsDir: loaded.CommandsDir,
	})
	stateFile, err := resolver.StateFile()
	if err != nil {
		return
	}
	record, err := state.NewManager(stateFile).Load()
	if err != nil {
		return
	}
	defaultOn, maxEvents := telemetryPolicy(resolver)
	enabled := record.TelemetryOn()
	if record.TelemetryEnabled == nil {
		enabled = defaultOn
	}
	if !enabled {
		return
	}
	logFile, err := resolver.TelemetryFile()
	if err != nil {
		return
	}
	_ = telemetry.NewRecorder(logFile, version.Version, maxEvents).Record(app.Command, elapsed, success)
}

// telemetryPolicy reads the config-layer recording knobs: the default used
// when no explicit preference is stored, and the event cap.
func telemetryPolicy(resolver *paths.Resolver) (bool, int) {
	defaultOn := true
	maxEvents := telemetry.DefaultMaxEvents

	overridesFile, err := resolver.OverridesFile()
	if err != nil {
		return defaultOn, maxEvents
	}
	stack, err := config.LoadStack(overridesFile, os.LookupEnv)
	if err != nil {
		return defaultOn, maxEvents
	}
	if value, err := stack.Resolver.Resolve("telemetry.enabled"); err == nil {
		if on, ok := value.Value.(bool); ok {
			defaultOn = on
		}
	}
	if value, err := stack.Resolver.Resolve("telemetry.max_events"); err == nil {
		switch n := value.Value.(type) {
		case int:
			maxEvents = n
		case float64:
			maxEvents = int(n)
		}
	}
	return defaultOn, maxEvents
}

// logLifecycle emits the sanitized end-of-command entry on debug invocations.
func logLifecycle(app *cli.App, elapsed time.Duration, runErr error) {
	if app.Logger == nil || app.Invocation == nil || !app.Invocation.Debug() {
		return
	}
	entry := telemetry.Entry{
		Category: telemetry.CategoryCommand,
		Message:  "command complete",
		Command:  app.Command,
		Metadata: map[string]string{
			"args":       logging.SanitizeCommand(os.Args[1:]),
			"duration_s": strconv.FormatFloat(elapsed.Seconds(), 'f', 3, 64),
			"exit":       strconv.Itoa(cli.ExitCode(runErr)),
		},
	}
	if runErr != nil {
		entry.Error = errors.New(logging.SanitizeText(runErr.Error()))
	}
	_ = app.Logger.Emit(entry)
}
