// Package execrunner executes discovered command units as subprocesses with
// inherited stdio. With a structured logger attached it emits sanitized
// start/completion events for every spawned unit.
package execrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Miyamura80/CLI-Template/internal/cli/logging"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/pkg/telemetry"
)

// ExitError reports a unit subprocess that terminated with a non-zero status.
// The status propagates to the mycli process exit code.
type ExitError struct {
	Cmd  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Cmd, e.Code)
}

// Runner turns unit argv vectors into entry points.
type Runner struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger telemetry.StructuredLogger
}

// New constructs a runner wired to the host process stdio.
func New(ctx context.Context) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Runner{
		ctx:    ctx,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithStdio overrides the streams handed to unit subprocesses.
func (r *Runner) WithStdio(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	r.stdin = stdin
	r.stdout = stdout
	r.stderr = stderr
	return r
}

// WithLogger attaches a structured logger. Unit starts and completions are
// then emitted with sanitized command lines and the active MYCLI_* knobs.
func (r *Runner) WithLogger(logger telemetry.StructuredLogger) *Runner {
	r.logger = logger
	return r
}

// Entry builds the entry point for a unit leaf. The returned function appends
// the invocation arguments to the declared argv; under dry-run it echoes the
// command line instead of spawning anything.
func (r *Runner) Entry(source string, argv []string) registry.EntryPoint {
	declared := append([]string(nil), argv...)
	return func(inv *invocation.Context, args []string) error {
		full := append(append([]string(nil), declared...), args...)
		if len(full) == 0 || full[0] == "" {
			return fmt.Errorf("unit %s: empty command line", source)
		}

		if inv.DryRun() {
			fmt.Fprintf(r.stderr, "+ %s\n", strings.Join(full, " "))
			return nil
		}
		if inv.Debug() {
			fmt.Fprintf(r.stderr, "+ %s\n", strings.Join(full, " "))
		}

		sanitized := logging.SanitizeCommand(full)
		r.emit(telemetry.Entry{
			Category: telemetry.CategoryCommand,
			Message:  "unit start",
			Command:  sanitized,
			Metadata: envMetadata(map[string]string{"unit": source}),
		})

		start := time.Now()
		cmd := exec.CommandContext(r.ctx, full[0], full[1:]...)
		cmd.Stdin = r.stdin
		cmd.Stdout = r.stdout
		cmd.Stderr = r.stderr
		runErr := cmd.Run()
		r.emitCompletion(source, sanitized, time.Since(start), runErr)

		if runErr == nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return &ExitError{Cmd: full[0], Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("run %s: %w", full[0], runErr)
	}
}

func (r *Runner) emitCompletion(source, sanitized string, elapsed time.Duration, runErr error) {
	if r.logger == nil {
		return
	}

	exitCode := 0
	severity := telemetry.SeverityInfo
	if runErr != nil {
		severity = telemetry.SeverityError
		exitCode = 1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	metadata := envMetadata(map[string]string{
		"unit":       source,
		"exitCode":   strconv.Itoa(exitCode),
		"duration_s": strconv.FormatFloat(elapsed.Seconds(), 'f', 3, 64),
	})
	entry := telemetry.Entry{
		Category: telemetry.CategoryCommand,
		Message:  "unit complete",
		Severity: severity,
		Command:  sanitized,
		Metadata: metadata,
	}
	if runErr != nil {
		entry.Error = errors.New(logging.SanitizeText(runErr.Error()))
	}
	r.emit(entry)
}

func (r *Runner) emit(entry telemetry.Entry) {
	if r.logger == nil {
		return
	}
	if err := r.logger.Emit(entry); err != nil {
		fmt.Fprintf(r.stderr, "structured log emit failed: %v\n", err)
	}
}

// envMetadata merges the sanitized MYCLI_* environment into base so unit logs
// record which knobs steered the run.
func envMetadata(base map[string]string) map[string]string {
	env := map[string]string{}
	for _, pair := range os.Environ() {
		key, value, found := strings.Cut(pair, "=")
		if !found || !strings.HasPrefix(key, "MYCLI_") {
			continue
		}
		env[key] = value
	}
	for key, value := range logging.SanitizeEnv(env) {
		base["env."+strings.ToLower(key)] = value
	}
	return base
}
