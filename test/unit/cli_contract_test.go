package unit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Miyamura80/CLI-Template/internal/cli"
)

// contractEnv points every path the process resolves at a fresh temp tree and
// silences branding so output is byte-stable.
func contractEnv(t *testing.T) (configDir, commandsDir string) {
	t.Helper()
	configDir = t.TempDir()
	commandsDir = filepath.Join(configDir, "commands")
	t.Setenv("MYCLI_CONFIG_DIR", configDir)
	t.Setenv("MYCLI_COMMANDS_DIR", commandsDir)
	t.Setenv("MYCLI_TELEMETRY_DISABLED", "1")
	t.Setenv("MYCLI_NO_COLOR", "1")
	t.Setenv("MYCLI_CLI_EMOJI", "")
	return configDir, commandsDir
}

func runContract(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app, err := cli.NewApp(context.Background())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	var out, errOut bytes.Buffer
	app.Root.SetOut(&out)
	app.Root.SetErr(&errOut)
	app.Root.SetArgs(args)
	runErr := app.Execute(context.Background())
	return out.String(), runErr
}

func TestCLIContractVersionFlag(t *testing.T) {
	contractEnv(t)
	out, err := runContract(t, "--version")
	if err != nil {
		t.Fatalf("expected --version to succeed, got %v", err)
	}
	if out != "mycli dev\n" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestCLIContractUnknownCommandExitsTwo(t *testing.T) {
	contractEnv(t)
	_, err := runContract(t, "no-such-command")
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if got := cli.ExitCode(err); got != 2 {
		t.Fatalf("expected exit code 2, got %d", got)
	}
	if !strings.Contains(err.Error(), `unknown command "no-such-command"`) {
		t.Fatalf("unexpected error message %q", err.Error())
	}
}

func TestCLIContractGroupSynopsis(t *testing.T) {
	contractEnv(t)
	out, err := runContract(t, "secrets")
	if err != nil {
		t.Fatalf("expected group invocation to succeed, got %v", err)
	}
	if !strings.Contains(out, "mycli secrets <command>") {
		t.Fatalf("expected group synopsis, got:\n%s", out)
	}
	for _, child := range []string{"set", "get", "list", "delete"} {
		if !strings.Contains(out, child) {
			t.Fatalf("expected synopsis to list %q, got:\n%s", child, out)
		}
	}
}

func TestCLIContractUsageErrorsExitTwo(t *testing.T) {
	cases := map[string][]string{
		"invalid format":      {"--format", "xml", "config", "show"},
		"unknown flag":        {"--bogus"},
		"unknown group child": {"config", "nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			contractEnv(t)
			_, err := runContract(t, args...)
			if err == nil {
				t.Fatalf("expected %s to fail", name)
			}
			if got := cli.ExitCode(err); got != 2 {
				t.Fatalf("expected exit code 2 for %s, got %d (%v)", name, got, err)
			}
		})
	}
}

func TestCLIContractUnitExitCodePropagates(t *testing.T) {
	_, commandsDir := contractEnv(t)
	if err := os.MkdirAll(commandsDir, 0o755); err != nil {
		t.Fatalf("mkdir commands: %v", err)
	}
	unit := "description: Always fails\nrun:\n  - sh\n  - -c\n  - exit 7\n"
	if err := os.WriteFile(filepath.Join(commandsDir, "flaky.yaml"), []byte(unit), 0o644); err != nil {
		t.Fatalf("write unit: %v", err)
	}

	_, err := runContract(t, "flaky")
	if err == nil {
		t.Fatal("expected the failing unit to surface an error")
	}
	if got := cli.ExitCode(err); got != 7 {
		t.Fatalf("expected the unit exit status 7 to propagate, got %d", got)
	}
}

func TestCLIContractDryRunCreatesNoFiles(t *testing.T) {
	configDir, _ := contractEnv(t)
	if _, err := runContract(t, "--dry-run", "config", "set", "cli.emoji", "🚀"); err != nil {
		t.Fatalf("expected dry-run config set to succeed, got %v", err)
	}

	entries, err := os.ReadDir(configDir)
	if err != nil {
		t.Fatalf("read config dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Fatalf("expected no files after a dry run, found %v", names)
	}
}
