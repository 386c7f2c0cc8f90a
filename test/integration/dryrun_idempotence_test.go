package integration

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	configcmd "github.com/Miyamura80/CLI-Template/cmd/mycli/config"
	"github.com/Miyamura80/CLI-Template/cmd/mycli/initcmd"
	secretscmd "github.com/Miyamura80/CLI-Template/cmd/mycli/secrets"
	telemetrycmd "github.com/Miyamura80/CLI-Template/cmd/mycli/telemetry"
	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/pkg/render"
	"github.com/Miyamura80/CLI-Template/pkg/scaffold"
)

func dryRunInvocation(t *testing.T) *invocation.Context {
	t.Helper()
	inv, err := invocation.New(invocation.Options{DryRun: true})
	if err != nil {
		t.Fatalf("invocation.New: %v", err)
	}
	return inv
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected %s to be absent, stat returned %v", path, err)
	}
}

func TestDryRunMutatorsLeaveNoFiles(t *testing.T) {
	brand := branding.Brand{Styles: render.NewStyles("cyan", "green", false)}
	inv := dryRunInvocation(t)

	t.Run("config set", func(t *testing.T) {
		overridesPath := filepath.Join(t.TempDir(), "overrides.yaml")
		var out bytes.Buffer
		deps := configcmd.Deps{
			Out:   &out,
			Brand: brand,
			Stack: func() (*config.Stack, error) { return config.LoadStack(overridesPath, mapLookup(nil)) },
		}
		if err := configcmd.RunSetForTest(inv, []string{"cli.emoji", "🚀"}, deps); err != nil {
			t.Fatalf("config set: %v", err)
		}
		if !strings.HasPrefix(out.String(), "[DRY RUN] Would set cli.emoji") {
			t.Fatalf("unexpected output %q", out.String())
		}
		mustNotExist(t, overridesPath)
	})

	t.Run("init", func(t *testing.T) {
		commandsDir := filepath.Join(t.TempDir(), "commands")
		var out bytes.Buffer
		deps := initcmd.Deps{
			Out:       &out,
			Generator: func() (*scaffold.Generator, error) { return scaffold.NewGenerator(commandsDir), nil },
		}
		if err := initcmd.RunInitForTest(inv, initcmd.Options{Description: "Deploy the app"}, []string{"deploy_app"}, deps); err != nil {
			t.Fatalf("init: %v", err)
		}
		if !strings.HasPrefix(out.String(), "[DRY RUN] Would create ") {
			t.Fatalf("unexpected output %q", out.String())
		}
		mustNotExist(t, filepath.Join(commandsDir, "deploy_app.yaml"))
		mustNotExist(t, commandsDir)
	})

	t.Run("secrets set", func(t *testing.T) {
		storePath := filepath.Join(t.TempDir(), "secrets.enc")
		var out bytes.Buffer
		deps := secretscmd.Deps{
			Out:   &out,
			Err:   &bytes.Buffer{},
			In:    strings.NewReader(""),
			Brand: brand,
			Env: func() (secretscmd.Environment, error) {
				return secretscmd.Environment{StorePath: storePath, Passphrase: "pw"}, nil
			},
		}
		if err := secretscmd.RunSetForTest(inv, []string{"API_TOKEN", "sk-live-1"}, deps); err != nil {
			t.Fatalf("secrets set: %v", err)
		}
		if !strings.HasPrefix(out.String(), "[DRY RUN] Would set secret API_TOKEN") {
			t.Fatalf("unexpected output %q", out.String())
		}
		mustNotExist(t, storePath)
	})

	t.Run("telemetry disable", func(t *testing.T) {
		dir := t.TempDir()
		statePath := filepath.Join(dir, "state.json")
		var out bytes.Buffer
		deps := telemetrycmd.Deps{
			Out:   &out,
			Brand: brand,
			Env: func() (telemetrycmd.Environment, error) {
				return telemetrycmd.Environment{
					StateFile: statePath,
					LogFile:   filepath.Join(dir, "telemetry.json"),
				}, nil
			},
		}
		if err := telemetrycmd.RunToggleForTest(inv, nil, deps, false); err != nil {
			t.Fatalf("telemetry disable: %v", err)
		}
		if !strings.HasPrefix(out.String(), "[DRY RUN] Would disable telemetry") {
			t.Fatalf("unexpected output %q", out.String())
		}
		mustNotExist(t, statePath)
	})
}

func TestDryRunAfterRealWriteLeavesBytesUntouched(t *testing.T) {
	overridesPath := filepath.Join(t.TempDir(), "overrides.yaml")
	deps := configcmd.Deps{
		Out:   &bytes.Buffer{},
		Brand: branding.Brand{Styles: render.NewStyles("cyan", "green", false)},
		Stack: func() (*config.Stack, error) { return config.LoadStack(overridesPath, mapLookup(nil)) },
	}

	real, err := invocation.New(invocation.Options{})
	if err != nil {
		t.Fatalf("invocation.New: %v", err)
	}
	if err := configcmd.RunSetForTest(real, []string{"logging.level", "warn"}, deps); err != nil {
		t.Fatalf("config set: %v", err)
	}
	before, err := os.ReadFile(overridesPath)
	if err != nil {
		t.Fatalf("read overrides: %v", err)
	}

	if err := configcmd.RunSetForTest(dryRunInvocation(t), []string{"logging.level", "error"}, deps); err != nil {
		t.Fatalf("dry-run config set: %v", err)
	}
	after, err := os.ReadFile(overridesPath)
	if err != nil {
		t.Fatalf("read overrides after dry run: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("dry run modified the overrides file:\nbefore: %s\nafter: %s", before, after)
	}
}
