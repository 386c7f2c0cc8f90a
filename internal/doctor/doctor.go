// Package doctor runs environment health checks over the files the CLI
// depends on. Checks only observe; repairs run separately through Fix.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/discovery"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/pkg/secrets"
)

// Status classifies a check outcome.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckResult is one row of the doctor report.
type CheckResult struct {
	Name    string
	Status  Status
	Detail  string
	Fixable bool
}

// Report aggregates check results.
type Report struct {
	Results []CheckResult
}

// Failed reports whether any check failed.
func (r Report) Failed() bool {
	for _, result := range r.Results {
		if result.Status == StatusFail {
			return true
		}
	}
	return false
}

// Fixable reports whether any non-passing check has a known repair.
func (r Report) Fixable() bool {
	for _, result := range r.Results {
		if result.Status != StatusPass && result.Fixable {
			return true
		}
	}
	return false
}

// Environment names the files and directories the checks probe.
type Environment struct {
	ConfigDir     string
	OverridesFile string
	CommandsDir   string
	StateFile     string
	SecretsFile   string
}

// Options configures a doctor run. WriteProbe enables the temp-file write
// test; dry-run invocations disable it.
type Options struct {
	Env        Environment
	WriteProbe bool
}

// Run executes every check and returns the report.
func Run(opts Options) Report {
	return Report{Results: []CheckResult{
		checkDefaults(),
		checkOverrides(opts),
		checkCommands(opts.Env),
		checkState(opts),
		checkSecrets(opts.Env),
	}}
}

func checkDefaults() CheckResult {
	schema, err := config.LoadSchema()
	if err != nil {
		return CheckResult{Name: "config defaults", Status: StatusFail, Detail: err.Error()}
	}
	return CheckResult{
		Name:   "config defaults",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d paths declared", len(schema.Paths())),
	}
}

func checkOverrides(opts Options) CheckResult {
	result := CheckResult{Name: "override store"}

	if _, err := os.Stat(opts.Env.ConfigDir); err != nil {
		result.Status = StatusWarn
		result.Detail = "config directory not created yet"
		result.Fixable = true
		return result
	}

	if opts.WriteProbe {
		if err := probeWrite(opts.Env.ConfigDir); err != nil {
			result.Status = StatusFail
			result.Detail = fmt.Sprintf("config directory not writable: %v", err)
			return result
		}
	}

	if _, err := os.Stat(opts.Env.OverridesFile); err != nil {
		result.Status = StatusPass
		result.Detail = "no overrides set"
		return result
	}

	layer, err := config.NewOverrideStore(opts.Env.OverridesFile).Layer()
	if err != nil {
		result.Status = StatusFail
		result.Detail = fmt.Sprintf("overrides file malformed: %v", err)
		result.Fixable = true
		return result
	}

	result.Status = StatusPass
	result.Detail = fmt.Sprintf("%d overrides set", len(layer))
	return result
}

func checkCommands(env Environment) CheckResult {
	result := CheckResult{Name: "commands directory"}

	if _, err := os.Stat(env.CommandsDir); err != nil {
		result.Status = StatusWarn
		result.Detail = "not created yet (mycli init adds it)"
		result.Fixable = true
		return result
	}

	specs, err := discovery.Load(discovery.Options{
		Dir: env.CommandsDir,
		Entry: func(string, []string) registry.EntryPoint {
			return func(*invocation.Context, []string) error { return nil }
		},
	})
	if err != nil {
		result.Status = StatusFail
		result.Detail = err.Error()
		return result
	}

	result.Status = StatusPass
	switch len(specs) {
	case 0:
		result.Detail = "no units"
	case 1:
		result.Detail = "1 unit valid"
	default:
		result.Detail = fmt.Sprintf("%d units valid", len(specs))
	}
	return result
}

func checkState(opts Options) CheckResult {
	result := CheckResult{Name: "state store"}

	data, err := os.ReadFile(opts.Env.StateFile)
	if err != nil {
		if os.IsNotExist(err) {
			result.Status = StatusPass
			result.Detail = "not created yet"
			return result
		}
		result.Status = StatusFail
		result.Detail = err.Error()
		return result
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		result.Status = StatusFail
		result.Detail = fmt.Sprintf("state file corrupt: %v", err)
		result.Fixable = true
		return result
	}

	if opts.WriteProbe {
		if err := probeWrite(filepath.Dir(opts.Env.StateFile)); err != nil {
			result.Status = StatusFail
			result.Detail = fmt.Sprintf("state directory not writable: %v", err)
			return result
		}
	}

	result.Status = StatusPass
	result.Detail = "readable"
	return result
}

func checkSecrets(env Environment) CheckResult {
	result := CheckResult{Name: "secrets store"}

	payload, err := os.ReadFile(env.SecretsFile)
	if err != nil {
		if os.IsNotExist(err) {
			result.Status = StatusPass
			result.Detail = "not created yet"
			return result
		}
		result.Status = StatusFail
		result.Detail = err.Error()
		return result
	}

	if !secrets.IsEnvelope(payload) {
		result.Status = StatusFail
		result.Detail = "file is not a secrets envelope"
		return result
	}

	result.Status = StatusPass
	result.Detail = "envelope intact"
	return result
}

func probeWrite(dir string) error {
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	probe.Close()
	return os.Remove(probe.Name())
}
