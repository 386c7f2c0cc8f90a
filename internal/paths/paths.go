// Package paths resolves where mycli keeps its per-user files: the override
// store, the persisted state, the telemetry log, the secret store, and the
// commands directory holding discovered units.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName      = "mycli"
	overridesName   = "overrides.yaml"
	stateName       = "state.json"
	telemetryName   = "telemetry.json"
	secretsName     = "secrets.enc"
	commandsDirName = "commands"
)

var (
	errHomeUnavailable = errors.New("unable to determine user home directory")
	errInvalidFileName = errors.New("filename must not contain path separators, control characters, or reserved names")
)

// Overrides carries directory overrides sourced from the process environment.
type Overrides struct {
	ConfigDir   string
	CommandsDir string
}

// Resolver resolves application file paths according to overrides and
// platform defaults.
type Resolver struct {
	overrides Overrides
}

// NewResolver constructs a path resolver.
func NewResolver(overrides Overrides) *Resolver {
	return &Resolver{overrides: overrides}
}

// ConfigDir returns the directory holding all persisted application files.
// Precedence: explicit override, $XDG_CONFIG_HOME/mycli, ~/.config/mycli.
func (r *Resolver) ConfigDir() (string, error) {
	if r.overrides.ConfigDir != "" {
		return absolute(r.overrides.ConfigDir)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(filepath.Clean(xdg), appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine config directory: %w", err)
	}
	if home == "" {
		return "", errHomeUnavailable
	}
	return filepath.Join(filepath.Clean(home), ".config", appDirName), nil
}

// CommandsDir returns the directory scanned for command units.
func (r *Resolver) CommandsDir() (string, error) {
	if r.overrides.CommandsDir != "" {
		return absolute(r.overrides.CommandsDir)
	}
	return r.configFile(commandsDirName)
}

// OverridesFile returns the path of the persisted configuration overrides.
func (r *Resolver) OverridesFile() (string, error) { return r.configFile(overridesName) }

// StateFile returns the path of the persisted application state.
func (r *Resolver) StateFile() (string, error) { return r.configFile(stateName) }

// TelemetryFile returns the path of the local telemetry event log.
func (r *Resolver) TelemetryFile() (string, error) { return r.configFile(telemetryName) }

// SecretsFile returns the path of the encrypted secret store.
func (r *Resolver) SecretsFile() (string, error) { return r.configFile(secretsName) }

func (r *Resolver) configFile(name string) (string, error) {
	dir, err := r.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func absolute(dir string) (string, error) {
	dir = filepath.Clean(dir)
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory override: %w", err)
	}
	return abs, nil
}

// InvalidFileName reports whether name is unsafe to create inside the config
// or commands directory.
func InvalidFileName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return true
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return true
		}
	}
	// Reserved Windows filenames (case-insensitive)
	reserved := []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
	}
	upper := strings.ToUpper(name)
	for _, res := range reserved {
		if upper == res || strings.HasPrefix(upper, res+".") {
			return true
		}
	}
	return false
}

// ErrInvalidFileName exposes the filename validation error.
func ErrInvalidFileName() error { return errInvalidFileName }
