package doctor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Miyamura80/CLI-Template/internal/config"
)

// Fix applies the known repairs for fixable findings and returns a
// description of each action taken. Malformed files are moved aside, never
// deleted.
func Fix(env Environment) ([]string, error) {
	var applied []string

	if _, err := os.Stat(env.ConfigDir); err != nil {
		if err := os.MkdirAll(env.ConfigDir, 0o700); err != nil {
			return applied, fmt.Errorf("create config directory: %w", err)
		}
		applied = append(applied, fmt.Sprintf("created config directory %s", env.ConfigDir))
	}

	if _, err := os.Stat(env.CommandsDir); err != nil {
		if err := os.MkdirAll(env.CommandsDir, 0o755); err != nil {
			return applied, fmt.Errorf("create commands directory: %w", err)
		}
		applied = append(applied, fmt.Sprintf("created commands directory %s", env.CommandsDir))
	}

	if _, err := os.Stat(env.OverridesFile); err == nil {
		if _, err := config.NewOverrideStore(env.OverridesFile).Layer(); err != nil {
			backup := env.OverridesFile + ".bak"
			if err := os.Rename(env.OverridesFile, backup); err != nil {
				return applied, fmt.Errorf("back up overrides file: %w", err)
			}
			applied = append(applied, fmt.Sprintf("moved malformed overrides to %s", backup))
		}
	}

	if data, err := os.ReadFile(env.StateFile); err == nil {
		var decoded map[string]any
		if json.Unmarshal(data, &decoded) != nil {
			backup := env.StateFile + ".bak"
			if err := os.Rename(env.StateFile, backup); err != nil {
				return applied, fmt.Errorf("back up state file: %w", err)
			}
			applied = append(applied, fmt.Sprintf("moved corrupt state file to %s", backup))
		}
	}

	return applied, nil
}
