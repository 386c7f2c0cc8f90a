// Package settings loads the process-level knobs mycli reads from its own
// environment variables. These steer where files live and which background
// behaviours are active; they are separate from the layered configuration
// exposed through the config command.
package settings

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Toggle is a boolean that also accepts yes/no and on/off spellings.
type Toggle bool

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (t *Toggle) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "1", "true", "yes", "on":
		*t = true
	case "", "0", "false", "no", "off":
		*t = false
	default:
		return fmt.Errorf("invalid boolean value %q", string(text))
	}
	return nil
}

// Settings captures the MYCLI_* environment variables.
type Settings struct {
	ConfigDir         string `env:"MYCLI_CONFIG_DIR"`
	CommandsDir       string `env:"MYCLI_COMMANDS_DIR"`
	TelemetryDisabled Toggle `env:"MYCLI_TELEMETRY_DISABLED"`
	SecretsPassphrase string `env:"MYCLI_SECRETS_PASSPHRASE"`
	NoColor           Toggle `env:"MYCLI_NO_COLOR"`
	OTelExporter      string `env:"MYCLI_OTEL_EXPORTER"`
}

// Load parses the process environment.
func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse environment settings: %w", err)
	}
	return s, nil
}
