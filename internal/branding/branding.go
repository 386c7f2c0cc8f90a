// Package branding derives the display palette and emoji prefix from the
// layered configuration. Branding is best-effort: a broken configuration
// falls back to the built-in palette and must never stop a command.
package branding

import (
	"os"

	"github.com/Miyamura80/CLI-Template/internal/config"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/pkg/render"
)

// Brand carries the resolved display branding.
type Brand struct {
	Emoji  string
	Styles render.Styles
}

// Resolve loads the configuration stack and derives the branding from it.
func Resolve() Brand {
	colorEnabled := true
	loaded, err := settings.Load()
	if err == nil && bool(loaded.NoColor) {
		colorEnabled = false
	}

	resolver := paths.NewResolver(paths.Overrides{
		ConfigDir:   loaded.ConfigDir,
		CommandsDir: loaded.CommandsDir,
	})
	overridesFile, err := resolver.OverridesFile()
	if err != nil {
		return fallback(colorEnabled)
	}
	stack, err := config.LoadStack(overridesFile, os.LookupEnv)
	if err != nil {
		return fallback(colorEnabled)
	}
	return FromStack(stack, colorEnabled)
}

// FromStack derives branding from an already-loaded stack.
func FromStack(stack *config.Stack, colorEnabled bool) Brand {
	return Brand{
		Emoji: stringAt(stack, "cli.emoji", ""),
		Styles: render.NewStyles(
			stringAt(stack, "cli.primary_color", "cyan"),
			stringAt(stack, "cli.secondary_color", "green"),
			colorEnabled,
		),
	}
}

func fallback(colorEnabled bool) Brand {
	return Brand{Styles: render.NewStyles("cyan", "green", colorEnabled)}
}

func stringAt(stack *config.Stack, path, fallback string) string {
	value, err := stack.Resolver.Resolve(path)
	if err != nil {
		return fallback
	}
	text, ok := value.Value.(string)
	if !ok {
		return fallback
	}
	return text
}
