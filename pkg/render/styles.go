package render

import "github.com/fatih/color"

// Styles carries the color palette commands print with. Colors honor the
// configured primary and secondary names and can be disabled wholesale.
type Styles struct {
	Heading *color.Color
	Accent  *color.Color
	Success *color.Color
	Warning *color.Color
	Failure *color.Color
}

var colorNames = map[string]color.Attribute{
	"black":   color.FgBlack,
	"red":     color.FgRed,
	"green":   color.FgGreen,
	"yellow":  color.FgYellow,
	"blue":    color.FgBlue,
	"magenta": color.FgMagenta,
	"cyan":    color.FgCyan,
	"white":   color.FgWhite,
}

// NewStyles builds a palette from the configured color names. Unknown
// names fall back to cyan and green. When enabled is false every style
// renders as plain text.
func NewStyles(primary, secondary string, enabled bool) Styles {
	styles := Styles{
		Heading: color.New(attribute(primary, color.FgCyan), color.Bold),
		Accent:  color.New(attribute(primary, color.FgCyan)),
		Success: color.New(attribute(secondary, color.FgGreen)),
		Warning: color.New(color.FgYellow),
		Failure: color.New(color.FgRed),
	}
	if !enabled {
		for _, c := range []*color.Color{styles.Heading, styles.Accent, styles.Success, styles.Warning, styles.Failure} {
			c.DisableColor()
		}
	}
	return styles
}

func attribute(name string, fallback color.Attribute) color.Attribute {
	if attr, ok := colorNames[name]; ok {
		return attr
	}
	return fallback
}
