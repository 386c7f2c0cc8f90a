// Package logging sanitizes command lines, environments, and freeform text
// before they reach the structured log. Keys and structure survive; secret
// values never do.
package logging

import (
	"regexp"
	"strings"
)

const redactionPlaceholder = "***"

// Env keys copied through verbatim. Every other key is kept but loses its
// value when the key looks sensitive.
var allowlistedEnvKeys = map[string]struct{}{
	"PATH":                     {},
	"HOME":                     {},
	"USER":                     {},
	"SHELL":                    {},
	"PWD":                      {},
	"LANG":                     {},
	"LC_ALL":                   {},
	"TMPDIR":                   {},
	"TERM":                     {},
	"LOGNAME":                  {},
	"MYCLI_CONFIG_DIR":         {},
	"MYCLI_COMMANDS_DIR":       {},
	"MYCLI_NO_COLOR":           {},
	"MYCLI_OTEL_EXPORTER":      {},
	"MYCLI_TELEMETRY_DISABLED": {},
	"MYCLI_INSTANCE_ID":        {},
}

// SanitizeCommand renders argv for logging. Values following sensitive flags,
// sensitive inline assignments, and everything handed to `secrets set` after
// the key are redacted; the command structure stays readable.
func SanitizeCommand(args []string) string {
	if len(args) == 0 {
		return ""
	}

	secretValues := secretValueStart(args)
	sanitized := make([]string, 0, len(args))
	redactNext := false
	for i, arg := range args {
		switch {
		case redactNext:
			sanitized = append(sanitized, redactionPlaceholder)
			redactNext = false
		case secretValues >= 0 && i >= secretValues && !strings.HasPrefix(arg, "-"):
			sanitized = append(sanitized, redactionPlaceholder)
		default:
			cleaned, followUp := sanitizeToken(arg)
			sanitized = append(sanitized, cleaned)
			redactNext = followUp
		}
	}
	if redactNext {
		sanitized = append(sanitized, redactionPlaceholder)
	}
	return strings.Join(sanitized, " ")
}

// secretValueStart returns the argv index where `secrets set <key>` plaintext
// values begin, or -1 when the argv is not a secrets set invocation.
func secretValueStart(args []string) int {
	positionals := 0
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		positionals++
		switch positionals {
		case 1:
			if arg != "secrets" {
				return -1
			}
		case 2:
			if arg != "set" {
				return -1
			}
		case 3:
			// args[i] is the key; anything after it is a value.
			return i + 1
		}
	}
	return -1
}

func sanitizeToken(arg string) (string, bool) {
	if key, _, found := strings.Cut(arg, "="); found && key != "" {
		if isSensitive(key) {
			return key + "=" + redactionPlaceholder, false
		}
		return arg, false
	}
	if strings.HasPrefix(arg, "-") && isSensitive(arg) {
		return arg, true
	}
	return arg, false
}

// SanitizeEnv returns a sanitized copy of the provided environment variables.
// Allowlisted keys pass through; sensitive keys keep the key and drop the
// value.
func SanitizeEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for key, value := range env {
		if _, ok := allowlistedEnvKeys[key]; ok {
			out[key] = value
			continue
		}
		if isSensitive(key) {
			out[key] = redactionPlaceholder
			continue
		}
		out[key] = value
	}
	return out
}

var sensitivePattern = regexp.MustCompile(`(?i)([a-z0-9_.-]*(?:password|passphrase|secret|token|apikey|credential)[a-z0-9_.-]*)=([^\s]{1,128})`)

// SanitizeText redacts sensitive key/value pairs inside freeform strings such
// as subprocess error output.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	return sensitivePattern.ReplaceAllString(text, "${1}="+redactionPlaceholder)
}

func isSensitive(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"password", "passphrase", "secret", "token", "apikey", "api-key", "credential"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
