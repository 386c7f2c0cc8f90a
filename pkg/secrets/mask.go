package secrets

import "strings"

// Mask redacts a secret value for display. Short values are fully starred;
// longer values keep the first and last three characters visible.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:3]) + strings.Repeat("*", len(runes)-6) + string(runes[len(runes)-3:])
}
