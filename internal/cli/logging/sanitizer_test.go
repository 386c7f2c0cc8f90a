package logging

import (
	"strings"
	"testing"
)

func TestSanitizeCommandRedactsInlineSecrets(t *testing.T) {
	args := []string{"deploy", "--token=abcd1234", "--env", "prod"}

	sanitized := SanitizeCommand(args)

	if !strings.Contains(sanitized, "--token=***") {
		t.Fatalf("expected inline secret to be redacted; sanitized=%q", sanitized)
	}
	if strings.Contains(sanitized, "abcd1234") {
		t.Fatalf("expected original token to be removed; sanitized=%q", sanitized)
	}
	if !strings.Contains(sanitized, "--env prod") {
		t.Fatalf("expected non-sensitive flag to remain; sanitized=%q", sanitized)
	}
}

func TestSanitizeCommandRedactsSeparatedSecrets(t *testing.T) {
	args := []string{"deploy", "--password", "super-secret", "--region", "eu-west"}

	sanitized := SanitizeCommand(args)

	if strings.Contains(sanitized, "super-secret") {
		t.Fatalf("expected separated value to be redacted; sanitized=%q", sanitized)
	}
	if !strings.Contains(sanitized, "--password ***") {
		t.Fatalf("expected password flag value placeholder; sanitized=%q", sanitized)
	}
	if !strings.Contains(sanitized, "--region eu-west") {
		t.Fatalf("expected plain flag to remain; sanitized=%q", sanitized)
	}
}

func TestSanitizeCommandRedactsTrailingSensitiveFlag(t *testing.T) {
	sanitized := SanitizeCommand([]string{"deploy", "--api-key"})
	if !strings.HasSuffix(sanitized, "--api-key ***") {
		t.Fatalf("expected placeholder appended for dangling flag; sanitized=%q", sanitized)
	}
}

func TestSanitizeCommandRedactsSecretsSetValues(t *testing.T) {
	args := []string{"secrets", "set", "API_TOKEN", "sk-live-123456"}

	sanitized := SanitizeCommand(args)

	if sanitized != "secrets set API_TOKEN ***" {
		t.Fatalf("expected value position redacted, got %q", sanitized)
	}
}

func TestSanitizeCommandLeavesOtherSecretsSubcommandsAlone(t *testing.T) {
	sanitized := SanitizeCommand([]string{"secrets", "list"})
	if sanitized != "secrets list" {
		t.Fatalf("expected command left intact, got %q", sanitized)
	}
}

func TestSanitizeCommandRedactsInlineAssignments(t *testing.T) {
	sanitized := SanitizeCommand([]string{"deploy", "API_TOKEN=abcd", "REGION=eu"})
	if strings.Contains(sanitized, "abcd") {
		t.Fatalf("expected assignment value redacted, got %q", sanitized)
	}
	if !strings.Contains(sanitized, "API_TOKEN=***") || !strings.Contains(sanitized, "REGION=eu") {
		t.Fatalf("expected only the sensitive assignment masked, got %q", sanitized)
	}
}

func TestSanitizeEnvMasksSensitiveVariables(t *testing.T) {
	env := map[string]string{
		"MYCLI_CONFIG_DIR":         "/tmp/mycli",
		"MYCLI_SECRETS_PASSPHRASE": "hunter2",
		"TOKEN":                    "abcd",
		"EDITOR":                   "vi",
	}

	sanitized := SanitizeEnv(env)

	if sanitized["MYCLI_CONFIG_DIR"] != "/tmp/mycli" {
		t.Fatalf("expected allowlisted env to remain, got %q", sanitized["MYCLI_CONFIG_DIR"])
	}
	if sanitized["MYCLI_SECRETS_PASSPHRASE"] != "***" {
		t.Fatalf("expected passphrase to be redacted, got %q", sanitized["MYCLI_SECRETS_PASSPHRASE"])
	}
	if sanitized["TOKEN"] != "***" {
		t.Fatalf("expected generic token to be redacted, got %q", sanitized["TOKEN"])
	}
	if sanitized["EDITOR"] != "vi" {
		t.Fatalf("expected non-sensitive key to keep its value, got %q", sanitized["EDITOR"])
	}
}

func TestSanitizeTextRedactsKeyValuePairs(t *testing.T) {
	input := "error: token=abcd MYCLI_SECRETS_PASSPHRASE=topsecret still here"
	got := SanitizeText(input)
	if strings.Contains(got, "abcd") || strings.Contains(got, "topsecret") {
		t.Fatalf("expected sensitive values to be redacted, got %q", got)
	}
	if !strings.Contains(got, "token=***") {
		t.Fatalf("expected token placeholder, got %q", got)
	}
	if !strings.Contains(got, "still here") {
		t.Fatalf("expected surrounding text preserved, got %q", got)
	}
}
