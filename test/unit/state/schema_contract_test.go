package statecontracts_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Miyamura80/CLI-Template/pkg/state"
)

func stateSchemaLoader(t *testing.T) gojsonschema.JSONLoader {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to determine caller information")
	}

	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
	schemaPath := filepath.Join(repoRoot, "specs", "003-local-state", "contracts", "state-schema.json")
	return gojsonschema.NewReferenceLoader("file://" + schemaPath)
}

func TestStateSchemaAcceptsWrittenRecord(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	manager := state.NewManager(statePath)

	disabled := false
	if _, err := manager.Write(state.Record{
		TelemetryEnabled:     &disabled,
		TelemetryNoticeShown: true,
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal state file: %v", err)
	}

	result, err := gojsonschema.Validate(stateSchemaLoader(t), gojsonschema.NewGoLoader(doc))
	if err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("expected written record to satisfy the schema: %v", result.Errors())
	}
}

func TestStateSchemaAcceptsEmptyRecord(t *testing.T) {
	result, err := gojsonschema.Validate(stateSchemaLoader(t), gojsonschema.NewGoLoader(map[string]any{}))
	if err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("expected empty record to satisfy the schema: %v", result.Errors())
	}
}

func TestStateSchemaRejectsWrongPreferenceType(t *testing.T) {
	doc := map[string]any{
		"telemetryEnabled": "yes",
	}
	result, err := gojsonschema.Validate(stateSchemaLoader(t), gojsonschema.NewGoLoader(doc))
	if err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
	if result.Valid() {
		t.Fatal("expected string telemetryEnabled to be invalid")
	}
}

func TestStateSchemaRejectsUnknownField(t *testing.T) {
	doc := map[string]any{
		"telemetryEnabled": true,
		"hostname":         "workstation-7",
	}
	result, err := gojsonschema.Validate(stateSchemaLoader(t), gojsonschema.NewGoLoader(doc))
	if err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
	if result.Valid() {
		t.Fatal("expected unknown field to be invalid")
	}
}
