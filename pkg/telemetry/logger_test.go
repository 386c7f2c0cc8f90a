package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
)

func TestLoggerEmitPopulatesRequiredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "inv-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	err = logger.Emit(Entry{
		Category: CategoryCommand,
		Severity: SeverityInfo,
		Message:  "dispatching command",
		Step:     "dispatch",
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	required := []string{"timestamp", "category", "message", "severity"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in payload: %v", key, payload)
		}
	}

	if payload["category"] != string(CategoryCommand) {
		t.Fatalf("expected category %q, got %v", CategoryCommand, payload["category"])
	}

	if payload["invocationId"] != "inv-123" {
		t.Fatalf("expected invocationId to be propagated, got %v", payload["invocationId"])
	}

	if payload["step"] != "dispatch" {
		t.Fatalf("expected step to be preserved, got %v", payload["step"])
	}
}

func TestLoggerEmitEscalatesSeverityOnError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "inv-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	err = logger.Emit(Entry{
		Category: CategoryConfig,
		Message:  "config set",
		Severity: SeverityInfo,
		Command:  "config set llm_config.provider",
		Error:    errors.New("boom"),
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if payload["severity"] != string(SeverityError) {
		t.Fatalf("expected severity escalated to error, got %v", payload["severity"])
	}

	metadata, ok := payload["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata map, got %T", payload["metadata"])
	}

	if metadata["error"] != "boom" {
		t.Fatalf("expected error metadata to be captured, got %v", metadata["error"])
	}
}

func TestLoggerDefaultsSeverityToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "inv-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	if err := logger.Emit(Entry{Category: CategoryDiscovery, Message: "scanned commands dir"}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if payload["severity"] != string(SeverityInfo) {
		t.Fatalf("expected severity defaulted to info, got %v", payload["severity"])
	}
}

func TestLoggerMergesErrorIntoExistingMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "inv-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	err = logger.Emit(Entry{
		Category: CategoryDiagnostic,
		Message:  "probe failed",
		Metadata: map[string]string{"probe": "config-dir"},
		Error:    errors.New("permission denied"),
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	metadata, ok := payload["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata map, got %T", payload["metadata"])
	}
	if metadata["probe"] != "config-dir" {
		t.Fatalf("expected caller metadata preserved, got %v", metadata["probe"])
	}
	if metadata["error"] != "permission denied" {
		t.Fatalf("expected error merged into metadata, got %v", metadata["error"])
	}
}

func TestLoggerEmitsOneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "inv-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	const entries = 4
	var wg sync.WaitGroup
	for i := 0; i < entries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = logger.Emit(Entry{Category: CategoryCommand, Message: "tick"})
		}()
	}
	wg.Wait()

	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var payload map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != entries {
		t.Fatalf("expected %d log lines, got %d", entries, lines)
	}
}

func TestLoggerRequiresInvocationID(t *testing.T) {
	_, err := NewLogger(io.Discard, "")
	if err == nil {
		t.Fatalf("expected error when invocation ID missing")
	}
}
