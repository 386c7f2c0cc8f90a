// Package state persists small application state records as JSON, written
// atomically so concurrent invocations can only ever observe a complete
// document. Last writer wins.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Record stores the per-user application state: telemetry preference and the
// one-time notice marker. A nil TelemetryEnabled means the default, enabled.
type Record struct {
	TelemetryEnabled     *bool  `json:"telemetryEnabled,omitempty"`
	TelemetryNoticeShown bool   `json:"telemetryNoticeShown,omitempty"`
	Timestamp            string `json:"timestamp,omitempty"`
}

// TelemetryOn reports the effective telemetry preference.
func (r Record) TelemetryOn() bool {
	return r.TelemetryEnabled == nil || *r.TelemetryEnabled
}

// Manager coordinates persistence of the state record.
type Manager struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

var (
	errEmptyStatePath = errors.New("state file path empty")
	errWriteFailed    = errors.New("state file could not be written")
)

// NewManager constructs a Manager for the state file at path.
func NewManager(path string) *Manager {
	return &Manager{
		path:     path,
		dirPerm:  0o700,
		filePerm: 0o600,
	}
}

// ErrWriteFailed exposes the write failure sentinel.
func ErrWriteFailed() error { return errWriteFailed }

// Path returns the state file location.
func (m *Manager) Path() string { return m.path }

// Load reads the current record. A missing file is an empty record.
func (m *Manager) Load() (Record, error) {
	if strings.TrimSpace(m.path) == "" {
		return Record{}, errEmptyStatePath
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("read state %q: %w", m.path, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("parse state %q: %w", m.path, err)
	}
	return record, nil
}

// Write persists the record to the state path.
func (m *Manager) Write(record Record) (string, error) {
	if strings.TrimSpace(m.path) == "" {
		return "", errEmptyStatePath
	}

	if record.Timestamp == "" {
		record.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	dir := filepath.Dir(m.path)
	created := false
	if _, statErr := os.Stat(dir); statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", errWriteFailed, statErr)
		}
		if err := os.MkdirAll(dir, m.dirPerm); err != nil {
			return "", fmt.Errorf("%w: %w", errWriteFailed, err)
		}
		created = true
	}

	if created {
		if err := os.Chmod(dir, m.dirPerm); err != nil {
			return "", fmt.Errorf("%w: %w", errWriteFailed, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "state-*.json")
	if err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(m.filePerm); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}

	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}

	if err := os.Chmod(m.path, m.filePerm); err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}

	return m.path, nil
}

// Update loads the record, applies mutate, and writes the result back.
func (m *Manager) Update(mutate func(*Record)) (Record, error) {
	record, err := m.Load()
	if err != nil {
		return Record{}, err
	}
	mutate(&record)
	record.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if _, err := m.Write(record); err != nil {
		return Record{}, err
	}
	return record, nil
}
