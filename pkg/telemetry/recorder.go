package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// DefaultMaxEvents caps the local event log when no configuration overrides
// it.
const DefaultMaxEvents = 1000

// Event is one usage record in the local telemetry log.
type Event struct {
	Command   string  `json:"command"`
	DurationS float64 `json:"duration_s"`
	Success   bool    `json:"success"`
	Version   string  `json:"cli_version"`
	OS        string  `json:"os"`
	MachineID string  `json:"machine_id"`
	Timestamp string  `json:"timestamp"`
}

// Recorder appends usage events to a local JSON document, keeping at most
// maxEvents entries. A corrupt log is discarded on the next append. Writes
// replace the file atomically.
type Recorder struct {
	path      string
	maxEvents int
	version   string

	hostname func() (string, error)
	now      func() time.Time

	mu sync.Mutex
}

// NewRecorder constructs a recorder for the event log at path.
func NewRecorder(path, version string, maxEvents int) *Recorder {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Recorder{
		path:      path,
		maxEvents: maxEvents,
		version:   version,
		hostname:  os.Hostname,
		now:       time.Now,
	}
}

// MachineID derives the anonymous machine identifier: a truncated SHA-256
// digest of the hostname.
func MachineID(hostname string) string {
	digest := sha256.Sum256([]byte(hostname))
	return hex.EncodeToString(digest[:])[:16]
}

// Record appends one event for the executed command.
func (r *Recorder) Record(command string, duration time.Duration, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	host, err := r.hostname()
	if err != nil {
		host = "unknown"
	}

	event := Event{
		Command:   command,
		DurationS: math.Round(duration.Seconds()*1000) / 1000,
		Success:   success,
		Version:   r.version,
		OS:        runtime.GOOS,
		MachineID: MachineID(host),
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}

	events, _ := r.load()
	events = append(events, event)
	if len(events) > r.maxEvents {
		events = events[len(events)-r.maxEvents:]
	}
	return r.write(events)
}

// Events returns the recorded events. A missing or corrupt log yields none.
func (r *Recorder) Events() ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Recorder) load() ([]Event, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read telemetry log %q: %w", r.path, err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		// Corrupt log starts over.
		return nil, nil
	}
	return events, nil
}

func (r *Recorder) write(events []Event) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "telemetry-*.json")
	if err != nil {
		return fmt.Errorf("write telemetry log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write telemetry log: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		tmp.Close()
		return fmt.Errorf("write telemetry log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write telemetry log: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("write telemetry log: %w", err)
	}
	return nil
}
