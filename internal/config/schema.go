// Package config implements the layered configuration model: static defaults
// shipped with the binary, environment shadows, and persisted overrides,
// merged with full provenance tracking.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

var (
	// ErrPathNotFound indicates the requested path exists in no layer.
	ErrPathNotFound = errors.New("configuration path not found")
	// ErrInvalidPath indicates a malformed dot-delimited path.
	ErrInvalidPath = errors.New("invalid configuration path")
	// ErrTypeMismatch indicates a value that cannot be coerced to the type the
	// default layer declares for its path.
	ErrTypeMismatch = errors.New("invalid value type")
	// ErrWriteFailed indicates the override store could not be persisted.
	ErrWriteFailed = errors.New("configuration write failed")
	// ErrMalformedConfig indicates a configuration file that cannot be parsed.
	ErrMalformedConfig = errors.New("malformed configuration file")
)

// ValueType classifies the values a configuration path may hold.
type ValueType string

const (
	TypeBool   ValueType = "bool"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeString ValueType = "string"
)

// Source identifies the layer a resolved value originated from.
type Source string

const (
	SourceDefault     Source = "default"
	SourceEnvironment Source = "environment"
	SourceOverride    Source = "override"
)

// Value stores a configuration value and its precedence origin.
type Value struct {
	Value  any
	Source Source
}

// Layer maps flattened dot-delimited paths to values.
type Layer map[string]Value

// envPrefix namespaces the environment shadow variables.
const envPrefix = "MYCLI_"

//go:embed defaults.yaml
var defaultsYAML []byte

var pathPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// ValidatePath checks the dot-delimited path syntax: non-empty segments made
// of letters, digits, underscores, and dashes.
func ValidatePath(path string) error {
	if !pathPattern.MatchString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// SchemaEntry is one path in the default layer with its declared type.
type SchemaEntry struct {
	Value any
	Type  ValueType
}

// Schema is the static definition file shipped with the binary. It supplies
// both the default values and the type each known path must coerce to.
type Schema struct {
	entries map[string]SchemaEntry
}

// LoadSchema parses the embedded defaults document.
func LoadSchema() (*Schema, error) {
	return parseSchema(defaultsYAML)
}

func parseSchema(data []byte) (*Schema, error) {
	var doc map[string]any
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: parse defaults: %v", ErrMalformedConfig, err)
	}

	flat, err := flattenTree(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	entries := make(map[string]SchemaEntry, len(flat))
	for path, value := range flat {
		if err := ValidatePath(path); err != nil {
			return nil, fmt.Errorf("defaults declare %w", err)
		}
		entries[path] = SchemaEntry{Value: value, Type: typeOf(value)}
	}
	return &Schema{entries: entries}, nil
}

// Type returns the declared type for path.
func (s *Schema) Type(path string) (ValueType, bool) {
	entry, ok := s.entries[path]
	if !ok {
		return "", false
	}
	return entry.Type, true
}

// Paths returns every declared path, sorted.
func (s *Schema) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for path := range s.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// DefaultLayer exposes the schema values as the lowest-precedence layer.
func (s *Schema) DefaultLayer() Layer {
	layer := make(Layer, len(s.entries))
	for path, entry := range s.entries {
		layer[path] = Value{Value: entry.Value, Source: SourceDefault}
	}
	return layer
}

// EnvVar derives the environment shadow variable for a path, e.g.
// llm_config.cache_enabled becomes MYCLI_LLM_CONFIG_CACHE_ENABLED.
func (s *Schema) EnvVar(path string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return envPrefix + strings.ToUpper(replacer.Replace(path))
}

func typeOf(value any) ValueType {
	switch value.(type) {
	case bool:
		return TypeBool
	case int, int64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	default:
		return TypeString
	}
}
