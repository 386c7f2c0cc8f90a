// Package discovery scans the commands directory for unit files and turns
// them into registry specs. Discovery never executes a unit; classification
// rests entirely on the declared shape.
package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Miyamura80/CLI-Template/internal/registry"
)

var (
	// ErrNoCommandShape is reported for a unit that declares neither an entry
	// point nor a dispatch table.
	ErrNoCommandShape = errors.New("unit has no recognizable command shape")
	// ErrAmbiguousShape is reported for a unit that declares both.
	ErrAmbiguousShape = errors.New("unit declares both an entry point and sub-commands")
	// ErrInvalidUnit covers parse failures, bad names, and malformed argv
	// vectors.
	ErrInvalidUnit = errors.New("invalid command unit")
)

// namePattern constrains file stems; underscores map to dashes in the
// resulting command name.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// childPattern constrains sub-command names declared inside a unit.
var childPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// EntryFactory builds the entry point for a discovered leaf from its source
// file and declared argv vector.
type EntryFactory func(source string, argv []string) registry.EntryPoint

// Options configures a scan.
type Options struct {
	Dir   string
	Entry EntryFactory
}

type rawUnit struct {
	Description string             `yaml:"description"`
	Run         []string           `yaml:"run"`
	Commands    map[string]rawUnit `yaml:"commands"`
}

// Load scans the directory for unit files and returns their specs sorted by
// command name. A missing directory yields no units. Any malformed unit
// aborts the scan; discovery is all-or-nothing.
func Load(opts Options) ([]*registry.CommandSpec, error) {
	if opts.Entry == nil {
		return nil, fmt.Errorf("%w: entry factory not configured", ErrInvalidUnit)
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read commands directory %q: %w", opts.Dir, err)
	}

	var specs []*registry.CommandSpec
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}

		spec, err := loadUnit(filepath.Join(opts.Dir, name), opts.Entry)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

func loadUnit(path string, factory EntryFactory) (*registry.CommandSpec, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if !namePattern.MatchString(stem) {
		return nil, fmt.Errorf("%w: %s: file stem %q is not a valid command name", ErrInvalidUnit, path, stem)
	}
	commandName := strings.ReplaceAll(stem, "_", "-")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit %s: %w", path, err)
	}

	var raw rawUnit
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidUnit, path, err)
	}

	return buildSpec(commandName, path, raw, factory)
}

func buildSpec(name, source string, raw rawUnit, factory EntryFactory) (*registry.CommandSpec, error) {
	hasRun := len(raw.Run) > 0
	hasCommands := raw.Commands != nil

	switch {
	case hasRun && hasCommands:
		return nil, fmt.Errorf("unit %s: %w", source, ErrAmbiguousShape)
	case hasRun:
		for _, token := range raw.Run {
			if strings.TrimSpace(token) == "" {
				return nil, fmt.Errorf("%w: %s: run contains an empty token", ErrInvalidUnit, source)
			}
		}
		return &registry.CommandSpec{
			Name:        name,
			Kind:        registry.KindLeaf,
			Summary:     raw.Description,
			Source:      source,
			PassThrough: true,
			Run:         factory(source, raw.Run),
		}, nil
	case hasCommands:
		children := make([]*registry.CommandSpec, 0, len(raw.Commands))
		for childName, childRaw := range raw.Commands {
			if !childPattern.MatchString(childName) {
				return nil, fmt.Errorf("%w: %s: sub-command name %q is invalid", ErrInvalidUnit, source, childName)
			}
			child, err := buildSpec(childName, source, childRaw, factory)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
		return &registry.CommandSpec{
			Name:     name,
			Kind:     registry.KindGroup,
			Summary:  raw.Description,
			Source:   source,
			Children: children,
		}, nil
	default:
		return nil, fmt.Errorf("unit %s: %w", source, ErrNoCommandShape)
	}
}
