package config

import (
	"fmt"
)

// Entry is one merged path with its effective value and provenance.
type Entry struct {
	Path   string
	Value  any
	Source Source
}

// Resolver holds the merged view of the three layers. Merging happens once at
// construction; lookups afterwards are pure reads.
type Resolver struct {
	merged   Layer
	messages []string
}

// NewResolver merges the layers lowest precedence first. Every shadowing is
// recorded as a human-readable message for verbose output.
func NewResolver(defaults, environment, overrides Layer) *Resolver {
	r := &Resolver{merged: Layer{}}

	apply := func(set Layer, fallback Source) {
		for _, path := range sortedPaths(set) {
			current := set[path]
			if current.Source == "" {
				current.Source = fallback
			}
			if previous, ok := r.merged[path]; ok {
				r.messages = append(r.messages,
					fmt.Sprintf("%s overrides %s (was %s)", current.Source, path, previous.Source))
			}
			r.merged[path] = current
		}
	}

	apply(defaults, SourceDefault)
	apply(environment, SourceEnvironment)
	apply(overrides, SourceOverride)
	return r
}

// Resolve returns the effective value for a path. Malformed paths and unknown
// paths report distinct errors.
func (r *Resolver) Resolve(path string) (Value, error) {
	if err := ValidatePath(path); err != nil {
		return Value{}, err
	}
	value, ok := r.merged[path]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}
	return value, nil
}

// Entries returns the full merged view sorted by path.
func (r *Resolver) Entries() []Entry {
	entries := make([]Entry, 0, len(r.merged))
	for _, path := range sortedPaths(r.merged) {
		value := r.merged[path]
		entries = append(entries, Entry{Path: path, Value: value.Value, Source: value.Source})
	}
	return entries
}

// Messages returns the shadowing notes recorded during the merge.
func (r *Resolver) Messages() []string {
	return append([]string(nil), r.messages...)
}

// Stack bundles the schema, the override store, and the resolver built from
// the three layers. Commands construct one per invocation.
type Stack struct {
	Schema   *Schema
	Store    *OverrideStore
	Resolver *Resolver

	lookup LookupFunc
}

// LoadStack builds the full configuration stack. overridePath locates the
// persisted override document; lookup defaults to the process environment.
func LoadStack(overridePath string, lookup LookupFunc) (*Stack, error) {
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	environment, err := EnvironmentLayer(schema, lookup)
	if err != nil {
		return nil, err
	}
	store := NewOverrideStore(overridePath)
	overrides, err := store.Layer()
	if err != nil {
		return nil, err
	}
	return &Stack{
		Schema:   schema,
		Store:    store,
		Resolver: NewResolver(schema.DefaultLayer(), environment, overrides),
		lookup:   lookup,
	}, nil
}

// SetValue coerces raw against the schema and persists it, then returns the
// stored value. The resolver held by the stack is rebuilt so subsequent reads
// observe the write.
func (s *Stack) SetValue(path, raw string) (any, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	value, err := s.Schema.CoerceForPath(path, raw)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Set(path, value); err != nil {
		return nil, err
	}

	overrides, err := s.Store.Layer()
	if err != nil {
		return nil, err
	}
	environment, err := EnvironmentLayer(s.Schema, s.lookup)
	if err != nil {
		return nil, err
	}
	s.Resolver = NewResolver(s.Schema.DefaultLayer(), environment, overrides)
	return value, nil
}
