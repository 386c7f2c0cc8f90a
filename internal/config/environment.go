package config

import (
	"fmt"
	"os"
)

// LookupFunc reads one environment variable; tests inject their own.
type LookupFunc func(string) (string, bool)

// EnvironmentLayer builds the middle layer by checking the shadow variable of
// every schema path. Values coerce to the declared type; a variable that does
// not parse is a type error, not a silent skip. Paths outside the schema have
// no shadow variable.
func EnvironmentLayer(schema *Schema, lookup LookupFunc) (Layer, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	layer := Layer{}
	for _, path := range schema.Paths() {
		name := schema.EnvVar(path)
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		valueType, _ := schema.Type(path)
		value, err := CoerceTyped(path, raw, valueType)
		if err != nil {
			return nil, fmt.Errorf("environment variable %s: %w", name, err)
		}
		layer[path] = Value{Value: value, Source: SourceEnvironment}
	}
	return layer, nil
}
