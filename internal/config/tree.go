package config

import (
	"fmt"
	"sort"
	"strings"
)

// flattenTree walks a nested document and returns dot-delimited leaf paths.
// Maps descend; everything else, including nil, is a leaf.
func flattenTree(doc map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if err := flattenInto("", doc, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(prefix string, node map[string]any, out map[string]any) error {
	for key, value := range node {
		if strings.Contains(key, ".") {
			return fmt.Errorf("key %q must not contain dots", key)
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch child := value.(type) {
		case map[string]any:
			if err := flattenInto(path, child, out); err != nil {
				return err
			}
		case map[any]any:
			return fmt.Errorf("key %q has non-string nested keys", path)
		default:
			out[path] = value
		}
	}
	return nil
}

// insertPath sets a leaf inside a nested document, creating intermediate maps
// as needed. An intermediate that currently holds a scalar is replaced by a
// map, matching the override semantics of set.
func insertPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// sortedPaths returns the keys of a flattened layer in stable order.
func sortedPaths(layer Layer) []string {
	paths := make([]string, 0, len(layer))
	for path := range layer {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
