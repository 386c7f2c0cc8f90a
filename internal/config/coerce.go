package config

import (
	"fmt"
	"strconv"
	"strings"
)

// CoerceTyped converts a raw string to the type the schema declares for path.
// Booleans additionally accept the yes/no spellings the coercion ladder uses.
func CoerceTyped(path, raw string, valueType ValueType) (any, error) {
	trimmed := strings.TrimSpace(raw)
	switch valueType {
	case TypeBool:
		switch strings.ToLower(trimmed) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
		value, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects boolean, got %q", ErrTypeMismatch, path, raw)
		}
		return value, nil
	case TypeInt:
		value, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects integer, got %q", ErrTypeMismatch, path, raw)
		}
		return value, nil
	case TypeFloat:
		value, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects number, got %q", ErrTypeMismatch, path, raw)
		}
		return value, nil
	default:
		return raw, nil
	}
}

// CoerceLadder converts a raw string for a path the schema does not declare:
// true/yes, false/no, null, integer, float, and finally the bare string.
func CoerceLadder(raw string) any {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	case "null":
		return nil
	}
	if value, err := strconv.Atoi(trimmed); err == nil {
		return value
	}
	if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return value
	}
	return raw
}

// CoerceForPath applies the schema-typed conversion when path is declared and
// the ladder otherwise.
func (s *Schema) CoerceForPath(path, raw string) (any, error) {
	if valueType, ok := s.Type(path); ok {
		return CoerceTyped(path, raw, valueType)
	}
	return CoerceLadder(raw), nil
}

// FormatValue renders a resolved value the way get prints it.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
