package params

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Type is the declared type of a parameter field.
type Type string

const (
	TypeString   Type = "string"
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeBool     Type = "bool"
	TypeDuration Type = "duration"
	TypeStrings  Type = "strings"
)

// Field declares one parameter.
type Field struct {
	Name        string
	Type        Type
	Required    bool
	Default     any
	Description string
}

// Schema is the declared parameter set of a node or graph.
// Field order is kept for display.
type Schema struct {
	Fields []Field

	// AllowUnknown keeps keys that have no declared field instead of rejecting them.
	AllowUnknown bool
}

// Declarer is implemented by runnables that publish a parameter schema.
type Declarer interface {
	Schema() Schema
}

// ErrValidation is the sentinel wrapped by every *ValidationError.
var ErrValidation = errors.New("parameter validation failed")

// FieldError describes a single rejected parameter.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every problem found while validating raw values.
type ValidationError struct {
	Problems []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Field returns the declared field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns the Values made of every field default.
func (s Schema) Defaults() Values {
	data := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if f.Default != nil {
			data[f.Name] = f.Default
		}
	}
	return Values{data: data}
}

// Validate checks raw against the schema and returns the coerced values with
// defaults filled in. All problems are reported together in a *ValidationError.
func (s Schema) Validate(raw map[string]any) (Values, error) {
	out := make(map[string]any, len(s.Fields))
	var problems []FieldError

	for _, f := range s.Fields {
		val, ok := raw[f.Name]
		if !ok || val == nil {
			if f.Default != nil {
				out[f.Name] = f.Default
			} else if f.Required {
				problems = append(problems, FieldError{Field: f.Name, Message: "required"})
			}
			continue
		}
		coerced, err := coerce(f.Type, val)
		if err != nil {
			problems = append(problems, FieldError{Field: f.Name, Message: err.Error()})
			continue
		}
		out[f.Name] = coerced
	}

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		if _, declared := s.Field(key); declared {
			continue
		}
		if !s.AllowUnknown {
			problems = append(problems, FieldError{Field: key, Message: "unknown parameter"})
			continue
		}
		out[key] = raw[key]
	}

	if len(problems) > 0 {
		return Values{}, &ValidationError{Problems: problems}
	}
	return Values{data: out}, nil
}

func coerce(t Type, val any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := val.(string); ok {
			return s, nil
		}
	case TypeInt:
		switch n := val.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n == float64(int(n)) {
				return int(n), nil
			}
		}
	case TypeFloat:
		switch n := val.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case TypeBool:
		if b, ok := val.(bool); ok {
			return b, nil
		}
	case TypeDuration:
		switch d := val.(type) {
		case time.Duration:
			return d, nil
		case string:
			parsed, err := time.ParseDuration(d)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q", d)
			}
			return parsed, nil
		}
	case TypeStrings:
		switch list := val.(type) {
		case []string:
			return slices.Clone(list), nil
		case []any:
			result := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected list of strings, got element %T", item)
				}
				result = append(result, s)
			}
			return result, nil
		}
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
	return nil, fmt.Errorf("expected %s, got %T", t, val)
}
