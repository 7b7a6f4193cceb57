package params

import (
	"maps"
	"slices"
	"time"
)

// Values is a validated, read-only set of parameter values for a node or graph.
// Accessors never fail: a missing key or a value of the wrong type yields the
// supplied default.
type Values struct {
	data map[string]any
}

// NewValues copies data into a Values. A nil map gives an empty Values.
func NewValues(data map[string]any) Values {
	cp := make(map[string]any, len(data))
	maps.Copy(cp, data)
	return Values{data: cp}
}

// With returns a copy of v with overrides applied on top.
func (v Values) With(overrides map[string]any) Values {
	cp := make(map[string]any, len(v.data)+len(overrides))
	maps.Copy(cp, v.data)
	maps.Copy(cp, overrides)
	return Values{data: cp}
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (v Values) String(key, defaultVal string) string {
	if s, ok := v.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as seconds
//   - time.Duration: used directly
func (v Values) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := v.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (v Values) Bool(key string, defaultVal bool) bool {
	if b, ok := v.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
// A float64 converts only when it has no fractional part.
func (v Values) Int(key string, defaultVal int) int {
	switch val := v.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not convertible.
func (v Values) Float(key string, defaultVal float64) float64 {
	switch val := v.data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// StringSlice returns the string slice for key, or defaultVal if missing or if
// any element is not a string.
func (v Values) StringSlice(key string, defaultVal []string) []string {
	switch val := v.data[key].(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Any returns the raw value for key, or defaultVal if missing.
func (v Values) Any(key string, defaultVal any) any {
	val, ok := v.data[key]
	if !ok {
		return defaultVal
	}
	return val
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v.data[key]
	return ok
}

// Keys returns the parameter names in sorted order.
func (v Values) Keys() []string {
	return slices.Sorted(maps.Keys(v.data))
}

// Len returns the number of parameters.
func (v Values) Len() int {
	return len(v.data)
}

// Raw returns a copy of the underlying map, suitable for serialization.
func (v Values) Raw() map[string]any {
	cp := make(map[string]any, len(v.data))
	maps.Copy(cp, v.data)
	return cp
}
