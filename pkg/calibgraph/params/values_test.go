package params_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValues_Accessors verifies typed extraction with defaults.
func TestValues_Accessors(t *testing.T) {
	v := params.NewValues(map[string]any{
		"flux_point":     "joint",
		"num_averages":   100,
		"num_shots":      int64(2000),
		"whole_float":    50.0,
		"fraction":       50.5,
		"frequency_span": 20e6,
		"simulate":       true,
		"wait":           "250ms",
		"settle":         3,
		"qubits":         []any{"q1", "q2"},
		"mixed":          []any{"q1", 7},
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", v.String("flux_point", "independent"), "joint"},
		{"string wrong type", v.String("num_averages", "dflt"), "dflt"},
		{"int", v.Int("num_averages", 0), 100},
		{"int from int64", v.Int("num_shots", 0), 2000},
		{"int from whole float", v.Int("whole_float", 0), 50},
		{"int from fractional float", v.Int("fraction", 9), 9},
		{"float", v.Float("frequency_span", 0), 20e6},
		{"float from int", v.Float("num_averages", 0), 100.0},
		{"bool", v.Bool("simulate", false), true},
		{"bool missing", v.Bool("missing", true), true},
		{"duration string", v.Duration("wait", time.Second), 250 * time.Millisecond},
		{"duration seconds", v.Duration("settle", time.Second), 3 * time.Second},
		{"duration invalid", v.Duration("flux_point", time.Second), time.Second},
		{"string slice", v.StringSlice("qubits", nil), []string{"q1", "q2"}},
		{"string slice mixed", v.StringSlice("mixed", []string{"dflt"}), []string{"dflt"}},
		{"any missing", v.Any("missing", "dflt"), "dflt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

// TestValues_IsolatedFromSource verifies NewValues and Raw copy the map.
func TestValues_IsolatedFromSource(t *testing.T) {
	src := map[string]any{"num_averages": 10}
	v := params.NewValues(src)
	src["num_averages"] = 20

	assert.Equal(t, 10, v.Int("num_averages", 0))

	raw := v.Raw()
	raw["num_averages"] = 30
	assert.Equal(t, 10, v.Int("num_averages", 0))
}

// TestValues_With verifies overrides produce a new set.
func TestValues_With(t *testing.T) {
	base := params.NewValues(map[string]any{"a": 1, "b": 2})
	over := base.With(map[string]any{"b": 3, "c": 4})

	assert.Equal(t, 2, base.Int("b", 0))
	assert.Equal(t, 3, over.Int("b", 0))
	assert.Equal(t, []string{"a", "b", "c"}, over.Keys())
	assert.Equal(t, 3, over.Len())
	assert.False(t, base.Has("c"))
}

// TestFromFile verifies file loading with extension detection.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "rabi.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("num_averages: 123\nqubits: [q1, q2]\n"), 0o644))

	jsonPath := filepath.Join(dir, "rabi.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"num_averages": 456}`), 0o644))

	txtPath := filepath.Join(dir, "rabi.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("num_averages=1"), 0o644))

	t.Run("yaml", func(t *testing.T) {
		v, err := params.FromFile(yamlPath)
		require.NoError(t, err)
		assert.Equal(t, 123, v.Int("num_averages", 0))
		assert.Equal(t, []string{"q1", "q2"}, v.StringSlice("qubits", nil))
	})

	t.Run("json", func(t *testing.T) {
		v, err := params.FromFile(jsonPath)
		require.NoError(t, err)
		assert.Equal(t, 456, v.Int("num_averages", 0))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := params.FromFile(txtPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported parameter file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := params.FromFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := params.FromYAML([]byte("invalid: yaml: content:"))
		assert.Error(t, err)
	})
}
