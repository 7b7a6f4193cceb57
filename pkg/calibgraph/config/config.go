// Package config loads process settings for a calibration service: traversal
// policy, logging, telemetry, snapshot storage and the recalibration schedule.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the process configuration.
type Settings struct {
	// SkipFailed makes the orchestrator absorb vertex errors as failed outcomes.
	SkipFailed bool `yaml:"skip_failed" json:"skip_failed"`

	Log      LogSettings      `yaml:"log" json:"log"`
	Snapshot SnapshotSettings `yaml:"snapshot" json:"snapshot"`
	Schedule ScheduleSettings `yaml:"schedule" json:"schedule"`

	Metrics bool `yaml:"metrics" json:"metrics"`
	Tracing bool `yaml:"tracing" json:"tracing"`

	// Targets is the default target set when a run does not name one.
	Targets []string `yaml:"targets" json:"targets"`
}

// LogSettings selects the slog handler.
type LogSettings struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// SnapshotSettings configures result persistence.
// An empty Path keeps snapshots in memory.
type SnapshotSettings struct {
	Path  string `yaml:"path" json:"path"`
	Fatal bool   `yaml:"fatal" json:"fatal"`
}

// ScheduleSettings configures periodic recalibration.
type ScheduleSettings struct {
	Cron  string `yaml:"cron" json:"cron"`
	Graph string `yaml:"graph" json:"graph"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		Log: LogSettings{Level: "info", Format: "text"},
	}
}

// FromFile loads settings from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
// Keys absent from the file keep their Default values.
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Settings{}, fmt.Errorf("unsupported settings file extension: %s", ext)
	}
}

// FromYAML parses YAML settings on top of Default.
func FromYAML(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}
	return s, s.Validate()
}

// FromJSON parses JSON settings on top of Default.
func FromJSON(data []byte) (Settings, error) {
	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse json: %w", err)
	}
	return s, s.Validate()
}

// Validate checks enumerated fields.
func (s Settings) Validate() error {
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", s.Log.Level)
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", s.Log.Format)
	}
	if s.Schedule.Cron != "" && s.Schedule.Graph == "" {
		return fmt.Errorf("schedule.cron requires schedule.graph")
	}
	return nil
}
