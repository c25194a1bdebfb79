package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads settings from a file, auto-detecting format by extension,
// applies environment overrides, and validates the result.
// Supported extensions: .yaml, .yml, .json, .toml
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	var s Settings
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		s, err = FromYAML(data)
	case ".json":
		s, err = FromJSON(data)
	case ".toml":
		s, err = FromTOML(data)
	default:
		return Settings{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if err != nil {
		return Settings{}, err
	}

	if err := s.ApplyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FromYAML parses YAML data over the defaults.
func FromYAML(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}
	return s, nil
}

// FromJSON parses JSON data over the defaults.
func FromJSON(data []byte) (Settings, error) {
	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse json: %w", err)
	}
	return s, nil
}

// FromTOML parses TOML data over the defaults.
func FromTOML(data []byte) (Settings, error) {
	s := Default()
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse toml: %w", err)
	}
	return s, nil
}

// envOverrides holds environment values; nil means unset.
type envOverrides struct {
	ErrorPolicy      *string `env:"EMITTER_ERROR_POLICY"`
	Metrics          *bool   `env:"EMITTER_METRICS"`
	Tracing          *bool   `env:"EMITTER_TRACING"`
	LogLevel         *string `env:"EMITTER_LOG_LEVEL"`
	DeadLetterDriver *string `env:"EMITTER_DEAD_LETTER_DRIVER"`
	DeadLetterPath   *string `env:"EMITTER_DEAD_LETTER_PATH"`
}

// ApplyEnv overlays EMITTER_* environment variables onto s. Empty string
// values leave the setting alone.
func (s *Settings) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	overlay(&s.ErrorPolicy, o.ErrorPolicy)
	overlay(&s.LogLevel, o.LogLevel)
	overlay(&s.DeadLetter.Driver, o.DeadLetterDriver)
	overlay(&s.DeadLetter.Path, o.DeadLetterPath)
	if o.Metrics != nil {
		s.Metrics = *o.Metrics
	}
	if o.Tracing != nil {
		s.Tracing = *o.Tracing
	}
	return nil
}

func overlay(dst, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
