package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/emitter/pkg/emitter/filterexpr"
)

// Error policy names accepted in settings.
const (
	PolicyPropagate = "propagate"
	PolicyContinue  = "continue"
)

// Dead letter driver names accepted in settings.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Sentinel errors for settings validation.
var (
	// ErrInvalidPolicy indicates an unknown error_policy value.
	ErrInvalidPolicy = errors.New("invalid error policy")

	// ErrInvalidDriver indicates an unknown dead_letter.driver value.
	ErrInvalidDriver = errors.New("invalid dead letter driver")

	// ErrInvalidBinding indicates a malformed entry under bindings.
	ErrInvalidBinding = errors.New("invalid binding")
)

// Settings configures a registry and its supporting infrastructure.
type Settings struct {
	ErrorPolicy string     `yaml:"error_policy" json:"error_policy" toml:"error_policy"`
	Metrics     bool       `yaml:"metrics" json:"metrics" toml:"metrics"`
	Tracing     bool       `yaml:"tracing" json:"tracing" toml:"tracing"`
	LogLevel    string     `yaml:"log_level" json:"log_level" toml:"log_level"`
	DeadLetter  DeadLetter `yaml:"dead_letter" json:"dead_letter" toml:"dead_letter"`
	Bindings    []Binding  `yaml:"bindings" json:"bindings" toml:"bindings"`
}

// DeadLetter selects where failed invocations are recorded.
type DeadLetter struct {
	Driver string `yaml:"driver" json:"driver" toml:"driver"`
	Path   string `yaml:"path" json:"path" toml:"path"`
}

// Binding declares a listener in configuration. Handler names a callback
// the program supplies at wiring time.
type Binding struct {
	Event   string `yaml:"event" json:"event" toml:"event"`
	Handler string `yaml:"handler" json:"handler" toml:"handler"`
	Filter  string `yaml:"filter" json:"filter" toml:"filter"`
	Once    bool   `yaml:"once" json:"once" toml:"once"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		ErrorPolicy: PolicyPropagate,
		LogLevel:    "info",
	}
}

// Validate checks settings for unknown values and malformed bindings.
func (s Settings) Validate() error {
	switch s.ErrorPolicy {
	case "", PolicyPropagate, PolicyContinue:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, s.ErrorPolicy)
	}

	switch s.DeadLetter.Driver {
	case "", DriverMemory:
	case DriverSQLite:
		if s.DeadLetter.Path == "" {
			return fmt.Errorf("%w: sqlite requires dead_letter.path", ErrInvalidDriver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, s.DeadLetter.Driver)
	}

	if _, err := s.Level(); err != nil {
		return err
	}

	for i, b := range s.Bindings {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bindings[%d]: %w", i, err)
		}
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (s Settings) Level() (slog.Level, error) {
	var lvl slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return lvl, nil
}

// Validate checks that a binding names an event and a handler and that its
// filter compiles.
func (b Binding) Validate() error {
	if b.Event == "" {
		return fmt.Errorf("%w: event is required", ErrInvalidBinding)
	}
	if b.Handler == "" {
		return fmt.Errorf("%w: handler is required for event %q", ErrInvalidBinding, b.Event)
	}
	if b.Filter != "" {
		if _, err := filterexpr.Compile(b.Filter); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBinding, err)
		}
	}
	return nil
}
