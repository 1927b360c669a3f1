package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Supported Gemini models
const (
	ModelGemini15Flash = "gemini-1.5-flash"
	ModelGemini15Pro   = "gemini-1.5-pro"
	ModelGemini25Flash = "gemini-2.5-flash"
	ModelGemini25Pro   = "gemini-2.5-pro"
)

// Generation limits
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 100
	MaxMaxTokens   = 2048
)

const (
	DefaultModel       = ModelGemini15Flash
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
	DefaultPersona     = "You are a friendly AI assistant that helps the user."
	DefaultTimeout     = 60 * time.Second
	DefaultLogDir      = "logs"
	DefaultExportDir   = "."
)

// ErrInvalidSettings is returned when a setting is outside its allowed range
var ErrInvalidSettings = errors.New("invalid settings")

// Models returns the selectable model names in display order
func Models() []string {
	return []string{ModelGemini15Flash, ModelGemini15Pro, ModelGemini25Flash, ModelGemini25Pro}
}

// IsKnownModel reports whether name is one of the selectable models
func IsKnownModel(name string) bool {
	for _, m := range Models() {
		if m == name {
			return true
		}
	}
	return false
}

// Settings are the per-request generation controls. Changes apply to the
// next outgoing request only.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Persona     string
	DarkMode    bool
}

// DefaultSettings returns the settings a fresh session starts with
func DefaultSettings() Settings {
	return Settings{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Persona:     DefaultPersona,
	}
}

// Validate checks every field against its allowed range
func (s Settings) Validate() error {
	if !IsKnownModel(s.Model) {
		return fmt.Errorf("%w: unknown model %q (choose one of %s)", ErrInvalidSettings, s.Model, strings.Join(Models(), ", "))
	}
	if math.IsNaN(s.Temperature) || s.Temperature < MinTemperature || s.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %.2f outside [%.1f, %.1f]", ErrInvalidSettings, s.Temperature, MinTemperature, MaxTemperature)
	}
	if s.MaxTokens < MinMaxTokens || s.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: max tokens %d outside [%d, %d]", ErrInvalidSettings, s.MaxTokens, MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// Config holds application configuration
type Config struct {
	APIKey   string
	Settings Settings

	ExportDir string
	ArchiveDB string // Path to the sqlite transcript archive, empty disables it
	Timeout   time.Duration

	LogDir    string
	LogLevel  string
	Debug     bool
	Telemetry bool // Export traces and metrics to rotated files under LogDir
}

// Default returns a Config populated with defaults
func Default() Config {
	return Config{
		Settings:  DefaultSettings(),
		ExportDir: DefaultExportDir,
		Timeout:   DefaultTimeout,
		LogDir:    DefaultLogDir,
		LogLevel:  "info",
	}
}

// Validate checks the configuration. A missing API key is not a validation
// error here; the session reports it when the user tries to chat.
func (c Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidSettings)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidSettings, c.LogLevel)
	}
	return nil
}
