// Package config loads runtime configuration for the conclave CLI and
// server-side embeddings. Settings come from the process environment under
// the CONCLAVE_ prefix, with a .env file loaded first when present, and are
// validated before anything is wired up. Meeting definitions themselves are
// JSON documents loaded separately via LoadMeeting.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/logging"
)

var validate = validator.New()

// Provider names the model backend the CLI instantiates.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// Config is the environment-driven runtime configuration. API keys are not
// listed here; the provider SDKs read their own ANTHROPIC_API_KEY and
// OPENAI_API_KEY variables directly.
type Config struct {
	// Provider selects the model backend.
	Provider string `envconfig:"PROVIDER" default:"anthropic" validate:"oneof=anthropic openai mock"`
	// Model overrides the provider's default model id.
	Model string `envconfig:"MODEL"`

	Temperature float64 `envconfig:"TEMPERATURE" default:"0.7" validate:"gte=0,lte=2"`
	MaxTokens   int64   `envconfig:"MAX_TOKENS" default:"4096" validate:"gt=0"`
	Stream      bool    `envconfig:"STREAM" default:"true"`

	// SpeakerTimeout bounds a single speaker invocation.
	SpeakerTimeout time.Duration `envconfig:"SPEAKER_TIMEOUT" default:"2m" validate:"gt=0"`
	// MaxRetries is the retry ceiling for transient model failures.
	MaxRetries uint64 `envconfig:"MAX_RETRIES" default:"2"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is merged in first when one exists; real environment
// variables win over file entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("CONCLAVE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values and reports the first problem as a
// *core.ConfigError so callers can treat it like any other configuration
// rejection.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &core.ConfigError{
			Field:  strings.ToLower(fe.Field()),
			Reason: fmt.Sprintf("value %q failed %q", fmt.Sprint(fe.Value()), fe.Tag()),
		}
	}
	return &core.ConfigError{Reason: err.Error()}
}

// LoggerLevel maps the textual level onto the logging package's enum.
func (c *Config) LoggerLevel() logging.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

// LoadMeeting reads a meeting definition from a JSON file, fills in the
// defaults a hand-written file usually omits, and validates the result.
func LoadMeeting(path string) (core.Meeting, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Meeting{}, fmt.Errorf("failed to read meeting file: %w", err)
	}
	return ParseMeeting(raw)
}

// ParseMeeting decodes and validates a JSON meeting definition.
func ParseMeeting(raw []byte) (core.Meeting, error) {
	var m core.Meeting
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return core.Meeting{}, &core.ConfigError{Field: "meeting", Reason: err.Error()}
	}
	applyMeetingDefaults(&m)
	if err := m.Validate(); err != nil {
		return core.Meeting{}, err
	}
	return m, nil
}

func applyMeetingDefaults(m *core.Meeting) {
	if m.ID == "" {
		m.ID = "meeting-" + sanitizeID(m.Topic)
	}
	if m.MaxRounds == 0 {
		m.MaxRounds = 5
	}
	if m.ContextMode == "" {
		m.ContextMode = core.ContextShared
	}
	if m.ArtifactVersion == "" {
		m.ArtifactVersion = "v1"
	}
}

// sanitizeID derives a stable slug from free text.
func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
