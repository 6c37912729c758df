package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrorType classifies configuration failures.
type ErrorType string

// Configuration error types.
const (
	ErrParsing    ErrorType = "PARSING"
	ErrValidation ErrorType = "VALIDATION"
)

// Error is returned by Load when the environment cannot produce a valid Config.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads an optional .env file, processes the environment into a Config
// and validates it. Existing environment variables are never overridden by
// the .env file.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...) //nolint:errcheck // .env is optional

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &Error{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return &Error{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	if _, err := cfg.Weather.Location(); err != nil {
		return &Error{Type: ErrValidation, Message: "invalid WEATHER_TIMEZONE", Err: err}
	}
	if cfg.Weather.Timeout <= 0 {
		return &Error{Type: ErrValidation, Message: "WEATHER_TIMEOUT must be positive"}
	}
	return nil
}
