package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the configuration.
//
// It performs the following steps in order:
//  1. Sets the process timezone to UTC so ISO-8601 timestamps are stable.
//  2. Loads dotenv files. With no arguments ".env" is tried and a missing
//     file is ignored; explicitly named files must exist.
//  3. Processes envconfig tags to populate the Config struct.
//  4. Populates Config.Build from linker-injected variables.
//  5. Validates the Config struct.
//
// godotenv never overrides variables already present in the environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	time.Local = time.UTC

	if err := loadDotenv(envFiles); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &ConfigError{Type: ErrDotenv, Message: "failed to read .env", Err: err}
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return &ConfigError{
			Type:    ErrDotenv,
			Message: fmt.Sprintf("failed to read dotenv files %v", files),
			Err:     err,
		}
	}
	return nil
}
