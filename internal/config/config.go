// Package config defines the process configuration for the glucogate API.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any invalid value causes LoadConfig to return a *ConfigError so the
// process can fail fast before binding a listener.
package config

import (
	"net"
	"strconv"
	"time"

	"glucogate/internal/types"
)

// SecretString is an alias for types.SecretString so callers never need to
// import types just to read the database URL.
type SecretString = types.SecretString

// DefaultMaxBodyBytes is the hard request body cap (10 MB).
const DefaultMaxBodyBytes = 10 << 20

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	// Environment is echoed in health and error responses. It is not otherwise
	// interpreted by the gateway.
	Environment string `envconfig:"NODE_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener and request pipeline settings.
type ServerConfig struct {
	Port            int           `envconfig:"PORT" default:"3000" validate:"min=1,max=65535"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"10485760" validate:"gt=0"`
}

// Addr returns the host:port pair the listener binds to.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig holds the store connection string and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"0" validate:"gte=0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`
	CloseTimeout    time.Duration `envconfig:"DB_CLOSE_TIMEOUT" default:"5s"`
}

// SecurityConfig holds cross-origin settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds request metrics settings.
type ObservabilityConfig struct {
	// MetricsExporter selects the request metrics backend: "none",
	// "cloudwatch" (pushed), or "prometheus" (scraped from /metrics).
	MetricsExporter string `envconfig:"METRICS_EXPORTER" default:"none" validate:"oneof=none cloudwatch prometheus"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Glucogate"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack Support (Empty in Prod)
	AWSEndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrDotenv indicates an explicitly named dotenv file could not be read.
	ErrDotenv ConfigErrorType = "DOTENV_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
