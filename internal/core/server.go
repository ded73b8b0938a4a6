// Package core provides the HTTP chassis for the glucogate API. It builds a
// chi router that enforces the cross-cutting request contract (access logging,
// body limits, CORS, security headers, and a single error shape) before
// requests reach the externally supplied domain handler groups.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"glucogate/internal/config"
)

// MetricsCollector records API telemetry. Implementations publish request
// latency and count metrics to CloudWatch or an equivalent backend.
type MetricsCollector interface {
	RecordRequest(method, route, status string, duration time.Duration)
}

// Server encapsulates the HTTP dependencies of the gateway so tests can build
// one with fakes and production can build one with real collaborators.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Boundary  *ErrorBoundary
	Routes    *RouteRegistry
	Metrics   MetricsCollector // optional

	// MetricsHandler, when set, is served at PathMetrics for scraping.
	MetricsHandler http.Handler

	// HealthProbes are consulted by the readiness endpoint only. The liveness
	// endpoint never touches them.
	HealthProbes []HealthProbe

	pipeline  *Pipeline
	router    *chi.Mux
	startedAt time.Time
	now       func() time.Time
}

// NewServer validates its inputs, builds the error boundary and request
// pipeline, and returns a server ready for route registration.
//
// The caller registers domain handler groups on s.Routes and then calls
// MountRoutes exactly once.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		Routes:    NewRouteRegistry(),
		router:    chi.NewRouter(),
		startedAt: time.Now(),
		now:       time.Now,
	}
	s.Boundary = NewErrorBoundary(logger, cfg.Environment, s.clock)

	pipeline, err := NewPipeline(s.Boundary,
		NewAccessLogStep(logger, s.redactedHeaders()),
		NewBodyParserStep(s.maxBodyBytes()),
		NewCORSStep(s.corsAllowedOrigins()),
		NewSecurityHeadersStep(),
	)
	if err != nil {
		return nil, fmt.Errorf("assembling request pipeline: %w", err)
	}
	s.pipeline = pipeline

	return s, nil
}

// Handler returns the root http.Handler. Responses are gzip-compressed when
// the client accepts it.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// Router returns the underlying chi.Mux. Used by tests and route introspection.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Pipeline returns the assembled request pipeline.
func (s *Server) Pipeline() *Pipeline {
	return s.pipeline
}

func (s *Server) clock() time.Time {
	return s.now()
}

func (s *Server) maxBodyBytes() int64 {
	if s.Config.Server.MaxBodyBytes > 0 {
		return s.Config.Server.MaxBodyBytes
	}
	return config.DefaultMaxBodyBytes
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

func (s *Server) redactedHeaders() []string {
	return defaultRedactedHeaders
}
