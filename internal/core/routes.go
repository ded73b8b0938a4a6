package core

import (
	"fmt"
	"net/http"
	"strings"
)

// Paths served by the chassis itself. Domain groups may not claim them.
const (
	PathHealth      = "/health"
	PathHealthReady = "/health/ready"
	PathDocs        = "/api/docs"
	PathOpenAPI     = "/api/docs/openapi.json"
	PathMetrics     = "/metrics"
)

var reservedPrefixes = []string{PathHealth, PathDocs, PathMetrics}

// MountRoutes defines the top-level routing hierarchy. It registers the
// unmatched-route handlers, the global middleware chain, the chassis routes,
// and then every group in s.Routes in registration order. It must be called
// exactly once, after all groups are registered.
func (s *Server) MountRoutes() error {
	groups := s.Routes.freeze()
	for _, g := range groups {
		for _, reserved := range reservedPrefixes {
			if g.Prefix == reserved || strings.HasPrefix(g.Prefix, reserved+"/") {
				return fmt.Errorf("route group %q collides with built-in route %q", g.Prefix, reserved)
			}
		}
	}

	// Set before Mount so mounted sub-routers inherit them.
	s.router.NotFound(s.Boundary.NotFound)
	s.router.MethodNotAllowed(s.Boundary.MethodNotAllowed)

	s.registerGlobalMiddleware()

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, PathDocs, http.StatusFound)
	})
	s.router.Get(PathHealth, s.HandleHealth)
	s.router.Head(PathHealth, s.HandleHealth)
	s.router.Get(PathHealthReady, s.HandleReady)
	s.router.Get(PathDocs, s.ServeDocs)
	s.router.Get(PathDocs+"/", s.ServeDocs)
	s.router.Get(PathOpenAPI, s.ServeOpenAPISpec)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, PathMetrics, s.MetricsHandler)
	}

	for _, g := range groups {
		s.router.Mount(g.Prefix, g.Handler)
		s.Logger.Debug("route group mounted", "prefix", g.Prefix)
	}
	return nil
}

// registerGlobalMiddleware applies middleware in strict order.
//
//  1. Recoverer      - last-resort panic handler.
//  2. RequestID      - correlation ID for every log line and error.
//  3. ContextTimeout - per-request deadline.
//  4. Metrics        - latency and count, labelled by matched route.
//  5. Pipeline       - access log, body parser, CORS, security headers,
//     then the error boundary around the matched handler.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.pipeline.Middleware)
}
