package core

import (
	"net/http"
	"strings"
)

// securityHeader is one hardening header and its fixed value.
type securityHeader struct {
	name  string
	value string
}

// defaultSecurityHeaders is the hardening set attached to every response.
// Content-Security-Policy and Cross-Origin-Embedder-Policy are deliberately
// absent: the documentation UI at /api/docs loads its scripts and styles from
// a CDN and breaks under either.
var defaultSecurityHeaders = []securityHeader{
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
}

// SecurityHeadersStep attaches the hardening header set.
type SecurityHeadersStep struct {
	headers []securityHeader
}

// NewSecurityHeadersStep builds the step with the default header set.
func NewSecurityHeadersStep() *SecurityHeadersStep {
	return &SecurityHeadersStep{headers: defaultSecurityHeaders}
}

// Name implements Step.
func (s *SecurityHeadersStep) Name() string { return "security-headers" }

// Handle implements Step.
func (s *SecurityHeadersStep) Handle(w http.ResponseWriter, r *http.Request) Outcome {
	s.Decorate(w.Header(), r)
	return Continue(r)
}

// Decorate implements HeaderDecorator.
func (s *SecurityHeadersStep) Decorate(h http.Header, _ *http.Request) {
	for _, sh := range s.headers {
		h.Set(sh.name, sh.value)
	}
	h.Del("X-Powered-By")
}

// CORS policy values.
const (
	corsAllowMethods  = "GET,POST,PUT,DELETE,PATCH,OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, Accept, X-Request-Id"
	corsExposeHeaders = "X-Request-Id"
	corsMaxAge        = "86400"
)

// CORSStep attaches cross-origin headers to every response and answers
// preflight requests directly.
//
// Behavior:
//   - If allowedOrigins contains "*", every origin is allowed and the
//     Access-Control-Allow-Origin header is "*".
//   - Otherwise the request Origin is echoed back when it is in the list.
//   - OPTIONS requests short-circuit with 204 and no body.
type CORSStep struct {
	allowAll  bool
	originSet map[string]struct{}
}

// NewCORSStep builds the step for the given allowed origins.
func NewCORSStep(allowedOrigins []string) *CORSStep {
	s := &CORSStep{originSet: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			s.allowAll = true
			continue
		}
		if o != "" {
			s.originSet[o] = struct{}{}
		}
	}
	return s
}

// Name implements Step.
func (s *CORSStep) Name() string { return "cors" }

// Handle implements Step.
func (s *CORSStep) Handle(w http.ResponseWriter, r *http.Request) Outcome {
	s.Decorate(w.Header(), r)
	if r.Method == http.MethodOptions {
		return Respond(http.StatusNoContent, nil)
	}
	return Continue(r)
}

// Decorate implements HeaderDecorator.
func (s *CORSStep) Decorate(h http.Header, r *http.Request) {
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", corsMaxAge)
	if !s.allowAll {
		h.Add("Vary", "Origin")
	}

	// Only Allow-Origin depends on the caller; an unlisted origin gets the
	// rest of the policy but no grant.
	if allowedOrigin := s.allowedOrigin(r.Header.Get("Origin")); allowedOrigin != "" {
		h.Set("Access-Control-Allow-Origin", allowedOrigin)
	}
}

func (s *CORSStep) allowedOrigin(origin string) string {
	if s.allowAll {
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := s.originSet[origin]; ok {
		return origin
	}
	return ""
}
