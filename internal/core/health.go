package core

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// readinessTimeout bounds all readiness probes together.
const readinessTimeout = 2 * time.Second

// HealthProbe is a dependency check consulted by the readiness endpoint.
type HealthProbe interface {
	// Name identifies the probe in the response (e.g. "database").
	Name() string

	// Check returns an error if the dependency is unreachable. It must honor
	// the context deadline.
	Check(ctx context.Context) error
}

// LivenessResponse is the body of GET /health.
type LivenessResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Environment string  `json:"environment"`
	NodeVersion string  `json:"nodeVersion"`
	Uptime      float64 `json:"uptime"`
	Timestamp   string  `json:"timestamp"`
}

// HandleHealth reports that the process is serving. It never consults the
// store, so it answers 200 even when the database is down.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	JSON(w, r, http.StatusOK, LivenessResponse{
		Status:      "OK",
		Message:     "Server is running",
		Environment: s.Config.Environment,
		NodeVersion: runtime.Version(),
		Uptime:      now.Sub(s.startedAt).Seconds(),
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
	})
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
	Timestamp  string                     `json:"timestamp"`
}

// HandleReady runs every HealthProbe concurrently under a shared deadline.
// It returns 200 when all probes pass and 503 otherwise. Probes that do not
// finish in time are reported as timed out.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	probes := s.HealthProbes
	results := make([]error, len(probes))
	finished := make([]bool, len(probes))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, probe := range probes {
		wg.Add(1)
		go func(i int, p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rv := recover(); rv != nil {
						err = fmt.Errorf("probe panicked: %v", rv)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results[i] = err
			finished[i] = true
			mu.Unlock()
		}(i, probe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	resp := readinessResponse{
		Status:     "ready",
		Components: make(map[string]componentStatus, len(probes)),
		Timestamp:  s.clock().UTC().Format(time.RFC3339Nano),
	}
	for i, probe := range probes {
		switch {
		case !finished[i]:
			resp.Status = "unavailable"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case results[i] != nil:
			resp.Status = "unavailable"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: results[i].Error()}
		default:
			resp.Components[probe.Name()] = componentStatus{Status: "healthy"}
		}
	}

	if resp.Status != "ready" {
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}
