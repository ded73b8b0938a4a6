// Package lifecycle owns the process lifecycle of the gateway: it binds the
// listener, serves until a termination signal arrives, drains in-flight
// requests, and then releases the store handle.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// State is a lifecycle phase. Transitions only move forward:
// Starting -> Listening -> Draining -> Stopped.
type State int32

const (
	StateStarting State = iota
	StateListening
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const defaultShutdownTimeout = 10 * time.Second

// Closer is the store handle as seen by the lifecycle. Close must be safe to
// call more than once.
type Closer interface {
	Close() error
}

// Options configures a Manager.
type Options struct {
	// Addr is the host:port to bind.
	Addr string
	// Environment is logged at startup.
	Environment string
	// ShutdownTimeout bounds the drain of in-flight requests.
	ShutdownTimeout time.Duration
	// WriteTimeout is passed to http.Server. Zero disables it.
	WriteTimeout time.Duration
	// Signals defaults to OSSignals.
	Signals SignalSource
	// Listen defaults to net.Listen.
	Listen func(network, address string) (net.Listener, error)
}

// Manager runs the HTTP listener and coordinates its shutdown with the store.
type Manager struct {
	handler http.Handler
	store   Closer
	logger  *slog.Logger
	opts    Options

	state atomic.Int32
	ready chan struct{}

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
	stopped      chan struct{}
}

// New builds a Manager in the Starting state.
func New(handler http.Handler, store Closer, logger *slog.Logger, opts Options) *Manager {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Listen == nil {
		opts.Listen = net.Listen
	}
	return &Manager{
		handler: handler,
		store:   store,
		logger:  logger,
		opts:    opts,
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// State returns the current phase.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Ready is closed once the listener is bound.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Addr returns the bound address, or nil before Listening.
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Run binds the listener and serves until a signal arrives, ctx is cancelled,
// or the server fails. It always leaves the Manager Stopped with the store
// closed. A bind failure is returned without serving.
func (m *Manager) Run(ctx context.Context) error {
	signals := m.opts.Signals
	if signals == nil {
		signals = OSSignals()
	}
	defer signals.Stop()

	ln, err := m.opts.Listen("tcp", m.opts.Addr)
	if err != nil {
		m.logger.Error("failed to bind listener", "addr", m.opts.Addr, "error", err)
		if shutdownErr := m.Shutdown(context.Background()); shutdownErr != nil {
			return errors.Join(fmt.Errorf("binding %s: %w", m.opts.Addr, err), shutdownErr)
		}
		return fmt.Errorf("binding %s: %w", m.opts.Addr, err)
	}

	srv := &http.Server{
		Handler:           m.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      m.opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(m.logger.Handler(), slog.LevelWarn),
	}

	m.mu.Lock()
	if !m.state.CompareAndSwap(int32(StateStarting), int32(StateListening)) {
		// Shutdown won the race before we bound.
		m.mu.Unlock()
		_ = ln.Close()
		return m.Shutdown(ctx)
	}
	m.server = srv
	m.listener = ln
	m.mu.Unlock()
	close(m.ready)

	m.logger.Info("server listening",
		"addr", ln.Addr().String(),
		"port", portOf(ln.Addr()),
		"environment", m.opts.Environment,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case sig := <-signals.Signals():
			m.logger.Info("shutdown signal received", "signal", signalName(sig))
		case <-gctx.Done():
		case <-m.stopped:
		}
		return m.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown stops accepting connections, drains in-flight requests within the
// shutdown timeout, and then closes the store. Only the first call does any
// work; later calls return the first call's result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.state.Store(int32(StateDraining))
		srv := m.server
		m.mu.Unlock()

		m.logger.Info("initiating graceful shutdown", "timeout", m.opts.ShutdownTimeout)

		var errs []error
		if srv != nil {
			drainCtx, cancel := context.WithTimeout(ctx, m.opts.ShutdownTimeout)
			if err := srv.Shutdown(drainCtx); err != nil {
				m.logger.Error("http server did not drain in time", "error", err)
				_ = srv.Close()
				errs = append(errs, fmt.Errorf("draining http server: %w", err))
			}
			cancel()
		}

		if m.store != nil {
			if err := m.store.Close(); err != nil {
				m.logger.Error("store close failed", "error", err)
				errs = append(errs, fmt.Errorf("closing store: %w", err))
			}
		}

		m.state.Store(int32(StateStopped))
		m.shutdownErr = errors.Join(errs...)
		close(m.stopped)
		if m.shutdownErr == nil {
			m.logger.Info("server stopped cleanly")
		}
	})
	return m.shutdownErr
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

func signalName(sig os.Signal) string {
	if sig == nil {
		return "closed"
	}
	return sig.String()
}
