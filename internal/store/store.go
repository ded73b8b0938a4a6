// Package store owns the process-wide Persistent Store Handle: a single pgx
// connection pool opened at startup, borrowed by every handler group, and
// closed exactly once during shutdown.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker/v2"

	"glucogate/internal/config"
	"glucogate/internal/types"
)

// defaultCloseTimeout bounds how long Close waits for the pool to drain.
const defaultCloseTimeout = 5 * time.Second

// ErrCloseTimeout is returned by Close when the pool did not finish closing
// within the configured bound. The pool keeps closing in the background.
var ErrCloseTimeout = errors.New("store: close timed out")

// Pool is the subset of *pgxpool.Pool the handle depends on.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Handle is the shared store connection. It satisfies db.DBTX so repositories
// can be constructed directly from it. Handle is safe for concurrent use.
type Handle struct {
	pool         Pool
	logger       *slog.Logger
	breaker      *gobreaker.CircuitBreaker[struct{}]
	closeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Option configures a Handle.
type Option func(*Handle)

// WithCloseTimeout overrides the bound on Close.
func WithCloseTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.closeTimeout = d
		}
	}
}

// WithBreaker overrides the circuit breaker guarding Ping.
func WithBreaker(cb *gobreaker.CircuitBreaker[struct{}]) Option {
	return func(h *Handle) {
		h.breaker = cb
	}
}

// New wraps an existing pool. Open is the production constructor; New exists
// so tests and tools can inject their own Pool.
func New(pool Pool, logger *slog.Logger, opts ...Option) *Handle {
	h := &Handle{
		pool:         pool,
		logger:       logger,
		breaker:      newPingBreaker(),
		closeTimeout: defaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open parses the database configuration and creates the pool. Connections are
// established lazily; a failed initial ping is logged but does not abort
// startup, so the gateway can come up (and report /health) while the database
// is still unreachable.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Handle, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	h := New(pool, logger, WithCloseTimeout(cfg.CloseTimeout))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("database not reachable at startup; continuing", "error", err)
	} else {
		logger.Info("database connection established",
			"host", poolCfg.ConnConfig.Host,
			"database", poolCfg.ConnConfig.Database,
			"max_conns", poolCfg.MaxConns,
		)
	}

	return h, nil
}

func connectTimeout(cfg config.DatabaseConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return 5 * time.Second
}

// newPingBreaker trips after three consecutive failed pings so readiness
// probes stop queueing on a dead database.
func newPingBreaker() *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "store-ping",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// Exec implements db.DBTX.
func (h *Handle) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return h.pool.Exec(ctx, sql, arguments...)
}

// Query implements db.DBTX.
func (h *Handle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return h.pool.Query(ctx, sql, args...)
}

// QueryRow implements db.DBTX.
func (h *Handle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return h.pool.QueryRow(ctx, sql, args...)
}

// Name identifies the handle as a health probe.
func (h *Handle) Name() string { return "database" }

// Check implements the readiness probe contract by pinging the store.
func (h *Handle) Check(ctx context.Context) error { return h.Ping(ctx) }

// Ping verifies connectivity through the circuit breaker. When the breaker is
// open the database is not contacted at all.
func (h *Handle) Ping(ctx context.Context) error {
	if h.closed.Load() {
		return types.NewAppError(types.ErrCodeStoreUnavailable, "store is closed", nil)
	}
	_, err := h.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, h.pool.Ping(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeStoreUnavailable, "store circuit open", err)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreUnavailable, "store ping failed", err)
	}
	return nil
}

// Close releases the pool exactly once. Subsequent calls return the result of
// the first call. If the pool does not finish closing within the close
// timeout, ErrCloseTimeout is returned and the close continues in the
// background.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)

		done := make(chan struct{})
		go func() {
			h.pool.Close()
			close(done)
		}()

		select {
		case <-done:
			h.logger.Info("database connection closed")
		case <-time.After(h.closeTimeout):
			h.closeErr = fmt.Errorf("%w after %s", ErrCloseTimeout, h.closeTimeout)
			h.logger.Error("database close did not complete", "timeout", h.closeTimeout.String())
		}
	})
	return h.closeErr
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// BreakerState reports the ping circuit state: "closed", "half-open" or "open".
func (h *Handle) BreakerState() string {
	return h.breaker.State().String()
}
