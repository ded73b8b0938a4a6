package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glucogate/internal/config"
	"glucogate/internal/core"
	"glucogate/internal/types"
)

// newGateway assembles a full server with the given groups registered, so
// handler tests see requests exactly as the pipeline delivers them.
func newGateway(t *testing.T, register func(s *core.Server)) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{MaxBodyBytes: config.DefaultMaxBodyBytes},
	}
	srv, err := core.NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	register(srv)
	require.NoError(t, srv.MountRoutes())
	return srv.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps the success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorRecord {
	t.Helper()
	var er core.ErrorRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er
}

// --- Mock Repositories ---

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *types.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*types.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRecordRepo struct {
	mock.Mock
}

func (m *mockRecordRepo) Create(ctx context.Context, rec *types.HealthRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockRecordRepo) GetByID(ctx context.Context, kind types.RecordKind, id string) (*types.HealthRecord, error) {
	args := m.Called(ctx, kind, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*types.HealthRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecordRepo) List(ctx context.Context, f types.RecordFilter) ([]*types.HealthRecord, error) {
	args := m.Called(ctx, f)
	if recs := args.Get(0); recs != nil {
		return recs.([]*types.HealthRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecordRepo) Delete(ctx context.Context, kind types.RecordKind, id string) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

type fakeStore struct {
	pingErr error
	closed  bool
	state   string
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }
func (f *fakeStore) Closed() bool               { return f.closed }
func (f *fakeStore) BreakerState() string       { return f.state }
