package core

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehax/internal/config"
	"tradehax/internal/gate"
	"tradehax/internal/ratelimit"
	"tradehax/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Service:     "tradehax-governance",
		Server: config.ServerConfig{
			Port:      "8080",
			PublicURL: "http://localhost:8080",
		},
		Security: config.SecurityConfig{
			TrustedOrigins: []string{"https://app.tradehax.example"},
			AdminAPIKey:    types.SecretString("test-admin-key"),
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil)
	identity := gate.NewResolver(gate.TrustPolicy{AllowOverride: true}, nil, testLogger())

	srv, err := NewServer(cfg, testLogger(), limiter, identity)
	require.NoError(t, err)
	return srv
}

func TestNewServer_NilDependencies(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil)
	identity := gate.NewResolver(gate.TrustPolicy{}, nil, testLogger())

	_, err := NewServer(nil, testLogger(), limiter, identity)
	assert.Error(t, err)

	_, err = NewServer(testConfig(), nil, limiter, identity)
	assert.Error(t, err)

	_, err = NewServer(testConfig(), testLogger(), nil, identity)
	assert.Error(t, err)

	_, err = NewServer(testConfig(), testLogger(), limiter, nil)
	assert.Error(t, err)
}

func TestShutdown_RunsHooksInOrder(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var order []string
	srv.OnShutdown(func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	srv.OnShutdown(func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestShutdown_ReturnsFirstHookError(t *testing.T) {
	srv := newTestServer(t, testConfig())

	srv.OnShutdown(func(ctx context.Context) error { return assert.AnError })
	ran := false
	srv.OnShutdown(func(ctx context.Context) error {
		ran = true
		return nil
	})

	err := srv.Shutdown(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, ran, "later hooks still run after a failure")
}
