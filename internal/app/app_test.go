package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func developmentConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestNewAppDevelopmentDefaults(t *testing.T) {
	a, err := NewApp(context.Background(), developmentConfig(t), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Shutdown()) })

	require.NotNil(t, a.miniredis, "embedded redis starts without REDIS_ADDR")
	assert.Nil(t, a.pool)
	assert.Nil(t, a.kafka)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`
	resp, err = http.Post(srv.URL+"/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), "accesshub_register_success_total 1")
}

func TestNewAppUsesExternalRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := developmentConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.HTTP.MetricsEnabled = false

	a, err := NewApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Shutdown()) })

	assert.Nil(t, a.miniredis)
	assert.Nil(t, a.otelMetrics)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewAppFailsWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := developmentConfig(t)
	cfg.Redis.Addr = addr

	_, err := NewApp(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "connect to redis")
}

func TestNewAppProductionRejectsGeneratedKeys(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := developmentConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Auth.ProductionMode = true

	_, err := NewApp(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := developmentConfig(t)
	cfg.HTTP.Addr = "127.0.0.1:0"

	a, err := NewApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
