package app

import (
	"bizdesk/internal/config"
	"bizdesk/internal/export"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Blob.FSRoot = t.TempDir()
	cfg.HTTP.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestServeListenerLifecycle(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)

	resp, err = http.Get(base + "/api/clients")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestExportWritesToFilesystem(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec, err := a.Export(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, export.StatusSucceeded, rec.Status)
	require.NotNil(t, rec.Artifact)
	assert.True(t, strings.HasPrefix(rec.Artifact.Key, export.KeyPrefix))

	_, err = os.Stat(filepath.Join(cfg.Blob.FSRoot, filepath.FromSlash(rec.Artifact.Key)))
	assert.NoError(t, err)
}

func TestNewSkipsSeedWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed = false
	a, err := New(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	clients, err := a.Service.ListClients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestNewRejectsUnknownBlobDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Blob.Driver = "tape"
	_, err := New(context.Background(), cfg, io.Discard)
	require.Error(t, err)
}
