package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/summarizer"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("DOCPRESS_CONFIG", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PORT", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.APIKey = "secret"
	cfg.Store.Path = filepath.Join(t.TempDir(), "reports.db")
	return cfg
}

func TestNew_Minimal(t *testing.T) {
	a, err := New(testConfig(t), quiet, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Nil(t, a.Claude)
	assert.Nil(t, a.Exporter)
	assert.NotNil(t, a.Store)
	assert.Equal(t, summarizer.NameExtractive, a.Engine.Config().Strategy)
}

func TestNew_OptionalClients(t *testing.T) {
	cfg := testConfig(t)
	cfg.Anthropic.APIKey = "sk-test"
	cfg.Pathstore.URL = "http://127.0.0.1:1"
	cfg.Pathstore.APIKey = "ps"
	cfg.Compression.Strategy = "hybrid"

	a, err := New(cfg, quiet, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NotNil(t, a.Claude)
	assert.NotNil(t, a.Exporter)
	assert.Equal(t, summarizer.NameHybrid, a.Engine.Config().Strategy)
}

func TestNew_BadCompressionConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Compression.Strategy = "neural"
	_, err := New(cfg, quiet, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	a, err := New(testConfig(t), quiet, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	orch := a.Orchestrator()
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := httptest.NewServer(a.Handler(orch))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/reports")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServe_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig(t)
	cfg.Server.Port = strconv.Itoa(port)
	a, err := New(cfg, quiet, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + cfg.Server.Port + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
