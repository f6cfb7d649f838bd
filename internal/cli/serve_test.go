package cli

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/config"
	"github.com/khanglvm/tooldb/internal/matcher"
	"github.com/khanglvm/tooldb/internal/registry"
	"github.com/khanglvm/tooldb/internal/storage"
	"github.com/khanglvm/tooldb/internal/vectorstore"
)

// startServer runs a fully wired server on a random port and returns its
// address and the config file describing it.
func startServer(t *testing.T) (addr, cfgPath string) {
	t.Helper()
	for _, k := range []string{config.EnvAddr, config.EnvBackend, config.EnvPostgresDSN, config.EnvOpenAIKey, config.EnvLogLevel} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfgPath = filepath.Join(dir, "tooldb.yaml")
	require.NoError(t, config.Save(cfg, cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.run(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
		a.close(context.Background())
	})

	return ln.Addr().String(), cfgPath
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddAndMatchAgainstServer(t *testing.T) {
	addr, _ := startServer(t)

	out, err := execute(t, "match", "--server", addr, "anything")
	assert.ErrorIs(t, err, errNoMatch)
	assert.Empty(t, out)

	out, err = execute(t, "add", "--server", addr,
		"--name", "grep",
		"--command", "grep -r pattern dir",
		"--examples", "search files\nfind text")
	require.NoError(t, err)
	assert.Equal(t, "✓ Registered 'grep' (3 fragments)\n", out)

	out, err = execute(t, "match", "--server", addr, "search", "files", "for", "pattern")
	require.NoError(t, err)
	assert.Equal(t, "grep\n", out)

	out, err = execute(t, "add", "--server", addr,
		"--json", `{"name":"wiki","commands":["wiki search <topic>"],"examples":"look up an encyclopedia article"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "'wiki' (2 fragments)")

	out, err = execute(t, "match", "--server", addr, "encyclopedia", "article")
	require.NoError(t, err)
	assert.Equal(t, "wiki\n", out)
}

func TestHistoryCmd(t *testing.T) {
	addr, cfgPath := startServer(t)

	_, err := execute(t, "add", "--server", addr, "--name", "grep", "--command", "grep x", "--examples", "search files")
	require.NoError(t, err)
	_, err = execute(t, "match", "--server", addr, "search", "files")
	require.NoError(t, err)
	_, _ = execute(t, "match", "--server", addr, "weather")

	out, err := execute(t, "--config", cfgPath, "history", "--since", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Registrations since")
	assert.Contains(t, out, "grep")
	assert.Contains(t, out, "Matches: 2 (found 1, not found 1)")
}

func TestPrintHistory_Empty(t *testing.T) {
	s := storage.NewStorage(filepath.Join(t.TempDir(), "h.db"), nil)
	require.NoError(t, s.Init())
	defer s.Close()

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, s, time.Now().Add(-time.Hour)))
	assert.NotContains(t, out.String(), "TOOL")
	assert.True(t, strings.HasSuffix(out.String(), "Matches: 0 (found 0, not found 0)\n"))
}

func TestNewApp_BadBackend(t *testing.T) {
	cfg := config.Default()
	cfg.History.Enabled = false
	cfg.Store.Backend = "chroma"

	_, err := newApp(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown vector store backend")
}

func TestNewApp_HistoryUnavailableStillServes(t *testing.T) {
	cfg := config.Default()
	// A path under /dev/null cannot be created
	cfg.History.Path = "/dev/null/history.db"

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close(context.Background())

	assert.False(t, a.history.Enabled())
}

func TestServeCmd_InvalidFlag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvBackend, "")

	_, err := execute(t, "serve", "--backend", "chroma")
	assert.ErrorContains(t, err, "invalid flags")
}

func TestNewApp_EmbeddingsTimeout(t *testing.T) {
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer stalled.Close()

	cfg := config.Default()
	cfg.History.Enabled = false
	cfg.Store.Backend = vectorstore.BackendMemory
	cfg.Embeddings.APIKey = "sk-test"
	cfg.Embeddings.BaseURL = stalled.URL + "/v1/"
	cfg.Embeddings.Timeout = 100 * time.Millisecond
	cfg.Embeddings.MaxRetries = 0

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close(context.Background())

	start := time.Now()
	_, err = a.svc.Register(context.Background(), registry.Tool{Name: "grep", Commands: []string{}, Examples: "search files"})
	assert.ErrorIs(t, err, matcher.ErrStore)
	assert.Less(t, time.Since(start), 5*time.Second)
}
