package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/softbus/internal/infrastructure/config"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
)

func newServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Enabled = false
	cfg.Diag.Dir = t.TempDir()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := NewWithLogger(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestBusConfig(t *testing.T) {
	c := config.Default().Bus
	c.HighestValidMsgID = 0x0FFF
	c.EventInterval = config.Duration{Duration: 3 * time.Second}

	got := BusConfig(c)
	assert.Equal(t, c.MaxMsgSize, got.MaxMsgSize)
	assert.Equal(t, c.PoolBuffers, got.PoolBuffers)
	assert.Equal(t, msg.MsgID(0x0FFF), got.HighestValidMsgID)
	assert.Equal(t, msg.MsgID(c.HousekeepingMsgID), got.HousekeepingMsgID)
	assert.Equal(t, 3*time.Second, got.EventInterval)
}

func TestRoutesMounted(t *testing.T) {
	s := newServer(t)

	w := get(t, s, "/sb/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "softbus_http_requests_total")
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Diag.Compression = "lz4"
	_, err := NewWithLogger(cfg, logging.NewNop())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Bus.DefaultMsgLimit = 0
	_, err = NewWithLogger(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestRunSendsHousekeeping(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.Bus.HousekeepingPeriod = config.Duration{Duration: 10 * time.Millisecond}
	})
	bus := s.Bus()
	pid, err := bus.CreatePipe(8, "HK_PIPE")
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(msg.MsgID(config.Default().Bus.HousekeepingMsgID), pid))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		st, err := bus.PipeStats(pid)
		return err == nil && st.Current > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAddr(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = "9100"
	})
	assert.True(t, strings.HasSuffix(s.Addr(), ":9100"))
}

func TestNewLogsToConfiguredOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "softbus.log")
	cfg := config.Default()
	cfg.Server.Enabled = false
	cfg.Diag.Dir = t.TempDir()
	cfg.Logging.Output = []string{path}

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Server initialized")
	assert.Contains(t, string(data), `"bus_id"`)
}
