package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/softbus/internal/diag"
	"github.com/GriffinCanCode/softbus/internal/domain/bufpool"
	"github.com/GriffinCanCode/softbus/internal/domain/sb"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/monitoring"
)

type frame struct {
	Type    string       `json:"type"`
	Session string       `json:"session"`
	Message string       `json:"message"`
	MsgIDs  []string     `json:"msg_ids"`
	Packet  *diag.Packet `json:"packet"`
}

func startTap(t *testing.T) (*sb.Bus, *monitoring.Metrics, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	bus, err := sb.New(sb.DefaultConfig(), sb.WithLogger(log), sb.WithMetrics(metrics))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	router := gin.New()
	router.GET("/tap", NewTap(bus, metrics, log).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tap"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return bus, metrics, conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestTapStreamsSubscribedMessages(t *testing.T) {
	bus, metrics, conn := startTap(t)

	hello := read(t, conn)
	assert.Equal(t, "system", hello.Type)
	assert.True(t, strings.HasPrefix(hello.Session, "tap_"))
	_, err := bus.PipeIDByName(hello.Session)
	require.NoError(t, err, "session pipe is named after the session")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TapConnections))

	require.NoError(t, conn.WriteJSON(Request{Type: "subscribe", MsgIDs: []string{"0x0882", "bogus"}}))
	assert.Equal(t, "error", read(t, conn).Type)
	ack := read(t, conn)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, []string{"0x0882"}, ack.MsgIDs)

	pkt, err := diag.BuildPacket(0x0882, 0, []byte{0xCA, 0xFE})
	require.NoError(t, err)
	require.NoError(t, bus.TransmitMsg(pkt, true))

	f := read(t, conn)
	require.Equal(t, "message", f.Type)
	require.NotNil(t, f.Packet)
	assert.Equal(t, "0x0882", f.Packet.MsgID)
	assert.Equal(t, "cafe", f.Packet.Payload)
	assert.Equal(t, uint16(1), f.Packet.Sequence)
}

func TestTapPingAndUnknown(t *testing.T) {
	_, _, conn := startTap(t)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(Request{Type: "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Request{Type: "launch"}))
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, f.Message, "launch")
}

func TestTapCloseDeletesPipe(t *testing.T) {
	bus, metrics, conn := startTap(t)
	read(t, conn)
	require.Equal(t, 1, bus.Stats().PipesInUse)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	assert.Eventually(t, func() bool {
		return bus.Stats().PipesInUse == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.TapConnections) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReleaseFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus, err := sb.New(sb.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	tap := NewTap(bus, nil, zap.New(core))
	tap.release(&session{log: tap.log}, bufpool.Buffer{})

	entries := logs.FilterMessage("release tap buffer").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}
