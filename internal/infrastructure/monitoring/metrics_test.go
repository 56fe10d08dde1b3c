package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBusCounters(t *testing.T) {
	m := NewMetrics(NewRegistry())

	m.RecordSend("tlm", "copy")
	m.RecordSend("tlm", "copy")
	m.RecordDelivered(3)
	m.RecordDrop(DropMsgLimit)
	m.RecordNoSubscribers()
	m.SetBuffers(2, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MsgsSent.WithLabelValues("tlm", "copy")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MsgsDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MsgsDropped.WithLabelValues(DropMsgLimit)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MsgsDropped.WithLabelValues(DropPipeFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NoSubscribers))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.BuffersPeak))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(NewRegistry())
		NewMetrics(NewRegistry())
	})
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/api/pipes/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pipes/42", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/pipes/:id", "404")))
	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
}

func TestTimerNilMetrics(t *testing.T) {
	assert.NotPanics(t, func() { NewTimer(nil, "transmit").Stop() })

	m := NewMetrics(NewRegistry())
	NewTimer(m, "transmit").Stop()
	assert.Equal(t, 1, testutil.CollectAndCount(m.OpDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.SetPipesActive(3)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "softbus_pipes_active 3"))
}
