package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label.
const (
	DropPipeFull = "pipe_full"
	DropMsgLimit = "msg_limit"
	DropClosed   = "pipe_closed"
	DropNoBuffer = "no_buffer"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Bus metrics
	MsgsSent        *prometheus.CounterVec
	MsgsDelivered   prometheus.Counter
	MsgsDropped     *prometheus.CounterVec
	NoSubscribers   prometheus.Counter
	ReceiveTimeouts prometheus.Counter
	BusErrors       *prometheus.CounterVec
	OpDuration      *prometheus.HistogramVec

	// Resource metrics
	BuffersInUse prometheus.Gauge
	BuffersPeak  prometheus.Gauge
	PipesActive  prometheus.Gauge
	RoutesActive prometheus.Gauge

	// Telemetry tap metrics
	TapConnections prometheus.Gauge
	TapMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	TapSessions    int64   `json:"tap_sessions"`
	TotalDuration  float64 `json:"total_duration_seconds"`
	RequestCount   int64   `json:"request_count"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	AvgRequestSecs float64 `json:"avg_request_seconds"`
}

// NewMetrics creates a metrics collector registered with reg. Each bus
// instance gets its own registry so tests can build many side by side.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softbus_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softbus_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softbus_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softbus_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Bus metrics
		MsgsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softbus_msgs_sent_total",
				Help: "Messages accepted for transmit",
			},
			[]string{"type", "path"},
		),
		MsgsDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "softbus_msgs_delivered_total",
				Help: "Message references enqueued to pipes",
			},
		),
		MsgsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softbus_msgs_dropped_total",
				Help: "Per-destination deliveries dropped",
			},
			[]string{"reason"},
		),
		NoSubscribers: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "softbus_no_subscribers_total",
				Help: "Messages transmitted with no subscriber",
			},
		),
		ReceiveTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "softbus_receive_timeouts_total",
				Help: "Receives that returned without data",
			},
		),
		BusErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softbus_errors_total",
				Help: "Bus calls rejected, by operation and category",
			},
			[]string{"op", "category"},
		),
		OpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softbus_op_duration_seconds",
				Help:    "Bus operation duration in seconds",
				Buckets: []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"op"},
		),

		// Resource metrics
		BuffersInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "softbus_buffers_in_use",
				Help: "Pool buffers currently allocated",
			},
		),
		BuffersPeak: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "softbus_buffers_peak",
				Help: "High-water mark of allocated pool buffers",
			},
		),
		PipesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "softbus_pipes_active",
				Help: "Number of open pipes",
			},
		),
		RoutesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "softbus_msg_ids_routed",
				Help: "Message ids holding a route entry",
			},
		),

		// Telemetry tap metrics
		TapConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "softbus_tap_connections",
				Help: "Number of active telemetry tap connections",
			},
		),
		TapMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softbus_tap_messages_total",
				Help: "Total number of telemetry tap frames",
			},
			[]string{"direction"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "softbus_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	return m
}

// RunUptime updates the uptime gauge every second until ctx is done.
func (m *Metrics) RunUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSend records one accepted transmit. path is "copy" or "zero_copy".
func (m *Metrics) RecordSend(msgType, path string) {
	m.MsgsSent.WithLabelValues(msgType, path).Inc()
}

// RecordDelivered records n successful enqueues.
func (m *Metrics) RecordDelivered(n int) {
	m.MsgsDelivered.Add(float64(n))
}

// RecordDrop records one dropped delivery.
func (m *Metrics) RecordDrop(reason string) {
	m.MsgsDropped.WithLabelValues(reason).Inc()
}

// RecordNoSubscribers records a transmit with no destination.
func (m *Metrics) RecordNoSubscribers() {
	m.NoSubscribers.Inc()
}

// RecordReceiveTimeout records a receive that found no data.
func (m *Metrics) RecordReceiveTimeout() {
	m.ReceiveTimeouts.Inc()
}

// RecordError records a rejected bus call.
func (m *Metrics) RecordError(op, category string) {
	m.BusErrors.WithLabelValues(op, category).Inc()
}

// SetBuffers sets the pool gauges.
func (m *Metrics) SetBuffers(inUse, peak int) {
	m.BuffersInUse.Set(float64(inUse))
	m.BuffersPeak.Set(float64(peak))
}

// SetPipesActive sets the number of open pipes
func (m *Metrics) SetPipesActive(count int) {
	m.PipesActive.Set(float64(count))
}

// SetRoutesActive sets the number of routed message ids
func (m *Metrics) SetRoutesActive(count int) {
	m.RoutesActive.Set(float64(count))
}

// RecordTapMessage records a telemetry tap frame
func (m *Metrics) RecordTapMessage(direction string) {
	m.TapMessages.WithLabelValues(direction).Inc()
}

// IncTapConnections increments tap connections
func (m *Metrics) IncTapConnections() {
	m.TapConnections.Inc()
	m.mu.Lock()
	m.snapshot.TapSessions++
	m.mu.Unlock()
}

// DecTapConnections decrements tap connections
func (m *Metrics) DecTapConnections() {
	m.TapConnections.Dec()
	m.mu.Lock()
	m.snapshot.TapSessions--
	m.mu.Unlock()
}

// Snapshot returns the JSON API view of the HTTP side.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	if s.RequestCount > 0 {
		s.AvgRequestSecs = s.TotalDuration / float64(s.RequestCount)
	}
	return s
}
