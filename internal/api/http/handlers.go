package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/softbus/internal/diag"
	"github.com/GriffinCanCode/softbus/internal/domain/sb"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/monitoring"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	bus     *sb.Bus
	dumps   *diag.Writer
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewHandlers creates a new handler set. dumps and metrics may be nil, in
// which case the endpoints that need them report 503.
func NewHandlers(bus *sb.Bus, dumps *diag.Writer, metrics *monitoring.Metrics, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		bus:     bus,
		dumps:   dumps,
		metrics: metrics,
		log:     log.Named("api"),
	}
}

// Register mounts every bus endpoint on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/sb")
	{
		api.GET("/stats", h.Stats)
		api.POST("/reset", h.ResetCounters)

		api.GET("/pipes", h.ListPipes)
		api.POST("/pipes", h.CreatePipe)
		api.GET("/pipes/:name", h.GetPipe)
		api.DELETE("/pipes/:name", h.DeletePipe)
		api.POST("/pipes/:name/receive", h.Receive)

		api.POST("/pipes/:name/subscriptions", h.Subscribe)
		api.DELETE("/pipes/:name/subscriptions/:msgid", h.Unsubscribe)
		api.POST("/pipes/:name/subscriptions/:msgid/enable", h.EnableRoute)
		api.POST("/pipes/:name/subscriptions/:msgid/disable", h.DisableRoute)

		api.GET("/routes", h.ListRoutes)
		api.GET("/map", h.ListMap)

		api.POST("/transmit", h.Transmit)
		api.GET("/housekeeping", h.Housekeeping)

		api.GET("/dump/:kind", h.GetDump)
		api.POST("/dump/:kind", h.WriteDump)
	}

	r.GET("/metrics/json", h.MetricsJSON)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "softbus",
		"version": Version,
		"bus_id":  h.bus.ID().String(),
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	stats := h.bus.Stats()
	status := "healthy"
	if stats.Pool.InUse >= stats.Pool.Capacity {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"pipes":       gin.H{"in_use": stats.PipesInUse, "max": stats.MaxPipes},
		"msg_ids":     gin.H{"in_use": stats.MsgIDsInUse, "max": stats.MaxMsgIDs},
		"buffer_pool": stats.Pool,
	})
}

// Stats returns the bus counters and usage.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.bus.Stats())
}

// ResetCounters zeroes the housekeeping counters.
func (h *Handlers) ResetCounters(c *gin.Context) {
	h.bus.ResetCounters()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MetricsJSON returns the API side metrics together with the bus counters.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api": h.metrics.Snapshot(),
		"bus": h.bus.Stats(),
	})
}
