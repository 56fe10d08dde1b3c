package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/GriffinCanCode/softbus/internal/api/http"
	"github.com/GriffinCanCode/softbus/internal/api/middleware"
	"github.com/GriffinCanCode/softbus/internal/api/ws"
	"github.com/GriffinCanCode/softbus/internal/diag"
	"github.com/GriffinCanCode/softbus/internal/domain/sb"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/config"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/softbus/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/softbus/internal/shared/msg"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the bus, its ground API and their dependencies
type Server struct {
	config   *config.Config
	bus      *sb.Bus
	router   *gin.Engine
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
}

// BusConfig converts the platform configuration to bus limits.
func BusConfig(c config.BusConfig) sb.Config {
	return sb.Config{
		MaxMsgSize:        c.MaxMsgSize,
		PoolBuffers:       c.PoolBuffers,
		MaxPipes:          c.MaxPipes,
		MaxPipeDepth:      c.MaxPipeDepth,
		MaxMsgIDs:         c.MaxMsgIDs,
		MaxDestsPerMsgID:  c.MaxDestsPerMsgID,
		DefaultMsgLimit:   c.DefaultMsgLimit,
		HighestValidMsgID: msg.MsgID(c.HighestValidMsgID),
		HousekeepingMsgID: msg.MsgID(c.HousekeepingMsgID),
		EventBurst:        c.EventBurst,
		EventInterval:     c.EventInterval.Duration,
	}
}

// New creates a server instance. The bus is built immediately; nothing
// listens until Run.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	compression, err := diag.ParseCompression(cfg.Diag.Compression)
	if err != nil {
		return nil, err
	}

	registry := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	bus, err := sb.New(BusConfig(cfg.Bus),
		sb.WithLogger(logger.Component("sb")),
		sb.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create software bus: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	apiLog := logger.Component("api")
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(apiLog))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	dumps := diag.NewWriter(cfg.Diag.Dir, compression, logger.Component("diag"))
	api.NewHandlers(bus, dumps, metrics, apiLog).Register(router)
	router.GET("/tap", ws.NewTap(bus, metrics, logger.Logger).HandleConnection)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(registry)))

	logger.Info("Server initialized",
		zap.String("bus_id", bus.ID().String()),
		zap.Int("pool_buffers", cfg.Bus.PoolBuffers),
		zap.Int("max_pipes", cfg.Bus.MaxPipes),
		zap.Bool("api_enabled", cfg.Server.Enabled),
	)

	return &Server{
		config:   cfg,
		bus:      bus,
		router:   router,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
	}, nil
}

// Bus returns the software bus.
func (s *Server) Bus() *sb.Bus { return s.bus }

// Handler returns the HTTP handler of the ground API.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the listen address of the ground API.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run runs housekeeping, the uptime gauge and, when enabled, the HTTP
// server until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if period := s.config.Bus.HousekeepingPeriod.Duration; period > 0 {
		g.Go(func() error {
			s.bus.RunHousekeeping(ctx, period)
			return nil
		})
	}
	g.Go(func() error {
		s.metrics.RunUptime(ctx)
		return nil
	})

	if s.config.Server.Enabled {
		srv := &http.Server{
			Addr:              s.Addr(),
			Handler:           s.router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close shuts the bus down and flushes the logger.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	err := s.bus.Close()
	_ = s.logger.Sync()
	return err
}
