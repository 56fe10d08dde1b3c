package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/softbus/internal/shared/msg"
)

// Config holds all application configuration.
type Config struct {
	Bus       BusConfig       `yaml:"bus" toml:"bus"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Diag      DiagConfig      `yaml:"diag" toml:"diag"`
}

// BusConfig holds the software bus limits. All tables and pools are sized
// from these at start-up and never grow.
type BusConfig struct {
	MaxMsgSize         int      `envconfig:"SB_MAX_MSG_SIZE" yaml:"max_msg_size" toml:"max_msg_size"`
	PoolBuffers        int      `envconfig:"SB_POOL_BUFFERS" yaml:"pool_buffers" toml:"pool_buffers"`
	MaxPipes           int      `envconfig:"SB_MAX_PIPES" yaml:"max_pipes" toml:"max_pipes"`
	MaxPipeDepth       int      `envconfig:"SB_MAX_PIPE_DEPTH" yaml:"max_pipe_depth" toml:"max_pipe_depth"`
	MaxMsgIDs          int      `envconfig:"SB_MAX_MSG_IDS" yaml:"max_msg_ids" toml:"max_msg_ids"`
	MaxDestsPerMsgID   int      `envconfig:"SB_MAX_DESTS" yaml:"max_dests_per_msg_id" toml:"max_dests_per_msg_id"`
	DefaultMsgLimit    int      `envconfig:"SB_DEFAULT_MSG_LIMIT" yaml:"default_msg_limit" toml:"default_msg_limit"`
	HighestValidMsgID  uint32   `envconfig:"SB_HIGHEST_MSGID" yaml:"highest_valid_msg_id" toml:"highest_valid_msg_id"`
	HousekeepingMsgID  uint32   `envconfig:"SB_HK_MSGID" yaml:"housekeeping_msg_id" toml:"housekeeping_msg_id"`
	HousekeepingPeriod Duration `envconfig:"SB_HK_PERIOD" yaml:"housekeeping_period" toml:"housekeeping_period"`
	EventBurst         int      `envconfig:"SB_EVENT_BURST" yaml:"event_burst" toml:"event_burst"`
	EventInterval      Duration `envconfig:"SB_EVENT_INTERVAL" yaml:"event_interval" toml:"event_interval"`
}

// ServerConfig holds the ground diagnostics HTTP server configuration.
type ServerConfig struct {
	Port    string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host    string `envconfig:"HOST" yaml:"host" toml:"host"`
	Enabled bool   `envconfig:"API_ENABLED" yaml:"enabled" toml:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string   `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool     `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
	Output      []string `envconfig:"LOG_OUTPUT" yaml:"output" toml:"output"` // stdout, stderr or file paths
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// DiagConfig holds diagnostic dump configuration.
type DiagConfig struct {
	Dir         string `envconfig:"DIAG_DIR" yaml:"dir" toml:"dir"`
	Compression string `envconfig:"DIAG_COMPRESSION" yaml:"compression" toml:"compression"` // none, gzip or zstd
}

// Duration is a time.Duration that decodes from strings like "500ms" in
// environment variables and config files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load loads configuration from environment variables over the defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			MaxMsgSize:         32768,
			PoolBuffers:        64,
			MaxPipes:           64,
			MaxPipeDepth:       256,
			MaxMsgIDs:          256,
			MaxDestsPerMsgID:   16,
			DefaultMsgLimit:    4,
			HighestValidMsgID:  uint32(msg.DefaultHighestValidMsgID),
			HousekeepingMsgID:  0x0803,
			HousekeepingPeriod: Duration{4 * time.Second},
			EventBurst:         8,
			EventInterval:      Duration{time.Second},
		},
		Server: ServerConfig{
			Port:    "8000",
			Host:    "0.0.0.0",
			Enabled: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Diag: DiagConfig{
			Dir:         "dumps",
			Compression: "none",
		},
	}
}

// Validate rejects limits the bus cannot be built with.
func (c *Config) Validate() error {
	b := c.Bus
	var errs []error
	if b.MaxMsgSize < msg.TelemetryHeaderSize || b.MaxMsgSize > 0xFFFF+7 {
		errs = append(errs, fmt.Errorf("bus.max_msg_size %d out of range [%d, %d]", b.MaxMsgSize, msg.TelemetryHeaderSize, 0xFFFF+7))
	}
	if b.PoolBuffers <= 0 {
		errs = append(errs, fmt.Errorf("bus.pool_buffers must be positive, got %d", b.PoolBuffers))
	}
	if b.MaxPipes <= 0 || b.MaxPipes > 0xFFFF {
		errs = append(errs, fmt.Errorf("bus.max_pipes %d out of range", b.MaxPipes))
	}
	if b.MaxPipeDepth <= 0 {
		errs = append(errs, fmt.Errorf("bus.max_pipe_depth must be positive, got %d", b.MaxPipeDepth))
	}
	if b.MaxMsgIDs <= 0 {
		errs = append(errs, fmt.Errorf("bus.max_msg_ids must be positive, got %d", b.MaxMsgIDs))
	}
	if b.MaxDestsPerMsgID <= 0 {
		errs = append(errs, fmt.Errorf("bus.max_dests_per_msg_id must be positive, got %d", b.MaxDestsPerMsgID))
	}
	if b.DefaultMsgLimit <= 0 || b.DefaultMsgLimit > 0xFFFF {
		errs = append(errs, fmt.Errorf("bus.default_msg_limit %d out of range", b.DefaultMsgLimit))
	}
	if b.HighestValidMsgID > 0xFFFF {
		errs = append(errs, fmt.Errorf("bus.highest_valid_msg_id 0x%X exceeds stream id range", b.HighestValidMsgID))
	}
	if b.HousekeepingMsgID > b.HighestValidMsgID {
		errs = append(errs, fmt.Errorf("bus.housekeeping_msg_id 0x%X above highest valid id", b.HousekeepingMsgID))
	}
	if b.HousekeepingPeriod.Duration < 0 || b.EventInterval.Duration < 0 {
		errs = append(errs, errors.New("bus periods must not be negative"))
	}
	if b.EventBurst < 0 {
		errs = append(errs, fmt.Errorf("bus.event_burst must not be negative, got %d", b.EventBurst))
	}
	switch c.Diag.Compression {
	case "", "none", "gzip", "zstd":
	default:
		errs = append(errs, fmt.Errorf("diag.compression %q not one of none, gzip, zstd", c.Diag.Compression))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
