// Package config provides 12-factor configuration management for the
// software bus.
//
// Defaults come from Default. A platform file (YAML or TOML) may be laid
// over them with LoadFile, and environment variables that are set win
// over both.
//
// Configuration Sections:
//   - Bus: message size, pool, pipe and routing limits, housekeeping
//   - Server: ground diagnostics HTTP server
//   - Logging: log level and output format
//   - RateLimit: per-IP API rate limiting
//   - Diag: diagnostic dump directory
//
// Environment Variables:
//   - SB_MAX_MSG_SIZE, SB_POOL_BUFFERS, SB_MAX_PIPES, SB_MAX_PIPE_DEPTH
//   - SB_MAX_MSG_IDS, SB_MAX_DESTS, SB_DEFAULT_MSG_LIMIT, SB_HIGHEST_MSGID
//   - SB_HK_MSGID, SB_HK_PERIOD, SB_EVENT_BURST, SB_EVENT_INTERVAL
//   - PORT, HOST, API_ENABLED, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - DIAG_DIR, DIAG_COMPRESS
package config
