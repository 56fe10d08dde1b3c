// Package main is the entry point of the software bus daemon.
//
// It builds one bus instance from the platform configuration, publishes
// housekeeping telemetry on a fixed period and serves the ground
// diagnostics API, the websocket telemetry tap and Prometheus metrics.
//
// Configuration:
//   - YAML or TOML file (-config)
//   - Environment variables (override the file)
//   - CLI flags (override both)
//
// Usage:
//
//	./softbus -config platform.yaml
//
//	# Development mode (console logs, debug level)
//	./softbus -dev -port 8100
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
