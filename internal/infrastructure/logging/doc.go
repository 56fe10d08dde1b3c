// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Bus components receive a named child logger (Component) and log with
// structured fields: msg_id, pipe, event.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	log := logger.Component("sb")
//	log.Info("pipe created", zap.String("pipe", "SAMPLE_CMD"))
package logging
