// Package middleware provides the HTTP middleware of the bus diagnostics
// API.
//
// Middleware stack:
//   - RequestID: tags each request with a ULID request id
//   - AccessLog: one structured zap line per request
//   - CORS: cross-origin access for ground consoles
//   - RateLimit: per-client token bucket with idle eviction
//   - GlobalRateLimit: one bucket for all clients
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.AccessLog(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
