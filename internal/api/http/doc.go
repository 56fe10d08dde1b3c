// Package http provides the ground diagnostics and command REST API of the
// software bus.
//
// Endpoints:
//   - Health: / and /health
//   - Stats: /sb/stats, /sb/reset, /sb/housekeeping
//   - Pipes: /sb/pipes, /sb/pipes/:name, /sb/pipes/:name/receive
//   - Subscriptions: /sb/pipes/:name/subscriptions[/:msgid[/enable|/disable]]
//   - Tables: /sb/routes, /sb/map
//   - Injection: /sb/transmit
//   - Dumps: /sb/dump/:kind (GET returns, POST writes a file)
//   - Metrics: /metrics/json
//
// Errors are JSON objects carrying the message and the bus status
// category. Message ids accept decimal or 0x-prefixed hex.
//
// Example Usage:
//
//	handlers := http.NewHandlers(bus, diag.NewWriter(dir, diag.CompressGzip, log), metrics, log)
//	handlers.Register(router)
package http
