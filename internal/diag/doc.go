// Package diag writes diagnostic dumps of a running bus: the pipe table,
// the routing table, the message map and the counters.
//
// Dumps encode as JSON (sonic) or YAML (goccy/go-yaml) and may be gzip or
// zstd compressed on disk. The HTTP API serves the same Dump documents
// directly.
package diag
