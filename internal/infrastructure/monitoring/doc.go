/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics for the software bus:
transmit and delivery counts, per-reason drops, receive timeouts, pool and
pipe usage, bus operation latency, and the HTTP and telemetry tap surfaces
of the ground diagnostics API.

# Usage

	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time operations
	timer := monitoring.NewTimer(metrics, "transmit")
	// ... fan out ...
	timer.Stop()

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))
*/
package monitoring
