// Package observability provides structured logging helpers and Prometheus
// metrics for the voice agent.
//
// This package implements:
//   - Request-scoped zap loggers carrying request and caller IDs
//   - Pipeline stage latency and outcome metrics
//   - HTTP request metrics keyed by route pattern
package observability
