// Package metric provides Prometheus metrics for stillpoint.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, typed metrics and HTTP handler
//   - collector.go: collector reporting the checkpoint file as seen on disk
//   - server.go: optional /metrics HTTP endpoint
//
// Metrics include:
//
//   - Checkpoint save counts, retries and latency
//   - Last saved counter and timestamp
//   - Startup recovery decisions
//   - Work loop progress
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
