// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all engine metrics including:
//   - Ledger size and interaction counts
//   - Embedding sync attempts and durations
//   - Feed cache lookups and invalidations
//   - Remote API and side-channel notification outcomes
//   - Local storage failures
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint of cmd/engine.
//
// Example usage:
//
//	import "newsdeck/internal/observability/metrics"
//
//	func sync() {
//	    start := time.Now()
//	    // ... upload embedding ...
//	    metrics.RecordSync("success", time.Since(start))
//	}
package metrics
