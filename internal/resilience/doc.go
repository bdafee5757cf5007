// Package resilience provides the fault tolerance patterns used by the engine.
//
// The package supports:
//   - Circuit breakers around the Remote API, side-channel notifications and the local store
//   - Retry logic with exponential backoff and jitter for idempotent reads
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.RemoteAPIConfig())
//	err := cb.Do(func() error {
//	    return callRemoteAPI()
//	})
//
//	err = retry.WithBackoff(ctx, retry.RemoteAPIConfig(), func() error {
//	    return fetchFeed()
//	})
package resilience
