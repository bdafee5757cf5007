// Package tracing provides OpenTelemetry tracing integration.
//
// The engine creates spans around embedding syncs and every Remote API call.
// Exporters are configured by the embedding application through the global
// TracerProvider; without one, spans are no-ops.
//
// Example usage:
//
//	client := &http.Client{Transport: tracing.NewTransport(nil)}
//
//	ctx, span := tracing.StartSpan(ctx, "session.sync")
//	defer func() { tracing.EndSpan(span, err) }()
package tracing
