// Package tracing sets up OpenTelemetry tracing with an OTLP gRPC exporter.
//
// Inbound requests get server spans from Middleware; the backend gateway
// sends through Transport so the backend receives the caller's trace
// context. With tracing disabled, New returns a no-op Tracer.
package tracing
