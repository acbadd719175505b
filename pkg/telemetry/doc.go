// Package telemetry groups the gateway's observability packages.
//
//   - logging: slog setup with credential redaction and request fields
//   - metrics: Prometheus collector and /metrics handler
//   - tracing: OpenTelemetry tracer, OTLP export and HTTP instrumentation
//   - health: liveness, readiness and version endpoints
package telemetry
