// Package health implements the liveness, readiness and version endpoints.
//
// Readiness checks are registered by name at startup (backend URL
// resolution, secret availability) and run concurrently on every probe.
package health
