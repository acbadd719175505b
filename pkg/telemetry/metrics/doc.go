// Package metrics exposes gateway metrics in the Prometheus format.
//
// A single Collector is created at startup and handed to the HTTP
// middleware, the backend gateway, the upload handler and the poller:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// NewCollector returns nil when metrics are disabled; every method on a nil
// Collector is a no-op.
package metrics
