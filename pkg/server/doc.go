// Package server provides the gateway's HTTP server.
//
// It wires the API handlers, health and metrics endpoints behind the
// middleware chain and manages the server lifecycle: start, signal
// handling and graceful shutdown.
//
// # Routes
//
//	POST /api/chat             chat proxy (streamed or JSON)
//	GET  /api/upload/status    upload processing status
//	GET  /api/upload/recent    recent uploads
//	POST /api/upload           multipart upload to object storage
//	GET  /health               liveness
//	GET  /ready                readiness
//	GET  /version              build information
//	GET  /metrics              Prometheus metrics, when enabled
//
// Health, version and metrics paths come from configuration.
//
// # Middleware
//
// Requests pass, outermost first, through panic recovery, request ID
// assignment, logging and metrics, tracing, CORS and per-route rate
// limiting.
//
// # Basic Usage
//
//	gw, err := gateway.New(cfg.Backend, gateway.Options{Secrets: secretsManager})
//	if err != nil {
//	    return err
//	}
//	srv := server.NewServer(cfg, server.Deps{Backend: gw, Metrics: collector})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Graceful Shutdown
//
// Start returns after SIGINT, SIGTERM, context cancellation or Stop. Open
// event streams count as in-flight requests and are waited for up to
// server.shutdown_timeout.
package server
