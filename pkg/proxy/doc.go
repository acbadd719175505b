// Package proxy is the HTTP surface of the Labsight gateway.
//
// Browser and CLI clients call the gateway instead of the backend, so the
// backend credential never leaves the server. Routes:
//
//   - POST /api/chat: forwarded verbatim; event streams are relayed byte for
//     byte and flushed as they arrive, other responses are mirrored as JSON
//   - GET /api/upload/status: requires file_name, mirrors the backend
//   - GET /api/upload/recent: mirrors the backend
//   - POST /api/upload: multipart upload straight to object storage
//   - /health, /ready, /version and /metrics
//
// Every error body uses the backend's shape:
//
//	{"detail": "human readable message"}
//
// Subpackages:
//
//   - handlers: route handlers
//   - middleware: request IDs, logging, recovery, CORS, rate limiting
package proxy
