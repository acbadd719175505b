// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server chains middleware in this order:
//
//	handler = Recovery(RequestID(Logging(CORS(RateLimit(handler)))))
//
// Order (innermost to outermost):
//  1. RateLimit: per client IP and exact path sliding window, 429 when exceeded
//  2. CORS: Cross-Origin Resource Sharing headers and preflight replies
//  3. Logging: request/response log line and HTTP metrics
//  4. RequestID: generate or accept X-Request-ID
//  5. Recovery: turn panics into 500 {"detail": ...}
//
// # Request ID
//
// RequestIDMiddleware accepts a client-supplied X-Request-ID (up to 128
// bytes) or generates a UUID v4:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored in the request context through the logging package, so
// every slog call made with that context carries request_id. The gateway
// forwards it to the backend.
//
// # Streaming
//
// The logging wrapper implements http.Flusher and Unwrap, so handlers
// relaying event streams can flush per read and clear their write deadline
// through http.ResponseController.
//
// # Rate Limiting
//
// Rules match exact paths only: a rule for /api/upload does not limit
// /api/upload/status. A rejected request receives:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 42
//
//	{"detail": "Rate limit exceeded. Try again shortly."}
package middleware
