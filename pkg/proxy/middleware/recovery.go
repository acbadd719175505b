package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"labsight/gateway/pkg/proxy"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// response with a generic detail message. It logs the panic with stack trace
// for debugging but does not expose internal details to clients.
//
// http.ErrAbortHandler is re-panicked so the server aborts the connection
// the way it would without this middleware.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				proxy.WriteDetail(w, http.StatusInternalServerError, proxy.MsgInternal)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
