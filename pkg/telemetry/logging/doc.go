// Package logging configures structured logging for the gateway on top of
// log/slog.
//
// Loggers built by New mask credentials (Authorization and x-api-key values,
// bearer tokens, secrets) and attach request-scoped fields stored with
// WithRequestID and WithTarget to records logged through the *Context
// methods:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, nil)
//	slog.SetDefault(logger)
//	slog.InfoContext(logging.WithRequestID(ctx, id), "forwarding request")
package logging
