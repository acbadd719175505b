package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "backend.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateBackend(&cfg.Backend)...)
	errs = append(errs, validateUpload(&cfg.Upload)...)
	errs = append(errs, validatePoller(&cfg.Poller)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateClient(&cfg.Client)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must be non-negative",
		})
	}
	if cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, FieldError{
					Field:   "server.cors.allow_credentials",
					Message: "credentials cannot be allowed with wildcard origin",
				})
				break
			}
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Window <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.window",
				Message: "window must be positive when rate limiting is enabled",
			})
		}
		for path, limit := range cfg.RateLimit.Rules {
			if !strings.HasPrefix(path, "/") {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("server.rate_limit.rules.%s", path),
					Message: "path must start with '/'",
				})
			}
			if limit <= 0 {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("server.rate_limit.rules.%s", path),
					Message: "limit must be positive",
				})
			}
		}
	}

	return errs
}

// validateBackend validates backend configuration.
func validateBackend(cfg *BackendConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "backend.url",
			Message: "backend URL is required",
		})
	} else if u, err := url.Parse(cfg.URL); err != nil {
		errs = append(errs, FieldError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL format: %v", err),
		})
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "backend.url",
			Message: fmt.Sprintf("backend URL %q must be an absolute http(s) URL", cfg.URL),
		})
	}

	validModes := map[string]bool{AuthModeIDToken: true, AuthModeAPIKey: true, AuthModeNone: true}
	if !validModes[cfg.AuthMode] {
		errs = append(errs, FieldError{
			Field:   "backend.auth_mode",
			Message: fmt.Sprintf("invalid auth mode %q: must be 'id_token', 'api_key', or 'none'", cfg.AuthMode),
		})
	}

	if cfg.AuthMode == AuthModeAPIKey && cfg.APIKeySecret == "" {
		errs = append(errs, FieldError{
			Field:   "backend.api_key_secret",
			Message: "API key secret name is required when auth mode is 'api_key'",
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "backend.timeout",
			Message: "timeout must be positive",
		})
	}

	return errs
}

// validateUpload validates upload configuration. An empty bucket is valid
// and disables the upload route.
func validateUpload(cfg *UploadConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxSizeBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "upload.max_size_bytes",
			Message: "max size must be positive",
		})
	}

	for i, ext := range cfg.AllowedExtensions {
		if ext == "" || strings.HasPrefix(ext, ".") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("upload.allowed_extensions[%d]", i),
				Message: fmt.Sprintf("extension %q must be non-empty and given without a leading dot", ext),
			})
		}
	}

	return errs
}

// validatePoller validates poller configuration.
func validatePoller(cfg *PollerConfig) []FieldError {
	var errs []FieldError

	if cfg.Interval <= 0 {
		errs = append(errs, FieldError{
			Field:   "poller.interval",
			Message: "interval must be positive",
		})
	}
	if cfg.MaxAttempts <= 0 {
		errs = append(errs, FieldError{
			Field:   "poller.max_attempts",
			Message: "max attempts must be positive",
		})
	}
	if cfg.MaxAttempts > 1000 {
		errs = append(errs, FieldError{
			Field:   "poller.max_attempts",
			Message: "max attempts exceeds reasonable limit (1000)",
		})
	}

	return errs
}

// validateSecrets validates secrets configuration.
func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError

	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "secrets.cache_ttl",
			Message: "cache TTL must be non-negative",
		})
	}
	if cfg.Watch && cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "secrets.watch",
			Message: "watching requires secrets.dir to be set",
		})
	}

	return errs
}

// validateHistory validates history configuration.
func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "history path is required",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "history.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err),
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	for field, path := range map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
		"telemetry.health.version_path":   cfg.Health.VersionPath,
	} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "path must start with '/'",
			})
		}
	}

	return errs
}

// validateClient validates client configuration.
func validateClient(cfg *ClientConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   "client.base_url",
			Message: "base URL is required",
		})
	} else if _, err := url.Parse(cfg.BaseURL); err != nil {
		errs = append(errs, FieldError{
			Field:   "client.base_url",
			Message: fmt.Sprintf("invalid URL format: %v", err),
		})
	}

	if cfg.MaxQueryLength <= 0 {
		errs = append(errs, FieldError{
			Field:   "client.max_query_length",
			Message: "max query length must be positive",
		})
	}

	return errs
}
