package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSMaxAge = 3600

	// Rate limit defaults
	DefaultRateLimitWindow = 60 * time.Second
	DefaultChatRateLimit   = 20
	DefaultUploadRateLimit = 5

	// Backend defaults
	DefaultBackendURL     = "http://localhost:8000"
	DefaultAuthMode       = AuthModeIDToken
	DefaultAPIKeySecret   = "backend-api-key"
	DefaultBackendTimeout = 60 * time.Second

	// Upload defaults
	DefaultUploadMaxSizeBytes = 10 * 1024 * 1024

	// Poller defaults
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxAttempts = 20

	// Secrets defaults
	DefaultSecretsEnvPrefix = "LABSIGHT_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute

	// History defaults
	DefaultHistoryPath          = "data/uploads.db"
	DefaultHistoryRetentionDays = 30
	DefaultHistoryPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "labsight"
	DefaultMetricsSubsystem   = "gateway"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "labsight-gateway"
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second

	// Client defaults
	DefaultClientBaseURL  = "http://127.0.0.1:8080"
	DefaultMaxQueryLength = 1000
)

// DefaultAllowedExtensions mirrors what the ingestion pipeline can sanitize
// and chunk.
var DefaultAllowedExtensions = []string{
	"md", "txt", "pdf", "yaml", "yml", "json", "toml", "conf", "cfg", "ini",
	"sh", "py", "dockerfile",
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
//
// Boolean fields that default to true (CORS, rate limiting, metrics,
// credential redaction) are only defaulted when the surrounding section is
// entirely empty, so an explicit "false" in YAML is respected.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(cfg)

	// Backend defaults
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}
	if cfg.Backend.AuthMode == "" {
		cfg.Backend.AuthMode = DefaultAuthMode
	}
	if cfg.Backend.APIKeySecret == "" {
		cfg.Backend.APIKeySecret = DefaultAPIKeySecret
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = DefaultBackendTimeout
	}

	// Upload defaults
	if cfg.Upload.MaxSizeBytes == 0 {
		cfg.Upload.MaxSizeBytes = DefaultUploadMaxSizeBytes
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}

	// Poller defaults
	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = DefaultPollInterval
	}
	if cfg.Poller.MaxAttempts == 0 {
		cfg.Poller.MaxAttempts = DefaultPollMaxAttempts
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}

	// History defaults
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = DefaultHistoryRetentionDays
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultHistoryPruneSchedule
	}

	applyTelemetryDefaults(cfg)

	// Client defaults
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = DefaultClientBaseURL
	}
	if cfg.Client.MaxQueryLength == 0 {
		cfg.Client.MaxQueryLength = DefaultMaxQueryLength
	}
}

func applyServerDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS: an untouched section means "enabled with defaults"
	if isZeroCORS(&s.CORS) {
		s.CORS.Enabled = true
	}
	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = []string{"*"}
	}
	if len(s.CORS.AllowedMethods) == 0 {
		s.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(s.CORS.AllowedHeaders) == 0 {
		s.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if len(s.CORS.ExposedHeaders) == 0 {
		s.CORS.ExposedHeaders = []string{"X-Request-ID"}
	}
	if s.CORS.MaxAge == 0 {
		s.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Rate limits
	if s.RateLimit.Window == 0 && s.RateLimit.Rules == nil && !s.RateLimit.Enabled {
		s.RateLimit.Enabled = true
	}
	if s.RateLimit.Window == 0 {
		s.RateLimit.Window = DefaultRateLimitWindow
	}
	if s.RateLimit.Rules == nil {
		s.RateLimit.Rules = map[string]int{
			"/api/chat":   DefaultChatRateLimit,
			"/api/upload": DefaultUploadRateLimit,
		}
	}
}

func applyTelemetryDefaults(cfg *Config) {
	t := &cfg.Telemetry

	if t.Logging.Level == "" && t.Logging.Format == "" && !t.Logging.AddSource {
		t.Logging.RedactCredentials = true
	}
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.Path == "" && t.Metrics.Namespace == "" && t.Metrics.Subsystem == "" {
		t.Metrics.Enabled = true
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		// Backend latencies range from sub-second status checks to long streams
		t.Metrics.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}

	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}

func isZeroCORS(c *CORSConfig) bool {
	return !c.Enabled && !c.AllowCredentials && c.MaxAge == 0 &&
		len(c.AllowedOrigins) == 0 && len(c.AllowedMethods) == 0 &&
		len(c.AllowedHeaders) == 0 && len(c.ExposedHeaders) == 0
}
