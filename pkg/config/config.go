package config

import "time"

// Config is the root configuration structure for the Labsight gateway.
// It contains all configuration sections for the HTTP server, the backend
// gateway, uploads, the status poller, secrets, telemetry and the CLI client.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, CORS and per-route rate limits.
	Server ServerConfig `yaml:"server"`

	// Backend describes the chat/status backend every proxied route talks to
	// and how outbound requests authenticate against it.
	Backend BackendConfig `yaml:"backend"`

	// Upload contains configuration for the file upload route.
	Upload UploadConfig `yaml:"upload"`

	// Poller contains the bounded status polling parameters used after an upload.
	Poller PollerConfig `yaml:"poller"`

	// Secrets configures where secret values (such as the backend API key)
	// are read from.
	Secrets SecretsConfig `yaml:"secrets"`

	// History configures the local upload history kept by the CLI.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains configuration for logging, metrics, tracing and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Client contains settings used by CLI commands that talk to a running gateway.
	Client ClientConfig `yaml:"client"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of a
	// non-streamed response. Event-stream responses clear their write
	// deadline and are bounded only by the backend.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// RateLimit contains per-route request limits keyed by client IP.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted. Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache duration in seconds. Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed. Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// RateLimitConfig configures sliding-window limits on exact request paths.
type RateLimitConfig struct {
	// Enabled turns rate limiting on. Default: true
	Enabled bool `yaml:"enabled"`

	// Window is the sliding window length. Default: 60s
	Window time.Duration `yaml:"window"`

	// Rules maps an exact request path to the maximum number of requests a
	// single client IP may make within Window.
	// Default: {"/api/chat": 20, "/api/upload": 5}
	Rules map[string]int `yaml:"rules"`
}

// Authentication modes accepted in BackendConfig.AuthMode.
const (
	AuthModeIDToken = "id_token"
	AuthModeAPIKey  = "api_key"
	AuthModeNone    = "none"
)

// BackendConfig describes the upstream chat/status backend.
type BackendConfig struct {
	// URL is the base URL of the backend, e.g. "https://rag-xyz.a.run.app".
	// Loopback hosts (localhost, 127.0.0.0/8, ::1) never receive credentials.
	// Default: "http://localhost:8000"
	URL string `yaml:"url"`

	// AuthMode selects the credential strategy: "id_token", "api_key" or "none".
	// Default: "id_token"
	AuthMode string `yaml:"auth_mode"`

	// Audience is the identity-token audience. Empty means the backend URL.
	Audience string `yaml:"audience"`

	// APIKeySecret is the secret name resolved through the secrets manager
	// when AuthMode is "api_key". Default: "backend-api-key"
	APIKeySecret string `yaml:"api_key_secret"`

	// CredentialsFile optionally points identity-token acquisition at a
	// service account key instead of application default credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// Timeout bounds non-streamed backend calls. Streamed chat responses
	// are bounded by the client context instead. Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// UploadConfig contains configuration for the upload route.
type UploadConfig struct {
	// Bucket is the object storage bucket receiving uploads. An empty bucket
	// disables the upload route (503).
	Bucket string `yaml:"bucket"`

	// MaxSizeBytes is the maximum accepted upload size. Default: 10MB
	MaxSizeBytes int64 `yaml:"max_size_bytes"`

	// AllowedExtensions lists accepted file extensions without the dot.
	// Dotless names such as "dockerfile" are matched by lowercase basename.
	AllowedExtensions []string `yaml:"allowed_extensions"`

	// CredentialsFile optionally points the storage client at a service
	// account key. Empty uses application default credentials.
	CredentialsFile string `yaml:"credentials_file"`
}

// PollerConfig contains the upload status polling parameters.
type PollerConfig struct {
	// Interval is the fixed delay between status checks. Default: 3s
	Interval time.Duration `yaml:"interval"`

	// MaxAttempts bounds the number of status checks. Default: 20
	MaxAttempts int `yaml:"max_attempts"`
}

// SecretsConfig configures secret providers. Providers are consulted in
// order: files (when Dir is set), then environment variables.
type SecretsConfig struct {
	// EnvPrefix is prepended to environment variable names.
	// Default: "LABSIGHT_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret (Kubernetes style).
	Dir string `yaml:"dir"`

	// Watch reloads file secrets when the directory changes. Default: false
	Watch bool `yaml:"watch"`

	// CacheTTL controls how long resolved secrets are cached. Zero disables
	// caching. Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// HistoryConfig configures the CLI's local upload history.
type HistoryConfig struct {
	// Path is the SQLite database file. Default: "data/uploads.db"
	Path string `yaml:"path"`

	// RetentionDays is how long terminal upload records are kept. Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a standard cron expression. Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is the output format: json or text. Default: json
	Format string `yaml:"format"`

	// AddSource includes file:line in log records. Default: false
	AddSource bool `yaml:"add_source"`

	// RedactCredentials masks credential-bearing attributes. Default: true
	RedactCredentials bool `yaml:"redact_credentials"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes metrics. Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path. Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name. Default: "labsight"
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name component. Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are histogram buckets in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled turns on span export. Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector. Default: false
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the parent-based trace ID ratio. Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as service.name. Default: "labsight-gateway"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath defaults to "/health".
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath defaults to "/ready".
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath defaults to "/version".
	VersionPath string `yaml:"version_path"`

	// CheckTimeout bounds each readiness check. Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ClientConfig holds settings for CLI commands that call a running gateway.
type ClientConfig struct {
	// BaseURL is the gateway base URL. Default: "http://127.0.0.1:8080"
	BaseURL string `yaml:"base_url"`

	// MaxQueryLength bounds the length of a chat query. Default: 1000
	MaxQueryLength int `yaml:"max_query_length"`
}
