package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with defaults suitable for tests:
// a loopback backend without authentication and a fast poller.
func NewTestConfig() *ConfigBuilder {
	var cfg Config
	ApplyDefaults(&cfg)

	cfg.Backend.URL = "http://127.0.0.1:8000"
	cfg.Backend.AuthMode = AuthModeNone
	cfg.Poller.Interval = 10 * time.Millisecond
	cfg.History.Path = ":memory:"

	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithBackend sets the backend URL and authentication mode.
func (b *ConfigBuilder) WithBackend(url, authMode string) *ConfigBuilder {
	b.cfg.Backend.URL = url
	b.cfg.Backend.AuthMode = authMode
	return b
}

// WithAudience sets the identity-token audience.
func (b *ConfigBuilder) WithAudience(audience string) *ConfigBuilder {
	b.cfg.Backend.Audience = audience
	return b
}

// WithAPIKeySecret sets the secret name holding the backend API key.
func (b *ConfigBuilder) WithAPIKeySecret(name string) *ConfigBuilder {
	b.cfg.Backend.APIKeySecret = name
	return b
}

// WithUploadBucket sets the upload bucket.
func (b *ConfigBuilder) WithUploadBucket(bucket string) *ConfigBuilder {
	b.cfg.Upload.Bucket = bucket
	return b
}

// WithUploadMaxSize sets the upload size limit.
func (b *ConfigBuilder) WithUploadMaxSize(n int64) *ConfigBuilder {
	b.cfg.Upload.MaxSizeBytes = n
	return b
}

// WithPoller sets the poll interval and attempt bound.
func (b *ConfigBuilder) WithPoller(interval time.Duration, maxAttempts int) *ConfigBuilder {
	b.cfg.Poller.Interval = interval
	b.cfg.Poller.MaxAttempts = maxAttempts
	return b
}

// WithRateLimit sets a per-path request limit.
func (b *ConfigBuilder) WithRateLimit(path string, limit int) *ConfigBuilder {
	if b.cfg.Server.RateLimit.Rules == nil {
		b.cfg.Server.RateLimit.Rules = make(map[string]int)
	}
	b.cfg.Server.RateLimit.Rules[path] = limit
	b.cfg.Server.RateLimit.Enabled = true
	return b
}

// WithoutRateLimit disables rate limiting.
func (b *ConfigBuilder) WithoutRateLimit() *ConfigBuilder {
	b.cfg.Server.RateLimit.Enabled = false
	return b
}

// WithSecretsDir points the file secret provider at dir.
func (b *ConfigBuilder) WithSecretsDir(dir string) *ConfigBuilder {
	b.cfg.Secrets.Dir = dir
	return b
}

// WithHistoryPath sets the upload history database path.
func (b *ConfigBuilder) WithHistoryPath(path string) *ConfigBuilder {
	b.cfg.History.Path = path
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithMetrics toggles metrics collection.
func (b *ConfigBuilder) WithMetrics(enabled bool) *ConfigBuilder {
	b.cfg.Telemetry.Metrics.Enabled = enabled
	return b
}

// WithClientBaseURL sets the gateway URL used by CLI commands.
func (b *ConfigBuilder) WithClientBaseURL(url string) *ConfigBuilder {
	b.cfg.Client.BaseURL = url
	return b
}
