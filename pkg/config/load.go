package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every configuration override variable.
const EnvPrefix = "LABSIGHT_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention LABSIGHT_SECTION_FIELD (e.g., LABSIGHT_BACKEND_URL).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults, which is how the
// gateway runs on platforms that configure it purely through the environment.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = &Config{}
		ApplyDefaults(cfg)
	} else {
		var err error
		cfg, err = readConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric, boolean and duration values are ignored.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	env := envReader{getenv: getenv}

	// Server overrides
	env.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	env.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	env.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	env.duration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	env.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	env.integer("SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)
	env.boolean("SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	env.list("SERVER_CORS_ALLOWED_ORIGINS", &cfg.Server.CORS.AllowedOrigins)
	env.boolean("SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	env.duration("SERVER_RATE_LIMIT_WINDOW", &cfg.Server.RateLimit.Window)

	// Backend overrides. BACKEND_API_URL is accepted as an alias since that
	// is the name deployment manifests already use.
	env.str("BACKEND_API_URL", &cfg.Backend.URL)
	env.str("BACKEND_URL", &cfg.Backend.URL)
	env.str("BACKEND_AUTH_MODE", &cfg.Backend.AuthMode)
	env.str("BACKEND_AUDIENCE", &cfg.Backend.Audience)
	env.str("BACKEND_API_KEY_SECRET", &cfg.Backend.APIKeySecret)
	env.str("BACKEND_CREDENTIALS_FILE", &cfg.Backend.CredentialsFile)
	env.duration("BACKEND_TIMEOUT", &cfg.Backend.Timeout)

	// Upload overrides
	env.str("UPLOAD_BUCKET", &cfg.Upload.Bucket)
	env.int64("UPLOAD_MAX_SIZE_BYTES", &cfg.Upload.MaxSizeBytes)
	env.list("UPLOAD_ALLOWED_EXTENSIONS", &cfg.Upload.AllowedExtensions)
	env.str("UPLOAD_CREDENTIALS_FILE", &cfg.Upload.CredentialsFile)

	// Poller overrides
	env.duration("POLLER_INTERVAL", &cfg.Poller.Interval)
	env.integer("POLLER_MAX_ATTEMPTS", &cfg.Poller.MaxAttempts)

	// Secrets overrides
	env.str("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix)
	env.str("SECRETS_DIR", &cfg.Secrets.Dir)
	env.boolean("SECRETS_WATCH", &cfg.Secrets.Watch)
	env.duration("SECRETS_CACHE_TTL", &cfg.Secrets.CacheTTL)

	// History overrides
	env.str("HISTORY_PATH", &cfg.History.Path)
	env.integer("HISTORY_RETENTION_DAYS", &cfg.History.RetentionDays)
	env.str("HISTORY_PRUNE_SCHEDULE", &cfg.History.PruneSchedule)

	// Telemetry overrides
	env.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	env.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.boolean("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	env.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Client overrides
	env.str("CLIENT_BASE_URL", &cfg.Client.BaseURL)
	env.integer("CLIENT_MAX_QUERY_LENGTH", &cfg.Client.MaxQueryLength)
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) lookup(name string) (string, bool) {
	val := e.getenv(EnvPrefix + name)
	return val, val != ""
}

func (e envReader) str(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e envReader) list(name string, dst *[]string) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (e envReader) duration(name string, dst *time.Duration) {
	if val, ok := e.lookup(name); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func (e envReader) integer(name string, dst *int) {
	if val, ok := e.lookup(name); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func (e envReader) int64(name string, dst *int64) {
	if val, ok := e.lookup(name); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func (e envReader) float(name string, dst *float64) {
	if val, ok := e.lookup(name); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func (e envReader) boolean(name string, dst *bool) {
	if val, ok := e.lookup(name); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
