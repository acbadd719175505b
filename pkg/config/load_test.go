package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labsight.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: "45s"

backend:
  url: "https://rag.example.run.app"
  auth_mode: "api_key"
  api_key_secret: "rag-key"

upload:
  bucket: "labsight-uploads"
  max_size_bytes: 2048

poller:
  interval: "1s"
  max_attempts: 5

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("expected read timeout %v, got %v", 45*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Backend.AuthMode != AuthModeAPIKey {
		t.Errorf("expected auth mode %q, got %q", AuthModeAPIKey, cfg.Backend.AuthMode)
	}
	if cfg.Backend.APIKeySecret != "rag-key" {
		t.Errorf("expected secret name %q, got %q", "rag-key", cfg.Backend.APIKeySecret)
	}
	if cfg.Upload.MaxSizeBytes != 2048 {
		t.Errorf("expected max size 2048, got %d", cfg.Upload.MaxSizeBytes)
	}
	if cfg.Poller.Interval != time.Second || cfg.Poller.MaxAttempts != 5 {
		t.Errorf("unexpected poller config: %+v", cfg.Poller)
	}
	if cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("expected logging format %q, got %q", "text", cfg.Telemetry.Logging.Format)
	}

	// Untouched sections receive defaults
	if cfg.Backend.Timeout != DefaultBackendTimeout {
		t.Errorf("expected default backend timeout, got %v", cfg.Backend.Timeout)
	}
	if !cfg.Server.CORS.Enabled {
		t.Error("expected CORS enabled by default")
	}
	if got := cfg.Server.RateLimit.Rules["/api/chat"]; got != DefaultChatRateLimit {
		t.Errorf("expected chat limit %d, got %d", DefaultChatRateLimit, got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("failed to load empty config: %v", err)
	}

	if cfg.Backend.AuthMode != AuthModeIDToken {
		t.Errorf("expected default auth mode %q, got %q", AuthModeIDToken, cfg.Backend.AuthMode)
	}
	if cfg.Poller.Interval != 3*time.Second {
		t.Errorf("expected poll interval 3s, got %v", cfg.Poller.Interval)
	}
	if cfg.Poller.MaxAttempts != 20 {
		t.Errorf("expected 20 poll attempts, got %d", cfg.Poller.MaxAttempts)
	}
	if cfg.Upload.MaxSizeBytes != 10*1024*1024 {
		t.Errorf("expected 10MB upload limit, got %d", cfg.Upload.MaxSizeBytes)
	}
	if got := cfg.Server.RateLimit.Rules["/api/upload"]; got != 5 {
		t.Errorf("expected upload limit 5, got %d", got)
	}
	if !cfg.Telemetry.Logging.RedactCredentials {
		t.Error("expected credential redaction on by default")
	}
}

func TestLoadConfig_ExplicitFalseRespected(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
server:
  cors:
    enabled: false
    allowed_origins: ["https://lab.example.com"]
  rate_limit:
    enabled: false
    window: "30s"
`))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.CORS.Enabled {
		t.Error("expected CORS to stay disabled")
	}
	if cfg.Server.RateLimit.Enabled {
		t.Error("expected rate limiting to stay disabled")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unterminated\n"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
backend:
  auth_mode: "kerberos"
`))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "backend.auth_mode" {
		t.Errorf("expected backend.auth_mode error, got %s", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: "https://from-file.example.com"
`)

	t.Setenv("LABSIGHT_BACKEND_URL", "https://from-env.example.com")
	t.Setenv("LABSIGHT_BACKEND_AUTH_MODE", "none")
	t.Setenv("LABSIGHT_POLLER_INTERVAL", "500ms")
	t.Setenv("LABSIGHT_POLLER_MAX_ATTEMPTS", "7")
	t.Setenv("LABSIGHT_UPLOAD_ALLOWED_EXTENSIONS", "md, txt ,pdf")
	t.Setenv("LABSIGHT_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend.URL != "https://from-env.example.com" {
		t.Errorf("expected env URL, got %q", cfg.Backend.URL)
	}
	if cfg.Backend.AuthMode != AuthModeNone {
		t.Errorf("expected auth mode none, got %q", cfg.Backend.AuthMode)
	}
	if cfg.Poller.Interval != 500*time.Millisecond {
		t.Errorf("expected 500ms interval, got %v", cfg.Poller.Interval)
	}
	if cfg.Poller.MaxAttempts != 7 {
		t.Errorf("expected 7 attempts, got %d", cfg.Poller.MaxAttempts)
	}
	want := []string{"md", "txt", "pdf"}
	if strings.Join(cfg.Upload.AllowedExtensions, ",") != strings.Join(want, ",") {
		t.Errorf("expected extensions %v, got %v", want, cfg.Upload.AllowedExtensions)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled from env")
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("LABSIGHT_BACKEND_API_URL", "https://alias.example.com")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Backend.URL != "https://alias.example.com" {
		t.Errorf("expected alias URL, got %q", cfg.Backend.URL)
	}
}

func TestApplyEnvOverrides_IgnoresMalformedValues(t *testing.T) {
	cfg := NewTestConfig().Build()
	env := map[string]string{
		"LABSIGHT_POLLER_INTERVAL":       "soon",
		"LABSIGHT_POLLER_MAX_ATTEMPTS":   "many",
		"LABSIGHT_SECRETS_WATCH":         "perhaps",
		"LABSIGHT_UPLOAD_MAX_SIZE_BYTES": "10MB",
	}
	before := *cfg

	applyEnvOverrides(cfg, func(k string) string { return env[k] })

	if cfg.Poller != before.Poller {
		t.Errorf("poller changed by malformed values: %+v", cfg.Poller)
	}
	if cfg.Secrets.Watch != before.Secrets.Watch {
		t.Error("watch changed by malformed value")
	}
	if cfg.Upload.MaxSizeBytes != before.Upload.MaxSizeBytes {
		t.Error("max size changed by malformed value")
	}
}
