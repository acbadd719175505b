package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_TestConfigIsValid(t *testing.T) {
	if err := Validate(NewTestConfig().Build()); err != nil {
		t.Fatalf("expected test config to be valid, got %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "" },
			field:  "server.listen_address",
		},
		{
			name:   "listen address without port",
			mutate: func(c *Config) { c.Server.ListenAddress = "localhost" },
			field:  "server.listen_address",
		},
		{
			name:   "negative read timeout",
			mutate: func(c *Config) { c.Server.ReadTimeout = -time.Second },
			field:  "server.read_timeout",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.Server.CORS.AllowCredentials = true
				c.Server.CORS.AllowedOrigins = []string{"*"}
			},
			field: "server.cors.allow_credentials",
		},
		{
			name:   "zero rate limit",
			mutate: func(c *Config) { c.Server.RateLimit.Rules = map[string]int{"/api/chat": 0} },
			field:  "server.rate_limit.rules./api/chat",
		},
		{
			name:   "relative backend URL",
			mutate: func(c *Config) { c.Backend.URL = "rag.internal" },
			field:  "backend.url",
		},
		{
			name:   "unknown auth mode",
			mutate: func(c *Config) { c.Backend.AuthMode = "oauth" },
			field:  "backend.auth_mode",
		},
		{
			name: "api key mode without secret name",
			mutate: func(c *Config) {
				c.Backend.AuthMode = AuthModeAPIKey
				c.Backend.APIKeySecret = ""
			},
			field: "backend.api_key_secret",
		},
		{
			name:   "dotted extension",
			mutate: func(c *Config) { c.Upload.AllowedExtensions = []string{".md"} },
			field:  "upload.allowed_extensions[0]",
		},
		{
			name:   "zero poll interval",
			mutate: func(c *Config) { c.Poller.Interval = 0 },
			field:  "poller.interval",
		},
		{
			name:   "zero poll attempts",
			mutate: func(c *Config) { c.Poller.MaxAttempts = 0 },
			field:  "poller.max_attempts",
		},
		{
			name:   "watch without dir",
			mutate: func(c *Config) { c.Secrets.Watch = true },
			field:  "secrets.watch",
		},
		{
			name:   "bad prune schedule",
			mutate: func(c *Config) { c.History.PruneSchedule = "every night" },
			field:  "history.prune_schedule",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "tracing without endpoint",
			mutate: func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			field:  "telemetry.tracing.endpoint",
		},
		{
			name:   "sample ratio above one",
			mutate: func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			field:  "telemetry.tracing.sample_ratio",
		},
		{
			name:   "zero query length",
			mutate: func(c *Config) { c.Client.MaxQueryLength = 0 },
			field:  "client.max_query_length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig().Build()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := NewTestConfig().Build()
	cfg.Backend.AuthMode = "oauth"
	cfg.Poller.MaxAttempts = -1
	cfg.Client.BaseURL = ""

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
	if !strings.Contains(err.Error(), "with 3 errors") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidate_EmptyBucketAllowed(t *testing.T) {
	cfg := NewTestConfig().WithUploadBucket("").Build()
	if err := Validate(cfg); err != nil {
		t.Errorf("empty bucket should be valid, got %v", err)
	}
}
