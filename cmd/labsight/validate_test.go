package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labsight/gateway/pkg/cli"
)

func runValidateWith(t *testing.T, yaml string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labsight.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	orig := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = orig })

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)
	t.Cleanup(func() { validateCmd.SetOut(nil) })

	err := runValidate(validateCmd, nil)
	return buf.String(), err
}

func TestValidate_ReportsStrategy(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "id token audience defaults to origin",
			yaml: "backend:\n  url: https://rag.example.run.app/v1\n  auth_mode: id_token\n",
			want: "id_token (audience https://rag.example.run.app)",
		},
		{
			name: "api key",
			yaml: "backend:\n  url: https://rag.example.com\n  auth_mode: api_key\n  api_key_secret: rag-key\n",
			want: "api_key (secret rag-key)",
		},
		{
			name: "loopback never authenticates",
			yaml: "backend:\n  url: http://localhost:8000\n  auth_mode: api_key\n",
			want: "auth:     none",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runValidateWith(t, tt.yaml)
			if err != nil {
				t.Fatalf("runValidate: %v", err)
			}
			if !strings.Contains(out, "configuration is valid") || !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestValidate_InvalidConfig(t *testing.T) {
	_, err := runValidateWith(t, "backend:\n  url: https://rag.example.com\n  auth_mode: oauth\npoller:\n  max_attempts: -1\n")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if code := cli.ExitCode(err); code != cli.ExitConfigError {
		t.Errorf("ExitCode = %d, want %d", code, cli.ExitConfigError)
	}
	fields := map[string]bool{}
	for _, ce := range cli.ConfigErrors(err) {
		fields[ce.Field] = true
	}
	for _, f := range []string{"backend.auth_mode", "poller.max_attempts"} {
		if !fields[f] {
			t.Errorf("missing error for %s (got %v)", f, fields)
		}
	}
}
