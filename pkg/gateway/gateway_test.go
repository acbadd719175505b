package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/secrets"
	"labsight/gateway/pkg/telemetry/metrics"
)

type fakeIdentity struct {
	calls atomic.Int32
	token string
	err   error
}

func (f *fakeIdentity) FetchIDToken(_ context.Context, _ string) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.token + "-" + string(rune('0'+n)), nil
}

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", secrets.ErrNotFound
}

// recordingBackend captures the headers of every request it receives.
type recordingBackend struct {
	mu      sync.Mutex
	headers []http.Header
	paths   []string
}

func (b *recordingBackend) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.headers = append(b.headers, r.Header.Clone())
	b.paths = append(b.paths, r.URL.RequestURI())
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true}`)
}

func (b *recordingBackend) last(t *testing.T) http.Header {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.headers) == 0 {
		t.Fatal("backend received no requests")
	}
	return b.headers[len(b.headers)-1]
}

// newRemoteGateway points a gateway at srv while treating it as a remote
// host. The strategy is injected because httptest servers listen on
// loopback.
func newRemoteGateway(t *testing.T, srv *httptest.Server, strategy AuthStrategy, opts Options) *Gateway {
	t.Helper()
	g, err := New(config.BackendConfig{URL: srv.URL, AuthMode: config.AuthModeNone, Timeout: time.Second}, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	g.strategy = strategy
	g.loopback = false
	return g
}

func forward(t *testing.T, g *Gateway, path string) *http.Response {
	t.Helper()
	resp, err := g.Forward(context.Background(), path, RequestInit{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestForwardAPIKeyMissingSendsNoCredential(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(config.MetricsConfig{Enabled: true, Namespace: "test", Subsystem: "gw"}, registry)

	identity := &fakeIdentity{token: "tok"}
	g := newRemoteGateway(t, srv, APIKey{SecretRef: "backend-api-key"}, Options{
		Secrets:  mapSecrets{},
		Identity: identity,
		Metrics:  collector,
	})

	resp := forward(t, g, "/api/chat")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	h := backend.last(t)
	if h.Get(HeaderAPIKey) != "" || h.Get(HeaderAuthorization) != "" {
		t.Errorf("credential headers sent: x-api-key=%q authorization=%q", h.Get(HeaderAPIKey), h.Get(HeaderAuthorization))
	}
	if identity.calls.Load() != 0 {
		t.Errorf("identity client called %d times in api_key mode", identity.calls.Load())
	}
	expected := `
# HELP test_gw_credential_failures_total Outbound requests sent without a credential because acquisition failed.
# TYPE test_gw_credential_failures_total counter
test_gw_credential_failures_total{reason="missing",strategy="api_key"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_gw_credential_failures_total"); err != nil {
		t.Error(err)
	}
}

func TestForwardAPIKeyAttached(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	g := newRemoteGateway(t, srv, APIKey{SecretRef: "backend-api-key"}, Options{
		Secrets: mapSecrets{"backend-api-key": "k-123"},
	})

	forward(t, g, "/api/chat")

	h := backend.last(t)
	if h.Get(HeaderAPIKey) != "k-123" {
		t.Errorf("x-api-key = %q, want k-123", h.Get(HeaderAPIKey))
	}
	if h.Get(HeaderAuthorization) != "" {
		t.Error("Authorization must not accompany x-api-key")
	}
}

func TestForwardIDTokenFreshPerCall(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	identity := &fakeIdentity{token: "tok"}
	g := newRemoteGateway(t, srv, IDToken{Audience: "https://rag.example.com"}, Options{Identity: identity})

	forward(t, g, "/api/chat")
	first := backend.last(t).Get(HeaderAuthorization)
	forward(t, g, "/api/chat")
	second := backend.last(t).Get(HeaderAuthorization)

	if first != "Bearer tok-1" || second != "Bearer tok-2" {
		t.Errorf("Authorization headers = %q, %q; want fresh tokens per call", first, second)
	}
	if identity.calls.Load() != 2 {
		t.Errorf("identity calls = %d, want 2", identity.calls.Load())
	}
	if backend.last(t).Get(HeaderAPIKey) != "" {
		t.Error("x-api-key must not accompany Authorization")
	}
}

func TestForwardIDTokenFailureProceeds(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	identity := &fakeIdentity{err: errors.New("metadata server unreachable")}
	g := newRemoteGateway(t, srv, IDToken{Audience: "aud"}, Options{Identity: identity})

	resp := forward(t, g, "/api/chat")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if backend.last(t).Get(HeaderAuthorization) != "" {
		t.Error("Authorization sent after token failure")
	}
}

func TestForwardLoopbackSkipsTokenAcquisition(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	identity := &fakeIdentity{token: "tok"}
	g, err := New(config.BackendConfig{URL: srv.URL, AuthMode: config.AuthModeIDToken}, Options{Identity: identity})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, ok := g.Strategy().(NoAuth); !ok {
		t.Fatalf("strategy = %#v, want NoAuth for loopback", g.Strategy())
	}

	// The per-call loopback check holds even with a credentialed strategy.
	g.strategy = IDToken{Audience: "aud"}

	forward(t, g, "/api/chat")

	if identity.calls.Load() != 0 {
		t.Errorf("identity client called %d times for loopback target", identity.calls.Load())
	}
	h := backend.last(t)
	if h.Get(HeaderAuthorization) != "" || h.Get(HeaderAPIKey) != "" {
		t.Error("credential header sent to loopback target")
	}
}

func TestForwardStripsCallerCredentials(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	g := newRemoteGateway(t, srv, APIKey{SecretRef: "k"}, Options{Secrets: mapSecrets{"k": "server-key"}})

	header := http.Header{}
	header.Set("Authorization", "Bearer from-client")
	header.Set("Content-Type", "application/json")
	resp, err := g.Forward(context.Background(), "api/chat", RequestInit{
		Method: http.MethodPost,
		Header: header,
		Body:   strings.NewReader(`{"query":"hi"}`),
	})
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	_ = resp.Body.Close()

	h := backend.last(t)
	if h.Get(HeaderAuthorization) != "" {
		t.Errorf("caller Authorization forwarded: %q", h.Get(HeaderAuthorization))
	}
	if h.Get(HeaderAPIKey) != "server-key" {
		t.Errorf("x-api-key = %q", h.Get(HeaderAPIKey))
	}
	if h.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", h.Get("Content-Type"))
	}
}

func TestForwardQueryAndPath(t *testing.T) {
	backend := &recordingBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	g := newRemoteGateway(t, srv, NoAuth{}, Options{})

	resp, err := g.Forward(context.Background(), "/api/upload/status", RequestInit{
		Query: map[string][]string{"file_name": {"notes v1.md"}},
	})
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	_ = resp.Body.Close()

	backend.mu.Lock()
	got := backend.paths[0]
	backend.mu.Unlock()
	if got != "/api/upload/status?file_name=notes+v1.md" {
		t.Errorf("request URI = %q", got)
	}
}

func TestForwardTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	g := newRemoteGateway(t, srv, NoAuth{}, Options{})
	srv.Close()

	_, err := g.Forward(context.Background(), "/api/chat", RequestInit{})
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("Forward() error = %v, want *TransportError", err)
	}
	if tErr.Path != "/api/chat" {
		t.Errorf("TransportError.Path = %q", tErr.Path)
	}
}

func TestForwardPassesBackendStatusThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"forbidden"}`)
	}))
	defer srv.Close()

	g := newRemoteGateway(t, srv, NoAuth{}, Options{})
	resp := forward(t, g, "/api/chat")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"detail":"forbidden"}` {
		t.Errorf("body = %s", body)
	}
}

func TestNewAPIKeyRequiresSecretSource(t *testing.T) {
	_, err := New(config.BackendConfig{URL: "https://api.example.com", AuthMode: config.AuthModeAPIKey, APIKeySecret: "k"}, Options{})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New() error = %v, want *ConfigurationError", err)
	}
}
