package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/gateway"
	"labsight/gateway/pkg/proxy"
	"labsight/gateway/pkg/stream"
)

const ssePayload = "data: {\"type\":\"token\",\"content\":\"h\"}\n\n" +
	"data: {\"type\":\"token\",\"content\":\"i\"}\n\n" +
	"data: {\"type\":\"done\",\"model\":\"gemini\",\"latency_ms\":12,\"query_mode\":\"vector\"}\n\n"

// newBackendGateway returns a gateway for backend. httptest servers listen
// on loopback, so no credential is attached.
func newBackendGateway(t *testing.T, backend *httptest.Server) *gateway.Gateway {
	t.Helper()
	gw, err := gateway.New(config.BackendConfig{
		URL:      backend.URL,
		AuthMode: config.AuthModeNone,
		Timeout:  5 * time.Second,
	}, gateway.Options{})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	return gw
}

// sseBackend writes payload in small flushed pieces.
func sseBackend(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query  string `json:"query"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream {
			http.Error(w, "expected a streamed chat request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for i := 0; i < len(payload); i += 7 {
			_, _ = io.WriteString(w, payload[i:min(i+7, len(payload))])
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatHandler_StreamRelay(t *testing.T) {
	backend := sseBackend(t, ssePayload)
	h := NewChatHandler(newBackendGateway(t, backend), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"hello","stream":true}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != ssePayload {
		t.Errorf("body not relayed byte for byte:\ngot:  %q\nwant: %q", got, ssePayload)
	}

	wantHeaders := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"X-Accel-Buffering": "no",
	}
	for k, v := range wantHeaders {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if !rec.Flushed {
		t.Error("response was never flushed")
	}
}

func TestChatHandler_StreamThroughClientSession(t *testing.T) {
	backend := sseBackend(t, ssePayload)
	proxySrv := httptest.NewServer(NewChatHandler(newBackendGateway(t, backend), nil))
	t.Cleanup(proxySrv.Close)

	session := stream.NewSession(stream.NewClient(proxySrv.URL, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshots, err := session.Submit(ctx, "hello")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	var final stream.Transcript
	for snap := range snapshots {
		final = snap
	}

	got := final.Last()
	if got.Content != "hi" {
		t.Errorf("assistant content = %q, want %q", got.Content, "hi")
	}
	if got.Model != "gemini" || got.QueryMode != "vector" {
		t.Errorf("metadata = %+v", got)
	}
	if final.Err != nil {
		t.Errorf("Err = %v", final.Err)
	}
}

func TestChatHandler_MirrorsJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		status      int
		backendBody string
		wantStatus  int
		wantBody    string
	}{
		{
			name:        "answer",
			body:        `{"query":"hello","stream":false}`,
			status:      http.StatusOK,
			backendBody: `{"answer":"hi","sources":[],"model":"gemini","latency_ms":3.5,"retrieval_count":0,"query_mode":"vector"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "backend validation error",
			body:        `{"query":""}`,
			status:      http.StatusUnprocessableEntity,
			backendBody: `{"detail":[{"loc":["body","query"],"msg":"too short"}]}`,
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "stream requested but backend refused",
			body:        `{"query":"hello","stream":true}`,
			status:      http.StatusServiceUnavailable,
			backendBody: `{"detail":"LLM provider unavailable"}`,
			wantStatus:  http.StatusServiceUnavailable,
		},
		{
			name:        "non-JSON backend body",
			body:        `{"query":"hello"}`,
			status:      http.StatusBadGateway,
			backendBody: `<html>Bad Gateway</html>`,
			wantStatus:  http.StatusInternalServerError,
			wantBody:    `{"detail":"` + proxy.MsgInvalidResponse + `"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := make(chan string, 1)
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				received <- string(b)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.backendBody)
			}))
			defer backend.Close()

			h := NewChatHandler(newBackendGateway(t, backend), nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			want := tt.wantBody
			if want == "" {
				want = tt.backendBody
			}
			if got := strings.TrimSpace(rec.Body.String()); got != want {
				t.Errorf("body = %s, want %s", got, want)
			}
			if forwarded := <-received; forwarded != tt.body {
				t.Errorf("backend received %q, want verbatim %q", forwarded, tt.body)
			}
		})
	}
}

func TestChatHandler_BackendUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	gw := newBackendGateway(t, backend)
	backend.Close()

	rec := httptest.NewRecorder()
	NewChatHandler(gw, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"q"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var body proxy.ErrorDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Detail != proxy.MsgBackendUnavailable {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatHandler_BodyTooLarge(t *testing.T) {
	var called atomic.Bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer backend.Close()

	big := `{"query":"` + strings.Repeat("a", maxChatBody) + `"}`
	rec := httptest.NewRecorder()
	NewChatHandler(newBackendGateway(t, backend), nil).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(big)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if called.Load() {
		t.Error("oversized body reached the backend")
	}
}
