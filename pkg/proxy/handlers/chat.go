package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"labsight/gateway/pkg/gateway"
	"labsight/gateway/pkg/proxy"
	"labsight/gateway/pkg/proxy/middleware"
	"labsight/gateway/pkg/telemetry/metrics"
)

const (
	// maxChatBody bounds the request body forwarded to the backend.
	maxChatBody = 1 << 20

	// maxBackendBody bounds a non-streamed backend response.
	maxBackendBody = 10 << 20

	streamBufferSize = 4096
)

// Forwarder sends requests to the backend. *gateway.Gateway implements it.
type Forwarder interface {
	Forward(ctx context.Context, path string, init gateway.RequestInit) (*http.Response, error)
}

// ChatHandler serves POST /api/chat. The body is forwarded verbatim; only
// its "stream" flag is read, to choose between relaying the event stream
// and mirroring a JSON answer.
type ChatHandler struct {
	backend Forwarder
	metrics *metrics.Collector
}

// NewChatHandler creates a chat handler. The collector may be nil.
func NewChatHandler(backend Forwarder, collector *metrics.Collector) *ChatHandler {
	return &ChatHandler{backend: backend, metrics: collector}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			proxy.WriteDetail(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
			return
		}
		proxy.WriteDetail(w, http.StatusBadRequest, "Failed to read request body.")
		return
	}

	// Malformed bodies are still forwarded; the backend owns validation.
	var flags struct {
		Stream bool `json:"stream"`
	}
	_ = json.Unmarshal(body, &flags)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if flags.Stream {
		header.Set("Accept", "text/event-stream")
	}

	resp, err := h.backend.Forward(ctx, "/api/chat", gateway.RequestInit{
		Method: http.MethodPost,
		Header: header,
		Body:   bytes.NewReader(body),
		Stream: flags.Stream,
	})
	if err != nil {
		slog.ErrorContext(ctx, "chat request to backend failed",
			"request_id", requestID,
			"stream", flags.Stream,
			"error", err,
		)
		proxy.WriteError(w, err)
		return
	}
	defer resp.Body.Close()

	if flags.Stream && resp.StatusCode == http.StatusOK {
		h.relay(w, r, resp)
		return
	}

	mirrorJSON(w, r, resp)
}

// relay copies the backend event stream to the client byte for byte,
// flushing after every read. Events are not inspected.
func (h *ChatHandler) relay(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	// The server write timeout would cut long answers short.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.DebugContext(ctx, "failed to clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	h.metrics.StreamStarted()
	start := time.Now()

	var relayed int64
	buf := make([]byte, streamBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				slog.WarnContext(ctx, "client disconnected during stream",
					"relayed_bytes", relayed,
					"error", err,
				)
				break
			}
			relayed += int64(n)
			if err := rc.Flush(); err != nil {
				slog.DebugContext(ctx, "flush failed", "error", err)
			}
		}
		if readErr != nil {
			if readErr != io.EOF && ctx.Err() == nil {
				slog.WarnContext(ctx, "backend stream ended with error",
					"relayed_bytes", relayed,
					"error", readErr,
				)
			}
			break
		}
	}

	h.metrics.StreamFinished(relayed)
	slog.InfoContext(ctx, "chat stream relayed",
		"relayed_bytes", relayed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// mirrorJSON answers with the backend status code and JSON body. A body
// that is not valid JSON becomes a 500 with a generic detail.
func mirrorJSON(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		slog.ErrorContext(ctx, "failed to read backend response",
			"backend_status", resp.StatusCode,
			"error", err,
		)
		proxy.WriteDetail(w, http.StatusBadGateway, proxy.MsgBackendUnavailable)
		return
	}

	if !json.Valid(body) {
		slog.ErrorContext(ctx, "backend returned a non-JSON body",
			"backend_status", resp.StatusCode,
			"content_type", resp.Header.Get("Content-Type"),
			"bytes", len(body),
		)
		proxy.WriteDetail(w, http.StatusInternalServerError, proxy.MsgInvalidResponse)
		return
	}

	proxy.WriteRawJSON(w, resp.StatusCode, body)
}
