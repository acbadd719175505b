package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"labsight/gateway/pkg/gateway"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "transport error",
			err:      &gateway.TransportError{Path: "/api/chat", Err: errors.New("connection refused")},
			wantCode: http.StatusBadGateway,
			wantMsg:  MsgBackendUnavailable,
		},
		{
			name:     "deadline inside transport error",
			err:      &gateway.TransportError{Path: "/api/chat", Err: fmt.Errorf("do: %w", context.DeadlineExceeded)},
			wantCode: http.StatusGatewayTimeout,
			wantMsg:  MsgBackendTimeout,
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  MsgInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := HandleError(tt.err)
			if code != tt.wantCode || msg != tt.wantMsg {
				t.Errorf("HandleError() = (%d, %q), want (%d, %q)", code, msg, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestWriteDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDetail(w, http.StatusBadRequest, "file_name query parameter is required.")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorDetail
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Detail != "file_name query parameter is required." {
		t.Errorf("detail = %q", body.Detail)
	}
}

func TestWriteRawJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteRawJSON(w, http.StatusAccepted, json.RawMessage(`{"status":"processing"}`))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.String() != `{"status":"processing"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}
