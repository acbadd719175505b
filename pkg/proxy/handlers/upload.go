package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"labsight/gateway/pkg/gateway"
	"labsight/gateway/pkg/proxy"
	"labsight/gateway/pkg/upload"
)

// Upload route messages.
const (
	MsgMissingFileName     = "file_name query parameter is required."
	MsgUploadNotConfigured = "Upload endpoint is not configured."
	MsgUploadFailed        = "Failed to upload file. Please try again."
	MsgMissingFile         = "A multipart form field named 'file' is required."
)

// multipartOverhead is allowed on top of the configured file size for
// boundaries and part headers.
const multipartOverhead = 1 << 20

// StatusHandler serves GET /api/upload/status?file_name=<id>, mirroring the
// backend's status code and JSON body.
type StatusHandler struct {
	backend Forwarder
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(backend Forwarder) *StatusHandler {
	return &StatusHandler{backend: backend}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fileName := strings.TrimSpace(r.URL.Query().Get("file_name"))
	if fileName == "" {
		proxy.WriteDetail(w, http.StatusBadRequest, MsgMissingFileName)
		return
	}

	resp, err := h.backend.Forward(r.Context(), "/api/upload/status", gateway.RequestInit{
		Method: http.MethodGet,
		Query:  url.Values{"file_name": {fileName}},
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "status request to backend failed", "file_name", fileName, "error", err)
		proxy.WriteError(w, err)
		return
	}
	defer resp.Body.Close()

	mirrorJSON(w, r, resp)
}

// RecentHandler serves GET /api/upload/recent by mirroring the backend.
type RecentHandler struct {
	backend Forwarder
}

// NewRecentHandler creates a recent-uploads handler.
func NewRecentHandler(backend Forwarder) *RecentHandler {
	return &RecentHandler{backend: backend}
}

// ServeHTTP implements http.Handler.
func (h *RecentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Forward(r.Context(), "/api/upload/recent", gateway.RequestInit{
		Method: http.MethodGet,
		Query:  r.URL.Query(),
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "recent uploads request to backend failed", "error", err)
		proxy.WriteError(w, err)
		return
	}
	defer resp.Body.Close()

	mirrorJSON(w, r, resp)
}

// UploadHandler serves POST /api/upload: a multipart "file" field written
// to object storage.
type UploadHandler struct {
	uploader *upload.Uploader
	maxBody  int64
}

// NewUploadHandler creates an upload handler. maxSize is the largest
// accepted file.
func NewUploadHandler(uploader *upload.Uploader, maxSize int64) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxBody: maxSize + multipartOverhead}
}

// ServeHTTP implements http.Handler.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.uploader == nil || !h.uploader.Configured() {
		proxy.WriteDetail(w, http.StatusServiceUnavailable, MsgUploadNotConfigured)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	mr, err := r.MultipartReader()
	if err != nil {
		proxy.WriteDetail(w, http.StatusBadRequest, MsgMissingFile)
		return
	}

	// Only the first "file" part is stored; other fields are skipped.
	for {
		part, err := mr.NextPart()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				proxy.WriteDetail(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
				return
			}
			proxy.WriteDetail(w, http.StatusBadRequest, MsgMissingFile)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		receipt, err := h.uploader.Store(ctx, part.FileName(), part)
		part.Close()
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}

		slog.InfoContext(ctx, "file uploaded",
			"file_name", receipt.FileName,
			"object_name", receipt.ObjectName,
			"size_bytes", receipt.SizeBytes,
		)
		proxy.WriteJSON(w, http.StatusOK, receipt)
		return
	}
}

func (h *UploadHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *upload.RejectedError
	switch {
	case errors.As(err, &rejected):
		proxy.WriteDetail(w, http.StatusBadRequest, rejected.Reason)
	case errors.Is(err, upload.ErrNotConfigured):
		proxy.WriteDetail(w, http.StatusServiceUnavailable, MsgUploadNotConfigured)
	default:
		slog.ErrorContext(r.Context(), "upload failed", "error", err)
		proxy.WriteDetail(w, http.StatusInternalServerError, MsgUploadFailed)
	}
}
