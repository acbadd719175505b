package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/telemetry/metrics"
)

// ErrNotConfigured is returned when no object store is configured.
var ErrNotConfigured = errors.New("upload store is not configured")

// RejectedError is an upload refused before reaching storage. Its message
// is safe to show to clients.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

// Upload metric outcomes.
const (
	outcomeStored   = "stored"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Uploader validates uploads and writes them to an ObjectStore.
type Uploader struct {
	store   ObjectStore
	maxSize int64
	allowed map[string]struct{}
	now     func() time.Time
	metrics *metrics.Collector
}

// NewUploader creates an uploader. A nil store makes every call return
// ErrNotConfigured.
func NewUploader(store ObjectStore, cfg config.UploadConfig, collector *metrics.Collector) *Uploader {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Uploader{
		store:   store,
		maxSize: cfg.MaxSizeBytes,
		allowed: allowed,
		now:     time.Now,
		metrics: collector,
	}
}

// Configured reports whether an object store is available.
func (u *Uploader) Configured() bool {
	return u.store != nil
}

// Store checks the extension and size of the upload and writes it under a
// fresh object name. The original name is kept in object metadata.
func (u *Uploader) Store(ctx context.Context, original string, r io.Reader) (Receipt, error) {
	if u.store == nil {
		return Receipt{}, ErrNotConfigured
	}
	if original == "" {
		original = "unnamed"
	}

	ext := Extension(original)
	if _, ok := u.allowed[ext]; !ok {
		u.metrics.RecordUpload(outcomeRejected, 0)
		return Receipt{}, &RejectedError{Reason: fmt.Sprintf("File type '.%s' is not supported.", ext)}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, u.maxSize+1))
	if err != nil {
		u.metrics.RecordUpload(outcomeFailed, 0)
		return Receipt{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > u.maxSize {
		u.metrics.RecordUpload(outcomeRejected, 0)
		return Receipt{}, &RejectedError{
			Reason: fmt.Sprintf("File exceeds maximum size of %.0f MB.", float64(u.maxSize)/(1024*1024)),
		}
	}

	object := ObjectName(original, u.now())
	meta := map[string]string{MetadataOriginalName: original}
	if err := u.store.Put(ctx, object, &buf, meta); err != nil {
		u.metrics.RecordUpload(outcomeFailed, 0)
		return Receipt{}, err
	}

	u.metrics.RecordUpload(outcomeStored, n)
	slog.InfoContext(ctx, "upload stored",
		"object", object,
		"bucket", u.store.Bucket(),
		"size_bytes", n,
	)

	return Receipt{
		FileName:   original,
		ObjectName: object,
		Bucket:     u.store.Bucket(),
		SizeBytes:  n,
		Status:     ReceiptStatusUploaded,
	}, nil
}
