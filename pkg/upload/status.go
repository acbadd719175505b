package upload

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// State is the ingestion state reported by the backend.
type State string

const (
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Terminal reports whether s ends polling. Only "processing" does not.
func (s State) Terminal() bool {
	return s != StateProcessing
}

// Status is the ingestion status of one uploaded object.
type Status struct {
	FileName        string  `json:"file_name"`
	FileType        string  `json:"file_type,omitempty"`
	Status          State   `json:"status"`
	ChunkCount      int     `json:"chunk_count,omitempty"`
	ChunksSanitized int     `json:"chunks_sanitized,omitempty"`
	TotalTimeMs     float64 `json:"total_time_ms,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	Timestamp       string  `json:"timestamp,omitempty"`
}

// Receipt acknowledges an upload accepted into object storage.
type Receipt struct {
	FileName   string `json:"file_name"`
	ObjectName string `json:"object_name"`
	Bucket     string `json:"bucket"`
	SizeBytes  int64  `json:"size_bytes"`
	Status     string `json:"status"`
}

// ReceiptStatusUploaded is the Receipt.Status of a stored upload.
const ReceiptStatusUploaded = "uploaded"

// ErrUnexpectedResponse is returned for 2xx status payloads that do not
// carry a string status and file_name.
var ErrUnexpectedResponse = errors.New("unexpected response from status endpoint")

// StatusError is a non-2xx answer from the status endpoint.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// statusPayload is the wire form used for validation. Pointers distinguish
// a missing field from an empty one; nulls are accepted for optional fields.
type statusPayload struct {
	FileName        *string  `json:"file_name" validate:"required"`
	Status          *string  `json:"status" validate:"required"`
	FileType        *string  `json:"file_type"`
	ChunkCount      *int     `json:"chunk_count"`
	ChunksSanitized *int     `json:"chunks_sanitized"`
	TotalTimeMs     *float64 `json:"total_time_ms"`
	ErrorMessage    *string  `json:"error_message"`
	Timestamp       *string  `json:"timestamp"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseStatus decodes and minimally validates a status payload. Any payload
// that is not an object with string status and file_name fields yields
// ErrUnexpectedResponse.
func ParseStatus(data []byte) (Status, error) {
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if err := validate.Struct(p); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	s := Status{
		FileName: *p.FileName,
		Status:   State(*p.Status),
	}
	if p.FileType != nil {
		s.FileType = *p.FileType
	}
	if p.ChunkCount != nil {
		s.ChunkCount = *p.ChunkCount
	}
	if p.ChunksSanitized != nil {
		s.ChunksSanitized = *p.ChunksSanitized
	}
	if p.TotalTimeMs != nil {
		s.TotalTimeMs = *p.TotalTimeMs
	}
	if p.ErrorMessage != nil {
		s.ErrorMessage = *p.ErrorMessage
	}
	if p.Timestamp != nil {
		s.Timestamp = *p.Timestamp
	}
	return s, nil
}
