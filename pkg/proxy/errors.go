package proxy

import (
	"context"
	"errors"
	"net/http"

	"labsight/gateway/pkg/gateway"
)

// Client-facing failure messages. Internal causes are logged, never sent.
const (
	MsgBackendUnavailable = "The assistant backend is unavailable. Please try again."
	MsgBackendTimeout     = "The assistant backend did not respond in time."
	MsgInvalidResponse    = "Received an invalid response from the assistant backend."
	MsgInternal           = "An internal error occurred. Please try again later."
)

// HandleError maps a forwarding error to a status code and client message.
func HandleError(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, MsgBackendTimeout
	}

	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway, MsgBackendUnavailable
	}

	return http.StatusInternalServerError, MsgInternal
}

// WriteError writes the response HandleError selects for err.
func WriteError(w http.ResponseWriter, err error) {
	code, msg := HandleError(err)
	WriteDetail(w, code, msg)
}
