package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"labsight/gateway/pkg/telemetry/tracing"
)

// TransportError is a chat request that did not produce a usable response:
// the gateway was unreachable (Err set) or answered with a non-2xx status.
type TransportError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("chat request failed: %v", e.Err)
	case e.Detail != "":
		return e.Detail
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport sends chat queries. *Client implements it.
type Transport interface {
	// Stream starts a streamed answer and returns the raw event-stream body.
	Stream(ctx context.Context, query string) (io.ReadCloser, error)
	// Complete returns a whole answer.
	Complete(ctx context.Context, query string) (Reply, error)
}

// Client calls POST /api/chat on a gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the gateway at baseURL. A nil httpClient
// gets a tracing transport and no overall timeout, since streams are
// bounded by the caller's context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: tracing.Transport(nil)}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type chatRequest struct {
	Query  string `json:"query"`
	Stream bool   `json:"stream"`
}

// Stream implements Transport.
func (c *Client) Stream(ctx context.Context, query string) (io.ReadCloser, error) {
	resp, err := c.post(ctx, chatRequest{Query: query, Stream: true})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Complete implements Transport.
func (c *Client) Complete(ctx context.Context, query string) (Reply, error) {
	resp, err := c.post(ctx, chatRequest{Query: query})
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Reply{}, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid chat response: %w", err)}
	}
	return reply, nil
}

// post sends body and returns a 2xx response; other statuses become a
// *TransportError carrying the response detail.
func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		tErr := &TransportError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail any `json:"detail"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&detail) == nil {
			if s, ok := detail.Detail.(string); ok {
				tErr.Detail = s
			}
		}
		return nil, tErr
	}
	return resp, nil
}
