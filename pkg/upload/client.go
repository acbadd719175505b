package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"labsight/gateway/pkg/gateway"
	"labsight/gateway/pkg/telemetry/tracing"
)

// maxStatusBody bounds how much of a status response is read.
const maxStatusBody = 1 << 20

// Client talks to the upload routes of a running gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the gateway at baseURL. A nil httpClient
// gets a tracing transport.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: tracing.Transport(nil)}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// FetchStatus implements StatusFetcher against GET /api/upload/status.
func (c *Client) FetchStatus(ctx context.Context, target string) (Status, error) {
	u := c.baseURL + "/api/upload/status?" + url.Values{"file_name": {target}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeStatusResponse(resp)
}

// Upload sends r as the multipart "file" field of POST /api/upload.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (Receipt, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", fileName)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", pr)
	if err != nil {
		pr.Close()
		return Receipt{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, readStatusError(resp)
	}

	var receipt Receipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBody)).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return receipt, nil
}

// Recent returns the most recent ingestion statuses from GET /api/upload/recent.
func (c *Client) Recent(ctx context.Context) ([]Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/upload/recent", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build recent request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readStatusError(resp)
	}

	var body struct {
		Files []Status `json:"files"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return body.Files, nil
}

// GatewayFetcher implements StatusFetcher by calling the backend directly
// through a Gateway, for callers that run next to the backend credential.
type GatewayFetcher struct {
	Gateway *gateway.Gateway
}

// FetchStatus implements StatusFetcher.
func (f GatewayFetcher) FetchStatus(ctx context.Context, target string) (Status, error) {
	resp, err := f.Gateway.Forward(ctx, "/api/upload/status", gateway.RequestInit{
		Method: http.MethodGet,
		Query:  url.Values{"file_name": {target}},
	})
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	return decodeStatusResponse(resp)
}

func decodeStatusResponse(resp *http.Response) (Status, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Status{}, readStatusError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return Status{}, fmt.Errorf("failed to read status response: %w", err)
	}
	return ParseStatus(body)
}

// readStatusError builds a StatusError, using the {"detail": ...} body when
// the backend sent one.
func readStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{Code: resp.StatusCode}
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBody)).Decode(&body); err == nil {
		if detail, ok := body.Detail.(string); ok {
			statusErr.Detail = detail
		}
	}
	return statusErr
}
