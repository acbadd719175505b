package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/secrets"
	"labsight/gateway/pkg/telemetry/logging"
	"labsight/gateway/pkg/telemetry/metrics"
	"labsight/gateway/pkg/telemetry/tracing"
)

// Credential header names. At most one is set on an outbound request.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "x-api-key"
)

// outcomeTransportError labels backend requests that produced no response.
const outcomeTransportError = "transport_error"

// SecretSource resolves named secrets. *secrets.Manager satisfies it.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// RequestInit describes an outbound request. Path and query are joined to
// the backend base URL; Header is copied, minus any credential headers.
type RequestInit struct {
	Method string
	Query  url.Values
	Header http.Header
	Body   io.Reader

	// Stream marks a response whose body is read for as long as the caller
	// context lives. Other requests are bounded by the backend timeout.
	Stream bool
}

// Options carries the optional collaborators of a Gateway.
type Options struct {
	// HTTPClient performs requests. Defaults to a client with a tracing
	// transport and no overall timeout.
	HTTPClient *http.Client

	// Identity mints identity tokens. Defaults to SharedIdentityClient,
	// built the first time a token is needed.
	Identity IdentityClient

	// Secrets resolves the API key. Required for the api_key strategy.
	Secrets SecretSource

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger
}

// Gateway forwards requests to the backend with the configured credential.
// It is safe for concurrent use.
type Gateway struct {
	baseURL         *url.URL
	strategy        AuthStrategy
	loopback        bool
	timeout         time.Duration
	credentialsFile string

	client   *http.Client
	identity IdentityClient
	secrets  SecretSource
	metrics  *metrics.Collector
	tracer   spanStarter
	logger   *slog.Logger
}

type spanStarter interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// New resolves the credential strategy from cfg and returns a Gateway.
func New(cfg config.BackendConfig, opts Options) (*Gateway, error) {
	strategy, err := ResolveStrategy(cfg)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, &ConfigurationError{Setting: "backend.url", Reason: "invalid backend URL", Err: err}
	}

	g := &Gateway{
		baseURL:         base,
		strategy:        strategy,
		loopback:        IsLoopback(base.Hostname()),
		timeout:         cfg.Timeout,
		credentialsFile: cfg.CredentialsFile,
		client:          opts.HTTPClient,
		identity:        opts.Identity,
		secrets:         opts.Secrets,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
	}
	if g.client == nil {
		g.client = &http.Client{Transport: tracing.Transport(nil)}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if opts.Tracer != nil {
		g.tracer = opts.Tracer
	} else {
		g.tracer = noop.NewTracerProvider().Tracer("labsight/gateway")
	}

	if _, ok := strategy.(APIKey); ok && g.secrets == nil {
		return nil, &ConfigurationError{Setting: "secrets", Reason: "api_key mode requires a secret source"}
	}

	g.logger.Info("backend gateway configured",
		"backend", base.Redacted(),
		"strategy", strategy.Name(),
		"loopback", g.loopback,
	)
	return g, nil
}

// Strategy returns the resolved credential strategy.
func (g *Gateway) Strategy() AuthStrategy { return g.strategy }

// BaseURL returns the backend base URL.
func (g *Gateway) BaseURL() string { return g.baseURL.String() }

// Forward sends a request for path to the backend and returns the response
// untouched. Credential problems never fail the call; they are logged and
// the request is sent without a credential header. Transport failures are
// returned as *TransportError. The caller must close the response body.
func (g *Gateway) Forward(ctx context.Context, path string, init RequestInit) (*http.Response, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			tracing.AttrBackendPath.String(path),
			tracing.AttrAuthStrategy.String(g.strategy.Name()),
		),
	)
	defer span.End()

	start := time.Now()

	var cancel context.CancelFunc = func() {}
	if !init.Stream && g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}

	req, err := g.newRequest(ctx, path, init)
	if err != nil {
		cancel()
		tracing.SetStatus(span, err)
		return nil, err
	}

	attached := g.attachCredential(ctx, req)
	span.SetAttributes(tracing.AttrCredential.Bool(attached))

	resp, err := g.client.Do(req)
	if err != nil {
		cancel()
		g.metrics.RecordBackendRequest(path, g.strategy.Name(), outcomeTransportError, time.Since(start))
		tErr := &TransportError{Path: path, Err: err}
		tracing.SetStatus(span, tErr)
		g.logger.WarnContext(ctx, "backend request failed", "path", path, "error", err)
		return nil, tErr
	}

	g.metrics.RecordBackendRequest(path, g.strategy.Name(), metrics.StatusClass(resp.StatusCode), time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	tracing.SetStatus(span, nil)
	g.logger.DebugContext(ctx, "backend responded",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (g *Gateway) newRequest(ctx context.Context, path string, init RequestInit) (*http.Request, error) {
	method := init.Method
	if method == "" {
		method = http.MethodGet
	}

	target := *g.baseURL
	target.Path = g.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(init.Query) > 0 {
		target.RawQuery = init.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), init.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	for k, vs := range init.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Del(HeaderAuthorization)
	req.Header.Del(HeaderAPIKey)
	if id := logging.GetRequestID(ctx); id != "" && req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

// attachCredential sets the credential header for the resolved strategy and
// reports whether one was attached.
func (g *Gateway) attachCredential(ctx context.Context, req *http.Request) bool {
	if g.loopback {
		return false
	}

	switch s := g.strategy.(type) {
	case NoAuth:
		return false

	case APIKey:
		key, err := g.secrets.GetSecret(ctx, s.SecretRef)
		if err != nil || key == "" {
			reason := "missing"
			if err != nil && !errors.Is(err, secrets.ErrNotFound) {
				reason = "lookup_failed"
			}
			g.metrics.RecordCredentialFailure(s.Name(), reason)
			g.logger.WarnContext(ctx, "backend API key unavailable, sending request without credential",
				"error", &ConfigurationError{Setting: "backend.api_key_secret", Reason: "secret " + reason, Err: err},
			)
			return false
		}
		req.Header.Set(HeaderAPIKey, key)
		return true

	case IDToken:
		token, err := g.identityClient().FetchIDToken(ctx, s.Audience)
		if err != nil || token == "" {
			g.metrics.RecordCredentialFailure(s.Name(), "fetch_failed")
			g.logger.WarnContext(ctx, "identity token unavailable, sending request without credential",
				"audience", s.Audience,
				"error", err,
			)
			return false
		}
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
		return true
	}
	return false
}

func (g *Gateway) identityClient() IdentityClient {
	if g.identity != nil {
		return g.identity
	}
	return SharedIdentityClient(g.credentialsFile)
}

// cancelOnClose releases the per-request timeout once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
