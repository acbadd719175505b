package gateway

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// IdentityClient mints identity tokens for an audience.
// Implementations must be safe for concurrent use.
type IdentityClient interface {
	FetchIDToken(ctx context.Context, audience string) (string, error)
}

// GoogleIdentityClient mints Google-signed identity tokens from application
// default credentials or a service account key. It holds only the client
// options; every FetchIDToken call builds a new token source, so no token
// outlives the request it was minted for.
type GoogleIdentityClient struct {
	opts []option.ClientOption
}

// NewGoogleIdentityClient creates a client. An empty credentialsFile uses
// application default credentials (the metadata server on Cloud Run).
func NewGoogleIdentityClient(credentialsFile string) *GoogleIdentityClient {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return &GoogleIdentityClient{opts: opts}
}

// FetchIDToken returns a fresh token for audience. Credential discovery
// runs again on every call.
func (c *GoogleIdentityClient) FetchIDToken(ctx context.Context, audience string) (string, error) {
	ts, err := idtoken.NewTokenSource(ctx, audience, c.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create identity token source: %w", err)
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to fetch identity token: %w", err)
	}
	return tok.AccessToken, nil
}

var (
	sharedIdentityOnce sync.Once
	sharedIdentity     IdentityClient
)

// SharedIdentityClient returns the process-wide identity client, creating it
// on the first call. Later calls ignore credentialsFile.
func SharedIdentityClient(credentialsFile string) IdentityClient {
	sharedIdentityOnce.Do(func() {
		sharedIdentity = NewGoogleIdentityClient(credentialsFile)
	})
	return sharedIdentity
}
