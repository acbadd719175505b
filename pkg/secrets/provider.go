// Package secrets resolves named secrets, such as the backend API key, from
// a chain of providers.
//
// Providers are consulted in order and the first value found wins:
//
//	mgr, err := secrets.NewManagerFromConfig(cfg.Secrets)
//	key, err := mgr.GetSecret(ctx, "backend-api-key")
//
// A missing secret is reported as ErrNotFound so callers can tell an absent
// key apart from a provider failure.
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backing store.
type Provider interface {
	// GetSecret retrieves a secret by name. A missing secret wraps ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs ("env", "file").
	Name() string
}

// Refresher is implemented by providers that can drop cached values and
// re-read their store.
type Refresher interface {
	Refresh(ctx context.Context) error
}
