package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"labsight/gateway/pkg/config"
)

// Manager resolves secrets through an ordered provider chain and caches
// values for a configurable TTL.
type Manager struct {
	providers []Provider
	cache     *cache
}

// NewManager creates a manager over providers, consulted in order.
func NewManager(ttl time.Duration, providers ...Provider) *Manager {
	return &Manager{
		providers: providers,
		cache:     newCache(ttl),
	}
}

// NewManagerFromConfig builds the provider chain described by cfg: the file
// provider when a directory is configured, then the environment.
func NewManagerFromConfig(cfg config.SecretsConfig) (*Manager, error) {
	var providers []Provider
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir, cfg.Watch)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(cfg.EnvPrefix))

	return NewManager(cfg.CacheTTL, providers...), nil
}

// GetSecret returns the first value found for name. When every provider
// reports the secret missing the error wraps ErrNotFound.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.get(name); ok {
		return value, nil
	}

	var failures []error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err == nil {
			m.cache.set(name, value)
			slog.Debug("secret resolved", "provider", p.Name(), "name", redactSecretName(name))
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	if len(failures) > 0 {
		return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(failures...))
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Refresh clears the manager cache and every refreshable provider.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		if r, ok := p.(Refresher); ok {
			if err := r.Refresh(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	m.cache.clear()
	return errors.Join(errs...)
}

// Providers returns the provider names in lookup order.
func (m *Manager) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// Close releases provider resources such as file watchers.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// redactSecretName keeps the first and last two characters of a name.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
