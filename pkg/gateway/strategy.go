package gateway

import (
	"fmt"
	"net/url"

	"labsight/gateway/pkg/config"
)

// AuthStrategy is the credential policy for outbound requests. The set of
// implementations is closed: NoAuth, IDToken and APIKey.
type AuthStrategy interface {
	// Name is the configuration spelling of the strategy.
	Name() string

	authStrategy()
}

// NoAuth sends requests without a credential header.
type NoAuth struct{}

// IDToken sends "Authorization: Bearer <token>" with a token minted for
// Audience on every request.
type IDToken struct {
	Audience string
}

// APIKey sends "x-api-key" with the value of the named secret.
type APIKey struct {
	SecretRef string
}

func (NoAuth) Name() string  { return config.AuthModeNone }
func (IDToken) Name() string { return config.AuthModeIDToken }
func (APIKey) Name() string  { return config.AuthModeAPIKey }

func (NoAuth) authStrategy()  {}
func (IDToken) authStrategy() {}
func (APIKey) authStrategy()  {}

// ResolveStrategy maps static backend configuration to a strategy. A
// loopback backend always resolves to NoAuth whatever the mode. The
// identity-token audience defaults to the backend origin.
func ResolveStrategy(cfg config.BackendConfig) (AuthStrategy, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, &ConfigurationError{Setting: "backend.url", Reason: fmt.Sprintf("invalid backend URL %q", cfg.URL), Err: err}
	}

	if IsLoopback(u.Hostname()) {
		return NoAuth{}, nil
	}

	switch cfg.AuthMode {
	case config.AuthModeNone:
		return NoAuth{}, nil
	case config.AuthModeAPIKey:
		if cfg.APIKeySecret == "" {
			return nil, &ConfigurationError{Setting: "backend.api_key_secret", Reason: "secret name is required for api_key mode"}
		}
		return APIKey{SecretRef: cfg.APIKeySecret}, nil
	case config.AuthModeIDToken, "":
		audience := cfg.Audience
		if audience == "" {
			audience = u.Scheme + "://" + u.Host
		}
		return IDToken{Audience: audience}, nil
	default:
		return nil, &ConfigurationError{Setting: "backend.auth_mode", Reason: fmt.Sprintf("unknown auth mode %q", cfg.AuthMode)}
	}
}
