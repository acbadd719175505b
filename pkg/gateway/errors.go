package gateway

import "fmt"

// ConfigurationError describes backend settings that cannot be honoured.
// At startup it is returned; at request time it is logged and the request
// proceeds without a credential.
type ConfigurationError struct {
	Setting string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Setting, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError is returned when the backend could not be reached.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend request to %s failed: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
