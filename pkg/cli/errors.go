package cli

import (
	"context"
	"errors"
	"fmt"

	"labsight/gateway/pkg/config"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitInterrupted = 130
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ConfigErrors flattens a configuration validation failure into one
// ConfigError per field. Other errors become a single ConfigError.
func ConfigErrors(err error) []*ConfigError {
	if err == nil {
		return nil
	}
	var vErr config.ValidationError
	if !errors.As(err, &vErr) || len(vErr.Errors) == 0 {
		return []*ConfigError{{Message: err.Error()}}
	}
	out := make([]*ConfigError, len(vErr.Errors))
	for i, fe := range vErr.Errors {
		out[i] = NewConfigError(fe.Field, fe.Message)
	}
	return out
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	var vErr config.ValidationError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &cfgErr), errors.As(err, &vErr):
		return ExitConfigError
	default:
		return ExitFailure
	}
}
