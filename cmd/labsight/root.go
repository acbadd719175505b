package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"labsight/gateway/pkg/cli"
	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/gateway"
	"labsight/gateway/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "labsight",
	Short: "Labsight gateway - chat proxy and upload pipeline for the Labsight assistant",
	Long: `Labsight gateway fronts the Labsight retrieval backend.

It provides:
  - A streaming chat proxy that relays the backend's event stream unchanged
  - Backend authentication by identity token, API key or none
  - File uploads to object storage with bounded ingestion status polling
  - Rate limiting, Prometheus metrics, OpenTelemetry tracing and health probes

Configuration comes from an optional YAML file plus LABSIGHT_* environment
variables, which take precedence.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code matching the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		for _, ce := range configErrorsOf(err) {
			fmt.Fprintln(os.Stderr, cli.StyleError.Render(cli.IconError+" "+ce.Error()))
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: defaults plus environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// configErrorsOf expands configuration failures field by field; other
// errors print as a single line.
func configErrorsOf(err error) []error {
	if cli.ExitCode(err) != cli.ExitConfigError {
		return []error{err}
	}
	var out []error
	for _, ce := range cli.ConfigErrors(err) {
		out = append(out, ce)
	}
	return out
}

// loadConfig initializes the process configuration and logger.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, err
	}
	cfg := config.GetConfig()

	switch {
	case logLevel != "":
		cfg.Telemetry.Logging.Level = logLevel
	case verbose:
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	return cfg, nil
}

// asConfigError turns a gateway configuration failure into a ConfigError
// naming the setting. Other errors are returned unchanged.
func asConfigError(err error) error {
	var cfgErr *gateway.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cli.NewConfigError(cfgErr.Setting, cfgErr.Reason)
	}
	return err
}
