package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"labsight/gateway/pkg/cli"
	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/gateway"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration file and LABSIGHT_* environment overrides, check
every setting and show how the backend will be called.

Each invalid setting is reported on its own line and the command exits with
status 2.

Examples:
  labsight validate --config labsight.yaml

  # Check the effective configuration from the environment only
  LABSIGHT_BACKEND_AUTH_MODE=api_key labsight validate`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	strategy, err := gateway.ResolveStrategy(cfg.Backend)
	if err != nil {
		return asConfigError(err)
	}

	printValidConfig(cmd.OutOrStdout(), cfg, strategy)
	return nil
}

func printValidConfig(w io.Writer, cfg *config.Config, strategy gateway.AuthStrategy) {
	source := cfgFile
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(w, "%s configuration is valid (%s)\n", cli.StyleSuccess.Render(cli.IconSuccess), source)
	fmt.Fprintf(w, "  backend:  %s\n", cfg.Backend.URL)
	fmt.Fprintf(w, "  auth:     %s\n", describeStrategy(strategy))
	fmt.Fprintf(w, "  listen:   %s\n", cfg.Server.ListenAddress)
	if cfg.Upload.Bucket != "" {
		fmt.Fprintf(w, "  uploads:  gs://%s\n", cfg.Upload.Bucket)
	} else {
		fmt.Fprintf(w, "  uploads:  %s\n", cli.StyleMuted.Render("disabled (upload.bucket not set)"))
	}
	fmt.Fprintf(w, "  polling:  every %s, at most %d attempts\n", cfg.Poller.Interval, cfg.Poller.MaxAttempts)
	fmt.Fprintf(w, "  history:  %s\n", cfg.History.Path)
}

func describeStrategy(s gateway.AuthStrategy) string {
	switch s := s.(type) {
	case gateway.IDToken:
		return fmt.Sprintf("%s (audience %s)", s.Name(), s.Audience)
	case gateway.APIKey:
		return fmt.Sprintf("%s (secret %s)", s.Name(), s.SecretRef)
	default:
		return s.Name()
	}
}
