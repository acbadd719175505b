package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"labsight/gateway/pkg/cli"
	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/gateway"
	"labsight/gateway/pkg/secrets"
	"labsight/gateway/pkg/server"
	"labsight/gateway/pkg/telemetry/health"
	"labsight/gateway/pkg/telemetry/metrics"
	"labsight/gateway/pkg/telemetry/tracing"
	"labsight/gateway/pkg/upload"
)

var serveFlags struct {
	listenAddress string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Labsight gateway server",
	Long: `Start the gateway HTTP server.

The server proxies chat and upload status requests to the configured backend,
attaching the backend credential, and writes uploads to object storage when a
bucket is configured.

Examples:
  # Start with defaults and environment overrides
  labsight serve

  # Start with a config file
  labsight serve --config /etc/labsight/config.yaml

  # Override listen address
  labsight serve --listen 0.0.0.0:8080

  # Validate config and wiring without starting the server
  labsight serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "build every component without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(cfg.Telemetry.Metrics, registry)

	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	secretManager, err := secrets.NewManagerFromConfig(cfg.Secrets)
	if err != nil {
		return cli.NewConfigError("secrets", err.Error())
	}
	defer secretManager.Close()

	gw, err := gateway.New(cfg.Backend, gateway.Options{
		Secrets: secretManager,
		Metrics: collector,
		Tracer:  tracer,
		Logger:  slog.Default().With("component", "gateway"),
	})
	if err != nil {
		if ce := asConfigError(err); ce != err {
			return ce
		}
		return cli.NewCommandError("serve", err)
	}

	var store upload.ObjectStore
	if cfg.Upload.Bucket != "" {
		gcs, err := upload.NewGCSStore(ctx, cfg.Upload.Bucket, cfg.Upload.CredentialsFile)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer gcs.Close()
		store = gcs
	} else {
		slog.Warn("upload.bucket not set, upload endpoint disabled")
	}
	uploader := upload.NewUploader(store, cfg.Upload, collector)

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	registerReadiness(checker, gw, secretManager)

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), cli.StyleSuccess.Render(cli.IconSuccess+" Configuration valid"))
		fmt.Fprintf(cmd.OutOrStdout(), "  backend:  %s (%s)\n", gw.BaseURL(), gw.Strategy().Name())
		fmt.Fprintf(cmd.OutOrStdout(), "  uploads:  %t\n", uploader.Configured())
		return nil
	}

	printBanner(cmd, cfg, gw)

	srv := server.NewServer(cfg, server.Deps{
		Backend:   gw,
		Uploader:  uploader,
		Metrics:   collector,
		Health:    checker,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// registerReadiness adds the checks behind the readiness probe: the backend
// URL is usable and, for API key mode, the key can be read.
func registerReadiness(checker *health.Checker, gw *gateway.Gateway, src gateway.SecretSource) {
	checker.Register("backend", func(ctx context.Context) error {
		if gw.BaseURL() == "" {
			return errors.New("backend URL is not configured")
		}
		return nil
	})

	if key, ok := gw.Strategy().(gateway.APIKey); ok {
		checker.Register("secrets", func(ctx context.Context) error {
			if _, err := src.GetSecret(ctx, key.SecretRef); err != nil {
				return fmt.Errorf("backend API key unavailable: %w", err)
			}
			return nil
		})
	}
}

func printBanner(cmd *cobra.Command, cfg *config.Config, gw *gateway.Gateway) {
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, cli.StyleBold.Render("Labsight gateway "+Version))
	fmt.Fprintf(w, "  listen:   %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(w, "  backend:  %s (%s)\n", gw.BaseURL(), gw.Strategy().Name())
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "  metrics:  %s\n", cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(w)
}
