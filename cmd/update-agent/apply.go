package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nathantilsley/update-agent/internal/deploy/app"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
	"github.com/nathantilsley/update-agent/internal/platform/config"
	"github.com/nathantilsley/update-agent/internal/platform/logger"
	"github.com/nathantilsley/update-agent/internal/platform/telemetry"
)

const telemetryShutdownTimeout = 10 * time.Second

func newApplyCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the manifest to the cluster and report the outcome",
		Long: `Apply loads the manifest, fetches registry credentials for every
repository, creates image pull secrets and attaches them to service accounts,
uninstalls retired releases and installs or upgrades the listed ones.

Every flag defaults to its environment variable.`,
		Args: cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.CallbackEndpoint, "callback-endpoint", "c", cfg.CallbackEndpoint,
		"endpoint receiving progress and outcome (CALLBACK_ENDPOINT)")
	flags.StringVarP(&cfg.ManifestFile, "manifest-file", "m", cfg.ManifestFile,
		"path to the manifest file (MANIFEST_FILE)")
	flags.StringVarP(&cfg.CredentialProviderEndpoint, "credential-provider-endpoint", "p", cfg.CredentialProviderEndpoint,
		"credential provider URL (CREDENTIAL_PROVIDER_ENDPOINT)")
	flags.StringVarP(&cfg.CredentialProviderAuth, "credential-provider-auth", "a", cfg.CredentialProviderAuth,
		"credential provider authorization token (CREDENTIAL_PROVIDER_AUTH)")
	flags.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun,
		"simulate every cluster and release change (DRY_RUN)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"debug, info, warn or error (LOG_LEVEL)")
	flags.IntVar(&cfg.MaxConcurrency, "max-concurrency", cfg.MaxConcurrency,
		"operations run in parallel per phase, 0 for unbounded (MAX_CONCURRENCY)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runApply(cmd.Context(), cfg)
	}
	return cmd
}

func runApply(ctx context.Context, cfg config.Config) error {
	log := logger.New(cfg.LogLevel)

	tel, err := telemetry.New(ctx, cfg.OTelEnabled, version)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	log.Info("starting update",
		"version", version,
		"releaseDriver", cfg.ReleaseDriver,
		"dryRun", cfg.DryRun,
		"maxConcurrency", cfg.MaxConcurrency,
	)

	var svc ports.ApplyUseCase = app.NewApplyService(
		NewComponentFactory(cfg, log),
		cfg.MaxConcurrency,
		log,
		tel.Meter,
		tel.Tracer,
	)
	return svc.Execute(ctx)
}
