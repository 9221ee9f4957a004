package main

import (
	"fmt"
	"log/slog"

	callbackout "github.com/nathantilsley/update-agent/internal/deploy/adapters/callback_out"
	credentialhttp "github.com/nathantilsley/update-agent/internal/deploy/adapters/credential_http"
	helmcli "github.com/nathantilsley/update-agent/internal/deploy/adapters/helm_cli"
	helmsdk "github.com/nathantilsley/update-agent/internal/deploy/adapters/helm_sdk"
	kubesecrets "github.com/nathantilsley/update-agent/internal/deploy/adapters/kube_secrets"
	linediff "github.com/nathantilsley/update-agent/internal/deploy/adapters/line_diff"
	manifestfile "github.com/nathantilsley/update-agent/internal/deploy/adapters/manifest_file"
	"github.com/nathantilsley/update-agent/internal/deploy/app"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
	"github.com/nathantilsley/update-agent/internal/platform/config"
	"github.com/nathantilsley/update-agent/internal/platform/kube"
)

// NewComponentFactory returns a factory building fresh adapters for each
// run. The reporter is built first so that later failures can be reported;
// on error the returned Components hold whatever was built.
func NewComponentFactory(cfg config.Config, log *slog.Logger) app.ComponentFactory {
	return func() (app.Components, error) {
		var c app.Components

		reporter, err := callbackout.New(cfg.CallbackEndpoint, cfg.HTTPTimeout, log.With("component", "reporter"))
		if err != nil {
			return c, err
		}
		c.Reporter = reporter
		log.Debug("reporter created", "runId", reporter.RunID())

		manifest, err := manifestfile.New(cfg.ManifestFile, log.With("component", "manifest"))
		if err != nil {
			return c, err
		}
		c.Manifest = manifest

		credentials, err := credentialhttp.New(
			cfg.CredentialProviderEndpoint,
			cfg.CredentialProviderAuth,
			cfg.HTTPTimeout,
			log.With("component", "credentials"),
		)
		if err != nil {
			return c, err
		}
		c.Credentials = credentials

		client, err := kube.NewClient(cfg.Kubeconfig)
		if err != nil {
			return c, err
		}
		c.Secrets = kubesecrets.New(client, linediff.New(), cfg.DryRun, log.With("component", "kube"))

		releases, err := newReleasePort(cfg, log.With("component", "helm"))
		if err != nil {
			return c, err
		}
		c.Releases = releases

		return c, nil
	}
}

func newReleasePort(cfg config.Config, log *slog.Logger) (ports.ReleasePort, error) {
	switch cfg.ReleaseDriver {
	case config.DriverSDK:
		return helmsdk.New(cfg.Kubeconfig, cfg.DryRun, log), nil
	case config.DriverCLI, "":
		a, err := helmcli.New(cfg.HelmBin, cfg.DryRun, log)
		if err != nil {
			return nil, fmt.Errorf("creating helm adapter: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown release driver %q", cfg.ReleaseDriver)
	}
}
