// Package helmsdk manages releases in-process with the Helm Go SDK.
package helmsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"
	"helm.sh/helm/v3/pkg/strvals"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

// Adapter implements ports.ReleasePort.
type Adapter struct {
	kubeconfig string
	dryRun     bool
	logger     *slog.Logger

	// repoMu serializes writes to the repositories file.
	repoMu sync.Mutex
}

// New creates a Helm SDK adapter. An empty kubeconfig uses the default
// loading rules.
func New(kubeconfig string, dryRun bool, logger *slog.Logger) *Adapter {
	return &Adapter{kubeconfig: kubeconfig, dryRun: dryRun, logger: logger}
}

func (a *Adapter) settings(namespace string) *cli.EnvSettings {
	s := cli.New()
	if a.kubeconfig != "" {
		s.KubeConfig = a.kubeconfig
	}
	if namespace != "" {
		s.SetNamespace(namespace)
	}
	return s
}

func (a *Adapter) actionConfig(settings *cli.EnvSettings) (*action.Configuration, error) {
	cfg := new(action.Configuration)
	debug := func(format string, v ...interface{}) {
		a.logger.Debug(fmt.Sprintf(format, v...))
	}
	if err := cfg.Init(settings.RESTClientGetter(), settings.Namespace(), os.Getenv("HELM_DRIVER"), debug); err != nil {
		return nil, fmt.Errorf("initializing helm: %w", err)
	}
	return cfg, nil
}

// ForRelease returns a handle on the named release.
func (a *Adapter) ForRelease(releaseName string) (ports.Release, error) {
	if releaseName == "" {
		return nil, domain.NewArgError("releaseName", "must not be empty")
	}
	return &release{adapter: a, name: releaseName}, nil
}

// AddRepository downloads the repository index and records the repository
// in the helm repositories file.
func (a *Adapter) AddRepository(_ context.Context, cr domain.ChartRepository) error {
	a.repoMu.Lock()
	defer a.repoMu.Unlock()

	settings := a.settings("")
	repoFile := settings.RepositoryConfig
	if err := os.MkdirAll(filepath.Dir(repoFile), 0o750); err != nil {
		return fmt.Errorf("creating repository directory: %w", err)
	}

	entry := &repo.Entry{Name: cr.Name, URL: cr.URL}
	if err := a.downloadIndex(settings, entry); err != nil {
		return err
	}

	f, err := repo.LoadFile(repoFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading repository file: %w", err)
	}
	if f == nil || errors.Is(err, os.ErrNotExist) {
		f = repo.NewFile()
	}
	f.Update(entry)
	if err := f.WriteFile(repoFile, 0o644); err != nil {
		return fmt.Errorf("writing repository file: %w", err)
	}
	a.logger.Debug("chart repository added", "name", cr.Name, "url", cr.URL)
	return nil
}

// UpdateRepositories re-downloads the index of every registered repository.
func (a *Adapter) UpdateRepositories(_ context.Context) error {
	a.repoMu.Lock()
	defer a.repoMu.Unlock()

	settings := a.settings("")
	f, err := repo.LoadFile(settings.RepositoryConfig)
	if err != nil {
		return fmt.Errorf("loading repository file: %w", err)
	}
	var failed []string
	for _, entry := range f.Repositories {
		if err := a.downloadIndex(settings, entry); err != nil {
			a.logger.Error("updating chart repository failed", "name", entry.Name, "error", err)
			failed = append(failed, entry.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to update repositories: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (a *Adapter) downloadIndex(settings *cli.EnvSettings, entry *repo.Entry) error {
	r, err := repo.NewChartRepository(entry, getter.All(settings))
	if err != nil {
		return fmt.Errorf("creating repository %s: %w", entry.Name, err)
	}
	r.CachePath = settings.RepositoryCache
	if _, err := r.DownloadIndexFile(); err != nil {
		return fmt.Errorf("downloading index for %s: %w", entry.Name, err)
	}
	return nil
}

type release struct {
	adapter *Adapter
	name    string
}

// Install upgrades the release, or installs it when it has no history.
func (r *release) Install(ctx context.Context, opts domain.InstallOptions) error {
	a := r.adapter
	settings := a.settings(opts.Namespace)
	cfg, err := a.actionConfig(settings)
	if err != nil {
		return err
	}

	values, err := valuesFromSetOptions(opts.SetOptions)
	if err != nil {
		return fmt.Errorf("parsing values for %s: %w", r.name, err)
	}

	history := action.NewHistory(cfg)
	history.Max = 1
	_, err = history.Run(r.name)
	switch {
	case errors.Is(err, driver.ErrReleaseNotFound):
		return r.install(ctx, cfg, settings, opts.ChartName, values)
	case err != nil:
		return fmt.Errorf("reading history of %s: %w", r.name, err)
	}
	return r.upgrade(ctx, cfg, settings, opts.ChartName, values)
}

func (r *release) install(ctx context.Context, cfg *action.Configuration, settings *cli.EnvSettings, chartName string, values map[string]interface{}) error {
	client := newInstall(cfg, r.name, settings.Namespace(), r.adapter.dryRun)

	chartPath, err := client.ChartPathOptions.LocateChart(chartName, settings)
	if err != nil {
		return fmt.Errorf("locating chart %s: %w", chartName, err)
	}
	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("loading chart %s: %w", chartName, err)
	}

	rel, err := client.RunWithContext(ctx, chart, values)
	if err != nil {
		return fmt.Errorf("installing %s: %w", r.name, err)
	}
	r.adapter.logger.Debug("release installed", "release", rel.Name, "version", rel.Version)
	return nil
}

// newInstall configures a first install. The target namespace is created
// when it does not exist yet.
func newInstall(cfg *action.Configuration, name, namespace string, dryRun bool) *action.Install {
	client := action.NewInstall(cfg)
	client.ReleaseName = name
	client.Namespace = namespace
	client.CreateNamespace = true
	client.DryRun = dryRun
	return client
}

func (r *release) upgrade(ctx context.Context, cfg *action.Configuration, settings *cli.EnvSettings, chartName string, values map[string]interface{}) error {
	client := action.NewUpgrade(cfg)
	client.Namespace = settings.Namespace()
	client.DryRun = r.adapter.dryRun

	chartPath, err := client.ChartPathOptions.LocateChart(chartName, settings)
	if err != nil {
		return fmt.Errorf("locating chart %s: %w", chartName, err)
	}
	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("loading chart %s: %w", chartName, err)
	}

	rel, err := client.RunWithContext(ctx, r.name, chart, values)
	if err != nil {
		return fmt.Errorf("upgrading %s: %w", r.name, err)
	}
	r.adapter.logger.Debug("release upgraded", "release", rel.Name, "version", rel.Version)
	return nil
}

// Uninstall removes the release. Without purge the release history is kept.
func (r *release) Uninstall(_ context.Context, purge bool) error {
	cfg, err := r.adapter.actionConfig(r.adapter.settings(""))
	if err != nil {
		return err
	}
	client := action.NewUninstall(cfg)
	client.KeepHistory = !purge
	client.DryRun = r.adapter.dryRun
	if _, err := client.Run(r.name); err != nil {
		return fmt.Errorf("uninstalling %s: %w", r.name, err)
	}
	return nil
}

// valuesFromSetOptions parses overrides with --set semantics.
func valuesFromSetOptions(opts []domain.SetOption) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	for _, o := range opts {
		if err := strvals.ParseInto(o.Key+"="+o.Value, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}
