package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

const (
	phaseUninstall  = "uninstalling components"
	phaseInstall    = "installing components"
	phaseChartRepos = "adding chart repositories"
)

// Retired releases are always purged so their names can be reused.
const uninstallWithPurge = true

// ReleaseManager drives release uninstalls and installs through a ReleasePort.
// A fresh release handle is obtained for every operation.
type ReleaseManager struct {
	releases ports.ReleasePort
	limit    int
	logger   *slog.Logger
}

// NewReleaseManager creates a ReleaseManager.
func NewReleaseManager(rp ports.ReleasePort, limit int, logger *slog.Logger) *ReleaseManager {
	return &ReleaseManager{releases: rp, limit: limit, logger: logger}
}

// Uninstall purges every named release. All uninstalls are dispatched; the
// phase fails if any of them failed.
func (m *ReleaseManager) Uninstall(ctx context.Context, releaseNames []string) error {
	err := dispatch(ctx, m.limit, releaseNames, func(ctx context.Context, i int, name string) error {
		m.logger.Debug("uninstalling component", "index", i, "releaseName", name)
		rel, err := m.releases.ForRelease(name)
		if err != nil {
			return err
		}
		if err := rel.Uninstall(ctx, uninstallWithPurge); err != nil {
			return fmt.Errorf("uninstalling release %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("error uninstalling components", "error", err)
		return domain.NewPhaseError(domain.CategoryLifecycle, phaseUninstall, err)
	}
	m.logger.Debug("components uninstalled", "count", len(releaseNames))
	return nil
}

// Install registers chart repositories, if any, then installs or upgrades
// every release.
func (m *ReleaseManager) Install(ctx context.Context, records []domain.ReleaseInstall, repos []domain.ChartRepository) error {
	if len(repos) > 0 {
		if err := m.addRepositories(ctx, repos); err != nil {
			return err
		}
	}

	err := dispatch(ctx, m.limit, records, func(ctx context.Context, i int, rec domain.ReleaseInstall) error {
		m.logger.Debug("installing component",
			"index", i,
			"releaseName", rec.ReleaseName,
			"chartName", rec.InstallOptions.ChartName,
		)
		rel, err := m.releases.ForRelease(rec.ReleaseName)
		if err != nil {
			return err
		}
		if err := rel.Install(ctx, rec.InstallOptions); err != nil {
			return fmt.Errorf("installing release %s: %w", rec.ReleaseName, err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("error installing components", "error", err)
		return domain.NewPhaseError(domain.CategoryLifecycle, phaseInstall, err)
	}
	m.logger.Debug("components installed", "count", len(records))
	return nil
}

// addRepositories runs sequentially: helm serializes writes to its
// repositories file.
func (m *ReleaseManager) addRepositories(ctx context.Context, repos []domain.ChartRepository) error {
	for _, repo := range repos {
		m.logger.Debug("adding chart repository", "name", repo.Name, "url", repo.URL)
		if err := m.releases.AddRepository(ctx, repo); err != nil {
			return domain.NewPhaseError(domain.CategoryLifecycle, phaseChartRepos, err)
		}
	}
	if err := m.releases.UpdateRepositories(ctx); err != nil {
		return domain.NewPhaseError(domain.CategoryLifecycle, phaseChartRepos, err)
	}
	return nil
}
