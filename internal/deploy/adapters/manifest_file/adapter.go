// Package manifestfile loads the agent manifest from the local filesystem.
package manifestfile

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/update-agent/api"
	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/platform/schema"
)

var manifestSchema = sync.OnceValue(func() *schema.Validator {
	return schema.MustCompile(api.ManifestSchema)
})

// Adapter implements ports.ManifestPort by reading a YAML or JSON file.
type Adapter struct {
	path     string
	logger   *slog.Logger
	manifest domain.Manifest
}

// New creates a manifest adapter for the file at path. No I/O is performed
// until Load.
func New(path string, logger *slog.Logger) (*Adapter, error) {
	if path == "" {
		return nil, domain.NewArgError("filePath", "must not be empty")
	}
	return &Adapter{path: path, logger: logger}, nil
}

// Path returns the manifest file path.
func (a *Adapter) Path() string {
	return a.path
}

// Manifest returns the last successfully loaded manifest, or the zero value.
func (a *Adapter) Manifest() domain.Manifest {
	return a.manifest
}

// Load reads, parses and validates the manifest file. On any failure the
// previously loaded manifest is left untouched.
func (a *Adapter) Load(_ context.Context) error {
	a.logger.Debug("loading manifest file", "file", a.path)

	data, err := os.ReadFile(a.path)
	if err != nil {
		a.logger.Error("error reading manifest file", "error", err)
		return &domain.LoadError{Path: a.path, Op: "reading", Err: err}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		a.logger.Error("error parsing manifest file", "error", err)
		return &domain.LoadError{Path: a.path, Op: "parsing", Err: err}
	}

	violations, err := manifestSchema().Validate(doc)
	if err != nil {
		return &domain.LoadError{Path: a.path, Op: "validating", Err: err}
	}
	if len(violations) > 0 {
		fields := make([]domain.FieldError, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, domain.FieldError{Field: v.Field, Description: v.Description})
		}
		a.logger.Error("manifest file validation failed", "violations", len(fields))
		return &domain.LoadError{Path: a.path, Op: "validating", Fields: fields}
	}

	var m api.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return &domain.LoadError{Path: a.path, Op: "parsing", Err: err}
	}

	a.manifest = toDomain(m)
	a.logger.Debug("manifest loaded",
		"repositories", len(a.manifest.Repositories),
		"installRecords", len(a.manifest.InstallRecords),
		"uninstallRecords", len(a.manifest.UninstallRecords),
	)
	return nil
}

func toDomain(m api.Manifest) domain.Manifest {
	repos := make([]domain.RepoRecord, 0, len(m.Repositories))
	for _, r := range m.Repositories {
		targets := make([]domain.BindingTarget, 0, len(r.Targets))
		for _, t := range r.Targets {
			targets = append(targets, domain.BindingTarget{
				ServiceAccount: t.ServiceAccount,
				SecretName:     t.SecretName,
				Namespace:      t.Namespace,
			})
		}
		repos = append(repos, domain.RepoRecord{RepoURI: r.RepoURI, Targets: targets})
	}

	installs := make([]domain.ReleaseInstall, 0, len(m.InstallRecords))
	for _, rec := range m.InstallRecords {
		opts := make([]domain.SetOption, 0, len(rec.InstallOptions.SetOptions))
		for _, o := range rec.InstallOptions.SetOptions {
			opts = append(opts, domain.SetOption{Key: o.Key, Value: o.Value})
		}
		installs = append(installs, domain.ReleaseInstall{
			ReleaseName: rec.ReleaseName,
			InstallOptions: domain.InstallOptions{
				ChartName:  rec.InstallOptions.ChartName,
				Namespace:  rec.InstallOptions.Namespace,
				SetOptions: opts,
			},
		})
	}

	var chartRepos []domain.ChartRepository
	for _, cr := range m.ChartRepositories {
		chartRepos = append(chartRepos, domain.ChartRepository{Name: cr.Name, URL: cr.URL})
	}

	uninstalls := make([]string, len(m.UninstallRecords))
	copy(uninstalls, m.UninstallRecords)

	return domain.Manifest{
		InstallRecords:    installs,
		UninstallRecords:  uninstalls,
		Repositories:      repos,
		ChartRepositories: chartRepos,
	}
}
