package domain

// Manifest is the validated, typed form of a manifest file. A zero Manifest
// is the state before a successful load.
type Manifest struct {
	InstallRecords    []ReleaseInstall
	UninstallRecords  []string
	Repositories      []RepoRecord
	ChartRepositories []ChartRepository
}

// RepoURIs returns the repository URIs in manifest order.
func (m Manifest) RepoURIs() []string {
	uris := make([]string, 0, len(m.Repositories))
	for _, r := range m.Repositories {
		uris = append(uris, r.RepoURI)
	}
	return uris
}

// RepoRecord is one private container registry and every place its pull
// credential must land.
type RepoRecord struct {
	RepoURI string
	Targets []BindingTarget
}

// BindingTarget identifies one (namespace, serviceAccount) pair that needs
// SecretName attached.
type BindingTarget struct {
	ServiceAccount string
	SecretName     string
	Namespace      string
}

// ReleaseInstall describes a release to install or upgrade.
type ReleaseInstall struct {
	ReleaseName    string
	InstallOptions InstallOptions
}

// InstallOptions holds the chart and overrides for one release.
type InstallOptions struct {
	ChartName  string
	Namespace  string // optional
	SetOptions []SetOption
}

// SetOption is a single key=value chart value override.
type SetOption struct {
	Key   string
	Value string
}

// ChartRepository is a helm chart repository that must be registered before
// installs run.
type ChartRepository struct {
	Name string
	URL  string
}
