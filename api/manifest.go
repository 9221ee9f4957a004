package api

// Manifest is the top-level schema of the manifest file handed to the
// agent. JSON documents are accepted as well as YAML.
type Manifest struct {
	Repositories      []Repository      `yaml:"repositories"`
	UninstallRecords  []string          `yaml:"uninstallRecords"`
	InstallRecords    []InstallRecord   `yaml:"installRecords"`
	ChartRepositories []ChartRepository `yaml:"chartRepositories,omitempty"`
}

// Repository is a private container registry and the service accounts that
// need its pull credential.
type Repository struct {
	RepoURI string   `yaml:"repoUri"`
	Targets []Target `yaml:"targets"`
}

// Target names a service account and the secret to attach to it.
type Target struct {
	ServiceAccount string `yaml:"serviceAccount"`
	Namespace      string `yaml:"namespace"`
	SecretName     string `yaml:"secretName"`
}

// InstallRecord defines one release to install or upgrade.
type InstallRecord struct {
	ReleaseName    string         `yaml:"releaseName"`
	InstallOptions InstallOptions `yaml:"installOptions"`
}

// InstallOptions holds the chart reference and value overrides
// (applied as a single --set argument).
type InstallOptions struct {
	ChartName  string      `yaml:"chartName"`
	Namespace  string      `yaml:"namespace,omitempty"`
	SetOptions []SetOption `yaml:"setOptions"`
}

// SetOption is one key=value override.
type SetOption struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// ChartRepository is a helm repository registered before installs.
type ChartRepository struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}
