package ports

import (
	"context"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
)

// ManifestPort abstracts loading the declarative manifest. Manifest returns
// the zero value until Load succeeds.
type ManifestPort interface {
	Path() string
	Load(ctx context.Context) error
	Manifest() domain.Manifest
}

// CredentialPort abstracts the credential provider. One call issues one
// request; callers own the fan-out.
type CredentialPort interface {
	Fetch(ctx context.Context, repoURI string) (domain.Credentials, error)
}

// SecretPort abstracts the cluster operations that provision image pull
// secrets and attach them to service accounts.
type SecretPort interface {
	// CreateImagePullSecret deletes then recreates the secret.
	CreateImagePullSecret(ctx context.Context, spec domain.SecretSpec) error
	// ApplyImagePullSecrets replaces the service account's imagePullSecrets.
	ApplyImagePullSecrets(ctx context.Context, binding domain.ServiceAccountBinding) error
}

// ReleasePort abstracts the packaging tool.
type ReleasePort interface {
	ForRelease(releaseName string) (Release, error)
	AddRepository(ctx context.Context, repo domain.ChartRepository) error
	UpdateRepositories(ctx context.Context) error
}

// Release is a handle on one named release.
type Release interface {
	Install(ctx context.Context, opts domain.InstallOptions) error
	Uninstall(ctx context.Context, purge bool) error
}

// ReporterPort abstracts the buffered status reporter.
type ReporterPort interface {
	Log(message string) error
	Success(message string) error
	Fail(message string) error
	Flush(ctx context.Context) error
}

// DiffPort computes a human-readable diff between two texts.
type DiffPort interface {
	ComputeDiff(baseName, headName string, base, head []byte) string
}
