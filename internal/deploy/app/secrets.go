package app

import (
	"context"
	"log/slog"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

const (
	phaseCreateSecrets = "creating image pull secrets"
	phaseApplySecrets  = "applying image pull secrets"
)

// SecretReconciler applies planned image pull secrets and service account
// bindings through a SecretPort.
type SecretReconciler struct {
	secrets ports.SecretPort
	limit   int
	logger  *slog.Logger
}

// NewSecretReconciler creates a SecretReconciler. limit bounds the fan-out of
// each phase.
func NewSecretReconciler(sp ports.SecretPort, limit int, logger *slog.Logger) *SecretReconciler {
	return &SecretReconciler{secrets: sp, limit: limit, logger: logger}
}

// CreateSecrets creates every spec. Any failure fails the whole phase once all
// dispatched creations have settled.
func (r *SecretReconciler) CreateSecrets(ctx context.Context, specs []domain.SecretSpec) error {
	err := dispatch(ctx, r.limit, specs, func(ctx context.Context, _ int, spec domain.SecretSpec) error {
		r.logger.Debug("creating image pull secret", "namespace", spec.Namespace, "secretName", spec.SecretName)
		return r.secrets.CreateImagePullSecret(ctx, spec)
	})
	if err != nil {
		r.logger.Error("error creating image pull secrets", "error", err)
		return domain.NewPhaseError(domain.CategoryApply, phaseCreateSecrets, err)
	}
	r.logger.Debug("image pull secrets created", "count", len(specs))
	return nil
}

// ApplyBindings patches every service account with its full secret list.
func (r *SecretReconciler) ApplyBindings(ctx context.Context, bindings []domain.ServiceAccountBinding) error {
	err := dispatch(ctx, r.limit, bindings, func(ctx context.Context, _ int, b domain.ServiceAccountBinding) error {
		r.logger.Debug("applying image pull secrets",
			"namespace", b.Namespace,
			"serviceAccount", b.ServiceAccount,
			"secrets", b.SecretNames,
		)
		return r.secrets.ApplyImagePullSecrets(ctx, b)
	})
	if err != nil {
		r.logger.Error("error applying image pull secrets", "error", err)
		return domain.NewPhaseError(domain.CategoryApply, phaseApplySecrets, err)
	}
	r.logger.Debug("image pull secrets applied", "count", len(bindings))
	return nil
}
