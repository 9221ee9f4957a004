// Package kubesecrets provisions image pull secrets and binds them to
// service accounts through the Kubernetes API.
package kubesecrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"

	linediff "github.com/nathantilsley/update-agent/internal/deploy/adapters/line_diff"
	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

const managedByLabel = "app.kubernetes.io/managed-by"

// FieldManager is recorded on every object this adapter writes.
const FieldManager = "update-agent"

type dockerAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Auth     string `json:"auth"`
}

type dockerConfig struct {
	Auths map[string]dockerAuth `json:"auths"`
}

type imagePullSecretsPatch struct {
	ImagePullSecrets []corev1.LocalObjectReference `json:"imagePullSecrets"`
}

// Adapter implements ports.SecretPort.
type Adapter struct {
	client kubernetes.Interface
	diff   ports.DiffPort
	dryRun bool
	logger *slog.Logger
}

// New creates a secrets adapter. With dryRun set every mutation is sent with
// server-side dry run and nothing is persisted.
func New(client kubernetes.Interface, diff ports.DiffPort, dryRun bool, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, diff: diff, dryRun: dryRun, logger: logger}
}

func (a *Adapter) dryRunOpt() []string {
	if a.dryRun {
		return []string{metav1.DryRunAll}
	}
	return nil
}

func namespaceOrDefault(ns string) string {
	if ns == "" {
		return metav1.NamespaceDefault
	}
	return ns
}

// CreateImagePullSecret replaces the named secret with a
// kubernetes.io/dockerconfigjson secret holding spec's credentials.
func (a *Adapter) CreateImagePullSecret(ctx context.Context, spec domain.SecretSpec) error {
	ns := namespaceOrDefault(spec.Namespace)
	secrets := a.client.CoreV1().Secrets(ns)
	logger := a.logger.With("secret", spec.SecretName, "namespace", ns)

	err := secrets.Delete(ctx, spec.SecretName, metav1.DeleteOptions{DryRun: a.dryRunOpt()})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting secret %s/%s: %w", ns, spec.SecretName, err)
	}

	data, err := dockerConfigJSON(spec.Credentials)
	if err != nil {
		return fmt.Errorf("encoding docker config for %s/%s: %w", ns, spec.SecretName, err)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.SecretName,
			Namespace: ns,
			Labels:    map[string]string{managedByLabel: FieldManager},
		},
		Type: corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{corev1.DockerConfigJsonKey: data},
	}
	_, err = secrets.Create(ctx, secret, metav1.CreateOptions{
		DryRun:       a.dryRunOpt(),
		FieldManager: FieldManager,
	})
	if err != nil {
		// The dry-run delete left the old secret in place.
		if a.dryRun && apierrors.IsAlreadyExists(err) {
			logger.Info("dry run: secret would be replaced")
			return nil
		}
		return fmt.Errorf("creating secret %s/%s: %w", ns, spec.SecretName, err)
	}
	logger.Debug("image pull secret created", "server", spec.Credentials.Server)
	return nil
}

func dockerConfigJSON(c domain.Credentials) ([]byte, error) {
	return json.Marshal(dockerConfig{
		Auths: map[string]dockerAuth{
			c.Server: {
				Username: c.Username,
				Password: c.Password,
				Email:    c.Email,
				Auth:     base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password)),
			},
		},
	})
}

// ApplyImagePullSecrets replaces the service account's imagePullSecrets with
// the binding's list using a JSON merge patch.
func (a *Adapter) ApplyImagePullSecrets(ctx context.Context, b domain.ServiceAccountBinding) error {
	ns := namespaceOrDefault(b.Namespace)
	accounts := a.client.CoreV1().ServiceAccounts(ns)
	logger := a.logger.With("serviceAccount", b.ServiceAccount, "namespace", ns)

	refs := make([]corev1.LocalObjectReference, 0, len(b.SecretNames))
	for _, name := range b.SecretNames {
		refs = append(refs, corev1.LocalObjectReference{Name: name})
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		a.logSecretsDiff(ctx, accounts, b, logger)
	}

	patch, err := json.Marshal(imagePullSecretsPatch{ImagePullSecrets: refs})
	if err != nil {
		return fmt.Errorf("encoding patch for %s/%s: %w", ns, b.ServiceAccount, err)
	}
	_, err = accounts.Patch(ctx, b.ServiceAccount, types.MergePatchType, patch, metav1.PatchOptions{
		DryRun:       a.dryRunOpt(),
		FieldManager: FieldManager,
	})
	if err != nil {
		return fmt.Errorf("patching service account %s/%s: %w", ns, b.ServiceAccount, err)
	}
	logger.Debug("image pull secrets applied", "secrets", len(refs))
	return nil
}

// logSecretsDiff logs how the binding changes the account's current list.
// A failed read only skips the diff; the patch decides the outcome.
func (a *Adapter) logSecretsDiff(ctx context.Context, accounts typedcorev1.ServiceAccountInterface, b domain.ServiceAccountBinding, logger *slog.Logger) {
	current, err := accounts.Get(ctx, b.ServiceAccount, metav1.GetOptions{})
	if err != nil {
		logger.Warn("could not read service account for diff", "error", err)
		return
	}
	before := make([]string, 0, len(current.ImagePullSecrets))
	for _, ref := range current.ImagePullSecrets {
		before = append(before, ref.Name)
	}
	if d := a.diff.ComputeDiff("current", "desired", linediff.Lines(before), linediff.Lines(b.SecretNames)); d != "" {
		logger.Debug("image pull secrets change", "diff", d)
	}
}
