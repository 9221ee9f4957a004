// Package helmcli manages releases by shelling out to the helm CLI.
package helmcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

// Runner executes the helm binary with args and returns its stdout.
type Runner func(ctx context.Context, bin string, args ...string) ([]byte, error)

// Adapter implements ports.ReleasePort.
type Adapter struct {
	helmBin string
	dryRun  bool
	run     Runner
	logger  *slog.Logger
}

// New creates a helm CLI adapter. helmBin is resolved on PATH at
// construction time.
func New(helmBin string, dryRun bool, logger *slog.Logger) (*Adapter, error) {
	if helmBin == "" {
		helmBin = "helm"
	}
	path, err := exec.LookPath(helmBin)
	if err != nil {
		return nil, fmt.Errorf("helm binary not found: %w", err)
	}
	return NewWithRunner(path, dryRun, execRunner, logger), nil
}

// NewWithRunner creates an adapter that invokes helm through run.
func NewWithRunner(helmBin string, dryRun bool, run Runner, logger *slog.Logger) *Adapter {
	return &Adapter{helmBin: helmBin, dryRun: dryRun, run: run, logger: logger}
}

func execRunner(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (a *Adapter) helm(ctx context.Context, args ...string) error {
	a.logger.Debug("running helm", "args", args)
	out, err := a.run(ctx, a.helmBin, args...)
	if err != nil {
		a.logger.Error("helm command failed", "command", args[0], "error", err)
		return fmt.Errorf("helm %s failed: %w", args[0], err)
	}
	a.logger.Debug("helm command completed", "command", args[0], "outputSize", len(out))
	return nil
}

// ForRelease returns a handle on the named release.
func (a *Adapter) ForRelease(releaseName string) (ports.Release, error) {
	if releaseName == "" {
		return nil, domain.NewArgError("releaseName", "must not be empty")
	}
	return &release{adapter: a, name: releaseName}, nil
}

// AddRepository registers a chart repository, replacing any existing entry
// with the same name.
func (a *Adapter) AddRepository(ctx context.Context, repo domain.ChartRepository) error {
	return a.helm(ctx, "repo", "add", repo.Name, repo.URL, "--force-update")
}

// UpdateRepositories refreshes the index of every registered repository.
func (a *Adapter) UpdateRepositories(ctx context.Context) error {
	return a.helm(ctx, "repo", "update")
}

type release struct {
	adapter *Adapter
	name    string
}

// Install runs `helm upgrade --install`.
func (r *release) Install(ctx context.Context, opts domain.InstallOptions) error {
	return r.adapter.helm(ctx, installArgs(r.name, opts, r.adapter.dryRun)...)
}

// Uninstall runs `helm uninstall`. Without purge the release history is kept.
func (r *release) Uninstall(ctx context.Context, purge bool) error {
	return r.adapter.helm(ctx, uninstallArgs(r.name, purge, r.adapter.dryRun)...)
}

func installArgs(name string, opts domain.InstallOptions, dryRun bool) []string {
	args := []string{"upgrade", name, opts.ChartName, "--install"}
	if opts.Namespace != "" {
		args = append(args, "--namespace="+opts.Namespace, "--create-namespace")
	}
	if set := joinSetOptions(opts.SetOptions); set != "" {
		args = append(args, "--set="+set)
	}
	if dryRun {
		args = append(args, "--dry-run")
	}
	return args
}

func uninstallArgs(name string, purge, dryRun bool) []string {
	args := []string{"uninstall", name}
	if !purge {
		args = append(args, "--keep-history")
	}
	if dryRun {
		args = append(args, "--dry-run")
	}
	return args
}

// joinSetOptions renders overrides as one comma-separated --set value.
func joinSetOptions(opts []domain.SetOption) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, o.Key+"="+o.Value)
	}
	return strings.Join(parts, ",")
}
