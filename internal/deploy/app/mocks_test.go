package app

import (
	"context"
	"errors"
	"sync"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

// Mock adapters for testing. All of them are safe for the concurrent calls
// made by phase fan-out.

type mockReporter struct {
	mu          sync.Mutex
	records     []domain.ReportRecord
	flushes     int
	flushErr    error
	flushCtxErr error
}

func (m *mockReporter) add(kind domain.RecordKind, message string) error {
	if message == "" {
		return domain.NewArgError("message", "must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, domain.ReportRecord{Kind: kind, Message: message})
	return nil
}

func (m *mockReporter) Log(message string) error     { return m.add(domain.KindLog, message) }
func (m *mockReporter) Success(message string) error { return m.add(domain.KindSuccess, message) }
func (m *mockReporter) Fail(message string) error    { return m.add(domain.KindFail, message) }

func (m *mockReporter) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	m.flushCtxErr = ctx.Err()
	return m.flushErr
}

func (m *mockReporter) count(kind domain.RecordKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func (m *mockReporter) last() domain.ReportRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[len(m.records)-1]
}

type mockManifest struct {
	data    domain.Manifest
	err     error
	loaded  domain.Manifest
	loadCnt int
}

func (m *mockManifest) Path() string { return "/etc/update-agent/manifest.yaml" }

func (m *mockManifest) Load(_ context.Context) error {
	m.loadCnt++
	if m.err != nil {
		return m.err
	}
	m.loaded = m.data
	return nil
}

func (m *mockManifest) Manifest() domain.Manifest { return m.loaded }

type mockCredentials struct {
	mu      sync.Mutex
	failOn  map[string]bool
	calls   []string
	onFetch func()
}

func (m *mockCredentials) Fetch(ctx context.Context, repoURI string) (domain.Credentials, error) {
	m.mu.Lock()
	m.calls = append(m.calls, repoURI)
	m.mu.Unlock()
	if m.onFetch != nil {
		m.onFetch()
		if err := ctx.Err(); err != nil {
			return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: err}
		}
	}
	if m.failOn[repoURI] {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: errors.New("provider unavailable")}
	}
	return domain.Credentials{
		Server:   repoURI,
		Username: "user",
		Password: "pass",
		Email:    "user@example.com",
	}, nil
}

func (m *mockCredentials) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSecrets struct {
	mu            sync.Mutex
	created       []domain.SecretSpec
	patched       []domain.ServiceAccountBinding
	failSecret    string
	failAccount   string
	createAttempt int
	patchAttempt  int
}

func (m *mockSecrets) CreateImagePullSecret(_ context.Context, spec domain.SecretSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createAttempt++
	if spec.SecretName == m.failSecret {
		return errors.New("secret create rejected")
	}
	m.created = append(m.created, spec)
	return nil
}

func (m *mockSecrets) ApplyImagePullSecrets(_ context.Context, b domain.ServiceAccountBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchAttempt++
	if b.ServiceAccount == m.failAccount {
		return errors.New("service account not found")
	}
	m.patched = append(m.patched, b)
	return nil
}

// releaseEvent is one call observed by mockReleases, in call order.
type releaseEvent struct {
	op      string
	release string
	purge   bool
	opts    domain.InstallOptions
}

type mockReleases struct {
	mu            sync.Mutex
	events        []releaseEvent
	handles       int
	failUninstall string
	failInstall   string
	failRepoAdd   bool
}

func (m *mockReleases) ForRelease(name string) (ports.Release, error) {
	if name == "" {
		return nil, domain.NewArgError("releaseName", "must not be empty")
	}
	m.mu.Lock()
	m.handles++
	m.mu.Unlock()
	return &mockRelease{parent: m, name: name}, nil
}

func (m *mockReleases) AddRepository(_ context.Context, repo domain.ChartRepository) error {
	m.record(releaseEvent{op: "repo-add", release: repo.Name})
	if m.failRepoAdd {
		return errors.New("repository unreachable")
	}
	return nil
}

func (m *mockReleases) UpdateRepositories(_ context.Context) error {
	m.record(releaseEvent{op: "repo-update"})
	return nil
}

func (m *mockReleases) record(e releaseEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *mockReleases) ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.op)
	}
	return out
}

type mockRelease struct {
	parent *mockReleases
	name   string
}

func (r *mockRelease) Install(_ context.Context, opts domain.InstallOptions) error {
	r.parent.record(releaseEvent{op: "install", release: r.name, opts: opts})
	if r.name == r.parent.failInstall {
		return errors.New("chart not found")
	}
	return nil
}

func (r *mockRelease) Uninstall(_ context.Context, purge bool) error {
	r.parent.record(releaseEvent{op: "uninstall", release: r.name, purge: purge})
	if r.name == r.parent.failUninstall {
		return errors.New("release not found")
	}
	return nil
}
