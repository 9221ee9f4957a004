package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/deploy/ports"
)

const successMessage = "Update complete"

// flushTimeout bounds the final report delivery, which outlives a cancelled
// run context.
const flushTimeout = 30 * time.Second

// Components are the collaborators of a single apply run. A ComponentFactory
// may return a partially populated value alongside an error; Reporter is
// used for the failure report when it is non-nil.
type Components struct {
	Reporter    ports.ReporterPort
	Manifest    ports.ManifestPort
	Credentials ports.CredentialPort
	Secrets     ports.SecretPort
	Releases    ports.ReleasePort
}

// ComponentFactory builds fresh Components for one run.
type ComponentFactory func() (Components, error)

// ApplyService implements ports.ApplyUseCase. It drives one run through the
// pipeline states, reports the outcome and flushes the reporter exactly once.
type ApplyService struct {
	build          ComponentFactory
	maxConcurrency int
	logger         *slog.Logger
	tracer         trace.Tracer
	runs           metric.Int64Counter
	stageFailures  metric.Int64Counter
}

// NewApplyService creates a new ApplyService. maxConcurrency bounds the
// fan-out of every phase; zero or less means unbounded.
func NewApplyService(
	build ComponentFactory,
	maxConcurrency int,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
) *ApplyService {
	runs, err := meter.Int64Counter("update_agent.runs",
		metric.WithDescription("Apply runs by outcome"))
	if err != nil {
		runs = noopmetric.Int64Counter{}
	}
	stageFailures, err := meter.Int64Counter("update_agent.stage.failures",
		metric.WithDescription("Failed pipeline stages"))
	if err != nil {
		stageFailures = noopmetric.Int64Counter{}
	}

	return &ApplyService{
		build:          build,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		tracer:         tracer,
		runs:           runs,
		stageFailures:  stageFailures,
	}
}

// stage is one forward transition of the run state machine.
type stage struct {
	from domain.State
	to   domain.State
	name string
	run  func(r *applyRun, ctx context.Context) error
}

var pipeline = []stage{
	{domain.StateInit, domain.StateManifestLoaded, "load manifest", (*applyRun).loadManifest},
	{domain.StateManifestLoaded, domain.StateCredentialsFetched, "fetch credentials", (*applyRun).fetchCredentials},
	{domain.StateCredentialsFetched, domain.StateSecretsCreated, "create secrets", (*applyRun).createSecrets},
	{domain.StateSecretsCreated, domain.StateBindingsApplied, "apply bindings", (*applyRun).applyBindings},
	{domain.StateBindingsApplied, domain.StateUninstalled, "uninstall releases", (*applyRun).uninstall},
	{domain.StateUninstalled, domain.StateInstalled, "install releases", (*applyRun).install},
}

// applyRun is the mutable state of one Execute call.
type applyRun struct {
	svc         *ApplyService
	comps       Components
	state       domain.State
	outcome     domain.Outcome
	logger      *slog.Logger
	manifest    domain.Manifest
	credentials []domain.Credentials
}

// Execute runs the full pipeline. The returned error is the first stage
// failure, or nil on success; a failed flush is logged and never changes it.
func (s *ApplyService) Execute(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "apply")
	defer span.End()

	comps, buildErr := s.build()
	r := &applyRun{
		svc:    s,
		comps:  comps,
		state:  domain.StateInit,
		logger: s.logger,
	}
	defer r.flush(ctx)

	defer func() {
		outcome := domain.OutcomeSuccess
		if err != nil {
			outcome = domain.OutcomeFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	}()

	if buildErr != nil {
		s.logger.Error("failed to initialize components", "error", buildErr)
		if domain.IsArgError(buildErr) {
			r.fail(domain.ArgumentErrorMessage)
			return fmt.Errorf("%s: %w", domain.ArgumentErrorMessage, buildErr)
		}
		err = fmt.Errorf("initializing components: %w", buildErr)
		r.fail(err.Error())
		return err
	}
	r.log("Objects initialized")

	if err := r.drive(ctx); err != nil {
		s.logger.Error("update failed", "state", r.state.String(), "error", err)
		r.fail(err.Error())
		return err
	}

	s.logger.Info("update complete, reporting success")
	r.succeed(successMessage)
	return nil
}

// drive walks the pipeline until it completes or a stage fails.
func (r *applyRun) drive(ctx context.Context) error {
	for _, st := range pipeline {
		if r.state != st.from {
			return fmt.Errorf("invalid transition from %s to %s", r.state, st.to)
		}

		stageCtx, span := r.svc.tracer.Start(ctx, st.name)
		err := st.run(r, stageCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			r.svc.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", st.name)))
			return err
		}
		span.End()

		r.state = st.to
		r.logger.Debug("stage complete", "state", r.state.String())
	}
	return nil
}

func (r *applyRun) loadManifest(ctx context.Context) error {
	path := r.comps.Manifest.Path()
	r.logger.Info("loading manifest file", "path", path)
	r.log(fmt.Sprintf("Initializing manifest from %s", path))

	if err := r.comps.Manifest.Load(ctx); err != nil {
		return fmt.Errorf("error loading manifest file: %w", err)
	}
	r.manifest = r.comps.Manifest.Manifest()
	return nil
}

func (r *applyRun) fetchCredentials(ctx context.Context) error {
	uris := r.manifest.RepoURIs()
	r.logger.Info("fetching container credentials", "count", len(uris))
	r.log(fmt.Sprintf("Fetching container credentials for %d repositories", len(uris)))

	creds := make([]domain.Credentials, len(uris))
	err := dispatch(ctx, r.svc.maxConcurrency, uris, func(ctx context.Context, i int, uri string) error {
		r.logger.Debug("fetching credentials for container repository", "index", i, "repository", uri)
		c, err := r.comps.Credentials.Fetch(ctx, uri)
		if err != nil {
			return err
		}
		creds[i] = c
		return nil
	})
	if err != nil {
		r.logger.Error("error fetching container credentials", "error", err)
		return domain.NewPhaseError(domain.CategoryFetch, "fetching container credentials", err)
	}
	r.credentials = creds
	return nil
}

func (r *applyRun) createSecrets(ctx context.Context) error {
	specs := domain.PlanSecrets(r.credentials, r.manifest.Repositories)
	r.logger.Info("creating kubernetes secrets", "count", len(specs))
	r.log(fmt.Sprintf("Creating kubernetes secrets for %d targets", len(specs)))

	return r.secretReconciler().CreateSecrets(ctx, specs)
}

func (r *applyRun) applyBindings(ctx context.Context) error {
	bindings := domain.PlanBindings(r.manifest.Repositories)
	r.logger.Info("applying kubernetes secrets", "count", len(bindings))
	r.log(fmt.Sprintf("Applying kubernetes secrets to %d service accounts", len(bindings)))

	return r.secretReconciler().ApplyBindings(ctx, bindings)
}

func (r *applyRun) uninstall(ctx context.Context) error {
	names := r.manifest.UninstallRecords
	r.logger.Info("uninstalling components", "count", len(names))
	r.log(fmt.Sprintf("Uninstalling %d components", len(names)))

	return r.releaseManager().Uninstall(ctx, names)
}

func (r *applyRun) install(ctx context.Context) error {
	records := r.manifest.InstallRecords
	r.logger.Info("installing and/or upgrading components", "count", len(records))
	r.log(fmt.Sprintf("Installing %d components", len(records)))

	return r.releaseManager().Install(ctx, records, r.manifest.ChartRepositories)
}

func (r *applyRun) secretReconciler() *SecretReconciler {
	return NewSecretReconciler(r.comps.Secrets, r.svc.maxConcurrency, r.logger.With("component", "secrets"))
}

func (r *applyRun) releaseManager() *ReleaseManager {
	return NewReleaseManager(r.comps.Releases, r.svc.maxConcurrency, r.logger.With("component", "releases"))
}

func (r *applyRun) log(message string) {
	if r.comps.Reporter == nil {
		return
	}
	if err := r.comps.Reporter.Log(message); err != nil {
		r.logger.Warn("failed to record log message", "error", err)
	}
}

func (r *applyRun) succeed(message string) {
	r.outcome = domain.OutcomeSuccess
	r.state = domain.StateReported
	if r.comps.Reporter == nil {
		return
	}
	if err := r.comps.Reporter.Success(message); err != nil {
		r.logger.Warn("failed to record success message", "error", err)
	}
}

func (r *applyRun) fail(message string) {
	r.outcome = domain.OutcomeFailure
	r.state = domain.StateReported
	if r.comps.Reporter == nil {
		return
	}
	r.logger.Info("reporting failure to callback endpoint")
	if err := r.comps.Reporter.Fail(message); err != nil {
		r.logger.Warn("failed to record failure message", "error", err)
	}
}

// flush delivers the report. It runs once per run, whatever the outcome,
// including a run interrupted by cancellation of ctx.
func (r *applyRun) flush(ctx context.Context) {
	if r.state == domain.StateFlushed {
		return
	}
	defer func() { r.state = domain.StateFlushed }()

	if r.comps.Reporter == nil {
		r.logger.Error("reporter not initialized, cannot flush", "fatal", true)
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	r.logger.Info("flushing reporter", "outcome", r.outcome.String())
	if err := r.comps.Reporter.Flush(flushCtx); err != nil {
		r.logger.Error("fatal error flushing reporter", "fatal", true, "error", err)
	}
}
