// Package engine is the facade the outer layers (CLI, daemon, a future
// HTTP surface) call into. It owns the wiring of rule registry, cost
// model, classifier, orchestrator, and queue around one store.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/costhound/costhound/aggregate"
	"github.com/costhound/costhound/classifier"
	"github.com/costhound/costhound/journal"
	"github.com/costhound/costhound/orchestrator"
	"github.com/costhound/costhound/pricing"
	"github.com/costhound/costhound/provider"
	"github.com/costhound/costhound/queue"
	"github.com/costhound/costhound/rules"
	"github.com/costhound/costhound/storage"
	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

// CredentialResolver decrypts one account's credentials on demand.
// Implementations must not cache plaintext beyond a single resolve.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountID string) (provider.Credentials, error)
}

// Store is the persistence surface the engine needs. *storage.Store
// satisfies it.
type Store interface {
	rules.OverrideStore

	CreateScan(job types.ScanJob) error
	GetScan(id string) (*types.ScanJob, error)
	UpdateScan(job types.ScanJob) error
	ListScans(accountID string) ([]types.ScanJob, error)
	PutFindingsBatch(findings []types.Finding) error
	GetFinding(id string) (*types.Finding, error)
	ListFindings(q storage.FindingFilter) ([]types.Finding, error)
	UpdateFindingStatus(id string, status types.FindingStatus) error
	TopCostFindings(accountID string, limit int) ([]types.Finding, error)
}

// Config tunes the engine
type Config struct {
	// Provider is the default cloud vendor for new scans
	Provider string

	// ScanDeadline is the hard wall-clock cap per scan job
	ScanDeadline time.Duration

	// PricingTTL is how long cached prices stay fresh
	PricingTTL time.Duration

	Orchestrator orchestrator.Config
	Queue        queue.Config
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = "aws"
	}
	if c.ScanDeadline <= 0 {
		c.ScanDeadline = 30 * time.Minute
	}
	return c
}

// Engine exposes the scan, finding, and rule operations
type Engine struct {
	store    Store
	registry *rules.Registry
	creds    CredentialResolver
	orch     *orchestrator.Orchestrator
	queue    *queue.Queue
	cfg      Config
	logger   *telemetry.Logger
	now      func() time.Time
}

// New wires an engine together. jnl may be nil to disable the scan
// journal.
func New(store Store, priceStore pricing.EntryStore, creds CredentialResolver, jnl *journal.Journal, cfg Config) *Engine {
	cfg = cfg.withDefaults()

	registry := rules.NewRegistry(store)
	cache := pricing.NewCache(priceStore, cfg.PricingTTL)
	model := pricing.NewModel(cache, cfg.Provider)
	cls := classifier.New(model)

	e := &Engine{
		store:    store,
		registry: registry,
		creds:    creds,
		orch:     orchestrator.New(store, registry, cls, jnl, cfg.Orchestrator),
		cfg:      cfg,
		logger:   telemetry.NewLogger("engine"),
		now:      time.Now,
	}
	e.queue = queue.New(func(ctx context.Context, scanID, handle string) {
		e.recordTaskHandle(ctx, scanID, handle)
		if err := e.RunScan(ctx, scanID); err != nil {
			e.logger.WithContext(ctx).Error().
				Str("scan_id", scanID).
				Err(err).
				Msg("queued scan run failed")
		}
	}, cfg.Queue)
	return e
}

// Queue returns the scan queue for the daemon's run group
func (e *Engine) Queue() *queue.Queue {
	return e.queue
}

// Registry exposes rule resolution for read-side callers
func (e *Engine) Registry() *rules.Registry {
	return e.registry
}

// CreateScan records a new pending job. The caller enqueues the actual
// run, either via SubmitScan or by calling RunScan directly.
func (e *Engine) CreateScan(ctx context.Context, accountID string, kind types.ScanKind) (*types.ScanJob, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id required")
	}
	switch kind {
	case types.ScanKindAdHoc, types.ScanKindScheduled, types.ScanKindFullInventory:
	default:
		return nil, fmt.Errorf("unknown scan kind %q", kind)
	}

	now := e.now().UTC()
	job := types.ScanJob{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Provider:  e.cfg.Provider,
		Kind:      kind,
		Status:    types.ScanPending,
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateScan(job); err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}

	e.logger.WithContext(ctx).Info().
		Str("scan_id", job.ID).
		Str("account_id", accountID).
		Str("kind", string(kind)).
		Msg("scan created")
	return &job, nil
}

// SubmitScan queues a pending scan for background execution. The
// worker records the task handle on the job before running it.
func (e *Engine) SubmitScan(_ context.Context, scanID string) (string, error) {
	job, err := e.store.GetScan(scanID)
	if err != nil {
		return "", err
	}
	if job.Status != types.ScanPending {
		return "", fmt.Errorf("scan %s is %s, only pending scans can be submitted", scanID, job.Status)
	}

	handle, err := e.queue.Submit(scanID)
	if err != nil {
		return "", fmt.Errorf("queue scan %s: %w", scanID, err)
	}
	return handle, nil
}

// recordTaskHandle runs in the worker before the scan starts, so the
// handle write never races the orchestrator's status updates.
func (e *Engine) recordTaskHandle(ctx context.Context, scanID, handle string) {
	job, err := e.store.GetScan(scanID)
	if err != nil {
		return
	}
	job.TaskHandle = handle
	if err := e.store.UpdateScan(*job); err != nil {
		e.logger.WithContext(ctx).Warn().
			Str("scan_id", scanID).
			Err(err).
			Msg("record task handle failed")
	}
}

// RunScan performs the full scan sequence synchronously. Safe to call
// exactly once per job id.
func (e *Engine) RunScan(ctx context.Context, scanID string) error {
	job, err := e.store.GetScan(scanID)
	if err != nil {
		return err
	}

	creds, err := e.creds.Resolve(ctx, job.AccountID)
	if err != nil {
		return e.failBeforeRun(ctx, job, fmt.Errorf("resolve credentials: %w", err))
	}

	providerName := creds.Provider
	if providerName == "" {
		providerName = job.Provider
	}
	adapter, err := provider.New(ctx, providerName, creds)
	if err != nil {
		return e.failBeforeRun(ctx, job, fmt.Errorf("create %s adapter: %w", providerName, err))
	}

	opts := orchestrator.RunOptions{
		Regions:  creds.Regions,
		Deadline: e.now().Add(e.cfg.ScanDeadline),
	}
	return e.orch.Run(ctx, scanID, adapter, opts)
}

// failBeforeRun marks a job failed for errors that happen before the
// orchestrator takes over (credential resolution, adapter creation).
func (e *Engine) failBeforeRun(ctx context.Context, job *types.ScanJob, cause error) error {
	completed := e.now().UTC()
	job.Status = types.ScanFailed
	job.CompletedAt = &completed
	job.ErrorSummary = types.TruncateError(cause.Error())
	if err := e.store.UpdateScan(*job); err != nil {
		e.logger.WithContext(ctx).Error().
			Str("scan_id", job.ID).
			Err(err).
			Msg("record scan failure failed")
	}
	e.logger.LogScanFailed(ctx, job.ID, cause)
	return cause
}

// GetScan returns the job record, including live counters while running
func (e *Engine) GetScan(_ context.Context, scanID string) (*types.ScanJob, error) {
	return e.store.GetScan(scanID)
}

// ListScans returns an account's jobs, newest first
func (e *Engine) ListScans(_ context.Context, accountID string) ([]types.ScanJob, error) {
	return e.store.ListScans(accountID)
}

// ListFindings queries findings with filters and pagination
func (e *Engine) ListFindings(_ context.Context, filter storage.FindingFilter) ([]types.Finding, error) {
	return e.store.ListFindings(filter)
}

// UpdateFindingStatus records a user decision on one finding
func (e *Engine) UpdateFindingStatus(_ context.Context, findingID string, status types.FindingStatus) error {
	return e.store.UpdateFindingStatus(findingID, status)
}

// GetStatistics aggregates findings scoped by scan id or account id
func (e *Engine) GetStatistics(_ context.Context, scanID, accountID string) (aggregate.Statistics, error) {
	findings, err := e.store.ListFindings(storage.FindingFilter{ScanID: scanID, AccountID: accountID})
	if err != nil {
		return aggregate.Statistics{}, err
	}
	return aggregate.Compute(findings), nil
}

// GetTopCostFindings returns the account's most expensive findings,
// cost descending with stable ties.
func (e *Engine) GetTopCostFindings(_ context.Context, accountID string, limit int) ([]types.Finding, error) {
	return e.store.TopCostFindings(accountID, limit)
}

// UpsertRule stores an owner's override for one scenario
func (e *Engine) UpsertRule(ctx context.Context, ownerID, scenario string, rs rules.RuleSet) error {
	return e.registry.Upsert(ctx, ownerID, rules.Scenario(scenario), rs)
}

// ResetRule deletes an owner's override for one scenario, or all of
// them when scenario is empty.
func (e *Engine) ResetRule(ctx context.Context, ownerID, scenario string) error {
	if scenario == "" {
		return e.registry.ResetToDefault(ctx, ownerID, nil)
	}
	sc := rules.Scenario(scenario)
	return e.registry.ResetToDefault(ctx, ownerID, &sc)
}
