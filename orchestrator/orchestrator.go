// Package orchestrator drives one scan job end to end: state machine,
// region fan-out, classification, and the final batch commit. One call
// to Run is exactly one traversal of pending -> running -> terminal.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/costhound/costhound/classifier"
	"github.com/costhound/costhound/journal"
	"github.com/costhound/costhound/pricing"
	"github.com/costhound/costhound/provider"
	"github.com/costhound/costhound/rules"
	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

var (
	// ErrCancelled marks a scan aborted by external cancellation. The
	// job fails with this tag and all computed findings are discarded.
	ErrCancelled = errors.New("cancelled")

	// ErrDeadlineExceeded marks a scan that ran past its injected
	// deadline. Checked at region boundaries, never mid-region.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrAlreadyRan rejects a second Run for the same job id
	ErrAlreadyRan = errors.New("scan already ran")
)

const (
	DefaultMaxRegions        = 32
	DefaultRegionConcurrency = 4
)

// Store is the persistence surface the orchestrator needs
type Store interface {
	GetScan(id string) (*types.ScanJob, error)
	UpdateScan(job types.ScanJob) error
	PutFindingsBatch(findings []types.Finding) error
}

// Progress is one progress report. Reports are monotonic and
// region-ordered: index i is always reported before index i+1.
type Progress struct {
	ScanID      string
	RegionIndex int // 1-based
	RegionTotal int
	Region      string
}

// ProgressFunc receives progress reports. It must not block; slow
// consumers stall region dispatch.
type ProgressFunc func(Progress)

// Config bounds a scan's fan-out
type Config struct {
	// MaxRegions caps how many regions one job scans
	MaxRegions int

	// RegionConcurrency bounds how many regions scan in parallel.
	// 1 gives strictly sequential scanning.
	RegionConcurrency int
}

func (c Config) withDefaults() Config {
	if c.MaxRegions <= 0 {
		c.MaxRegions = DefaultMaxRegions
	}
	if c.RegionConcurrency <= 0 {
		c.RegionConcurrency = DefaultRegionConcurrency
	}
	return c
}

// RunOptions parameterizes one Run invocation
type RunOptions struct {
	// Regions is the explicit region list from account configuration.
	// Empty means ask the adapter.
	Regions []string

	// Deadline aborts the job at the next region boundary once passed.
	// Zero means no deadline.
	Deadline time.Time

	// Progress receives region-ordered progress reports, may be nil
	Progress ProgressFunc
}

// Orchestrator executes scan jobs. Safe for concurrent Run calls on
// distinct job ids; a second Run on the same id is rejected.
type Orchestrator struct {
	store      Store
	registry   *rules.Registry
	classifier *classifier.Classifier
	journal    *journal.Journal
	logger     *telemetry.Logger
	cfg        Config
	now        func() time.Time

	ran sync.Map // scan id -> struct{}
}

// New creates an orchestrator. journal may be nil to disable the audit
// trail.
func New(store Store, registry *rules.Registry, cls *classifier.Classifier, jnl *journal.Journal, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		registry:   registry,
		classifier: cls,
		journal:    jnl,
		logger:     telemetry.NewLogger("orchestrator"),
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// regionResult is one region's outcome, indexed for ordered handling
// after the join barrier.
type regionResult struct {
	region     string
	candidates []types.Candidate
	err        error
}

// Run drives the full scan sequence for one job. It returns an error
// only for invocation mistakes (unknown id, double run); scan failures
// are recorded on the job itself and return nil.
func (o *Orchestrator) Run(ctx context.Context, scanID string, adapter provider.Adapter, opts RunOptions) error {
	if _, loaded := o.ran.LoadOrStore(scanID, struct{}{}); loaded {
		return fmt.Errorf("run scan %s: %w", scanID, ErrAlreadyRan)
	}

	job, err := o.store.GetScan(scanID)
	if err != nil {
		return fmt.Errorf("load scan %s: %w", scanID, err)
	}
	if job.Status != types.ScanPending {
		return fmt.Errorf("run scan %s in status %s: %w", scanID, job.Status, ErrAlreadyRan)
	}

	start := o.now()
	started := start.UTC()
	job.Status = types.ScanRunning
	job.StartedAt = &started
	if err := o.store.UpdateScan(*job); err != nil {
		return fmt.Errorf("mark scan %s running: %w", scanID, err)
	}

	telemetry.ScansStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", job.Provider)))

	o.execute(ctx, job, adapter, opts)

	telemetry.ScanDuration.Record(ctx, o.now().Sub(start).Seconds(),
		metric.WithAttributes(attribute.String("status", string(job.Status))))
	return nil
}

// execute runs everything after the running transition. All outcomes,
// success or failure, land on the job record.
func (o *Orchestrator) execute(ctx context.Context, job *types.ScanJob, adapter provider.Adapter, opts RunOptions) {
	if err := adapter.ValidateCredentials(ctx); err != nil {
		o.fail(ctx, job, fmt.Errorf("credential validation: %w", err))
		return
	}

	regions, err := o.resolveRegions(ctx, adapter, opts.Regions)
	if err != nil {
		o.fail(ctx, job, fmt.Errorf("resolve regions: %w", err))
		return
	}

	o.logger.LogScanStarted(ctx, job.ID, job.AccountID, len(regions))
	o.journalRecord(journal.EventScanStarted, job.ID, "", map[string]int{"regions": len(regions)})

	results, abort := o.fanOut(ctx, job, adapter, regions, opts)
	if abort != nil {
		// All-or-nothing: findings from completed regions are discarded
		o.fail(ctx, job, abort)
		return
	}

	findings, fatal := o.collect(ctx, job, results)
	if fatal != nil {
		o.fail(ctx, job, fatal)
		return
	}

	if len(findings) > 0 {
		if err := o.store.PutFindingsBatch(findings); err != nil {
			o.fail(ctx, job, fmt.Errorf("persist findings: %w", err))
			return
		}
	}

	o.complete(ctx, job, findings)
}

func (o *Orchestrator) resolveRegions(ctx context.Context, adapter provider.Adapter, explicit []string) ([]string, error) {
	regions := explicit
	if len(regions) == 0 {
		var err error
		regions, err = adapter.ListRegions(ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(regions) > o.cfg.MaxRegions {
		o.logger.Warn().
			Int("regions", len(regions)).
			Int("cap", o.cfg.MaxRegions).
			Msg("region list capped")
		regions = regions[:o.cfg.MaxRegions]
	}
	return regions, nil
}

// fanOut scans regions with bounded concurrency. Dispatch is ordered,
// so progress reports stay monotonic even when scans overlap. It
// returns a non-nil abort error when cancellation or the deadline was
// observed at a region boundary; in that case the join barrier has
// already been waited on.
func (o *Orchestrator) fanOut(ctx context.Context, job *types.ScanJob, adapter provider.Adapter, regions []string, opts RunOptions) ([]regionResult, error) {
	results := make([]regionResult, len(regions))
	sem := make(chan struct{}, o.cfg.RegionConcurrency)
	var wg sync.WaitGroup

	var abort error
	for i, region := range regions {
		// Region boundary: the only place cancellation and the
		// deadline are observed.
		if ctx.Err() != nil {
			abort = ErrCancelled
			break
		}
		if !opts.Deadline.IsZero() && o.now().After(opts.Deadline) {
			abort = ErrDeadlineExceeded
			break
		}

		if opts.Progress != nil {
			opts.Progress(Progress{
				ScanID:      job.ID,
				RegionIndex: i + 1,
				RegionTotal: len(regions),
				Region:      region,
			})
		}
		o.journalRecord(journal.EventRegionStarted, job.ID, region, nil)

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, region string) {
			defer wg.Done()
			defer func() { <-sem }()

			candidates, err := adapter.ScanRegion(ctx, region)
			results[i] = regionResult{region: region, candidates: candidates, err: err}
		}(i, region)
	}

	// Join barrier: nothing commits while a region is in flight
	wg.Wait()

	if abort != nil {
		return nil, abort
	}
	return results, nil
}

// collect walks region results in order, records partial failures, and
// classifies every candidate. A mid-scan auth failure is the one
// region error that is job-fatal.
func (o *Orchestrator) collect(ctx context.Context, job *types.ScanJob, results []regionResult) ([]types.Finding, error) {
	var findings []types.Finding
	for _, res := range results {
		if res.region == "" {
			// Slot never dispatched (abort upstream); defensive only
			continue
		}
		if res.err != nil {
			if provider.IsAuthError(res.err) {
				return nil, fmt.Errorf("region %s: %w", res.region, res.err)
			}
			job.RecordRegionError(res.region, res.err.Error())
			o.logger.LogRegionFailed(ctx, job.ID, res.region, res.err)
			o.journalRecord(journal.EventRegionFailed, job.ID, res.region, map[string]string{"error": types.TruncateError(res.err.Error())})
			continue
		}

		job.ResourcesExamined += len(res.candidates)
		findings = append(findings, o.classify(ctx, job, res.candidates)...)
		o.journalRecord(journal.EventRegionCompleted, job.ID, res.region, map[string]int{"candidates": len(res.candidates)})
	}
	return findings, nil
}

func (o *Orchestrator) classify(ctx context.Context, job *types.ScanJob, candidates []types.Candidate) []types.Finding {
	var out []types.Finding
	for _, cand := range candidates {
		for _, sc := range classifier.ScenariosFor(cand.Type) {
			rs, ok, err := o.registry.Resolve(ctx, job.AccountID, sc)
			if err != nil {
				o.logger.WithContext(ctx).Warn().
					Str("scan_id", job.ID).
					Str("scenario", string(sc)).
					Err(err).
					Msg("rule resolution failed, skipping candidate")
				continue
			}
			if !ok {
				// No default rule for this scenario, skip silently
				continue
			}

			f := o.classifier.Classify(cand, sc, rs)
			if f == nil {
				continue
			}
			f.ScanID = job.ID
			f.AccountID = job.AccountID
			out = append(out, *f)
		}
	}
	return out
}

func (o *Orchestrator) complete(ctx context.Context, job *types.ScanJob, findings []types.Finding) {
	waste := pricing.Round2(pricing.TotalWaste(findings))

	completed := o.now().UTC()
	job.Status = types.ScanCompleted
	job.CompletedAt = &completed
	job.FindingsCount = len(findings)
	job.EstimatedMonthlyWaste = waste
	if job.Currency == "" {
		job.Currency = "USD"
	}

	if err := o.store.UpdateScan(*job); err != nil {
		// The findings are committed; only the job record is behind
		o.logger.WithContext(ctx).Error().
			Str("scan_id", job.ID).
			Err(err).
			Msg("finalize scan record failed")
		return
	}

	o.journalRecord(journal.EventScanCompleted, job.ID, "", map[string]any{
		"resources_examined": job.ResourcesExamined,
		"findings":           job.FindingsCount,
		"monthly_waste":      waste,
	})
	o.logger.LogScanCompleted(ctx, job.ID, job.ResourcesExamined, job.FindingsCount, waste)

	attrs := metric.WithAttributes(attribute.String("provider", job.Provider))
	telemetry.ScansCompleted.Add(ctx, 1, attrs)
	telemetry.ResourcesExamined.Add(ctx, int64(job.ResourcesExamined), attrs)
	telemetry.FindingsEmitted.Add(ctx, int64(job.FindingsCount), attrs)
	telemetry.MonthlyWasteUSD.Record(ctx, waste,
		metric.WithAttributes(attribute.String("account_id", job.AccountID)))
}

// fail moves the job to failed. Counters reached before the failure
// stay on the record so partial progress is never silently lost.
func (o *Orchestrator) fail(ctx context.Context, job *types.ScanJob, cause error) {
	completed := o.now().UTC()
	job.Status = types.ScanFailed
	if job.CompletedAt == nil {
		job.CompletedAt = &completed
	}
	job.ErrorSummary = types.TruncateError(cause.Error())

	if err := o.store.UpdateScan(*job); err != nil {
		o.logger.WithContext(ctx).Error().
			Str("scan_id", job.ID).
			Err(err).
			Msg("record scan failure failed")
	}

	event := journal.EventScanFailed
	if errors.Is(cause, ErrCancelled) {
		event = journal.EventScanCancelled
	}
	o.journalRecordError(event, job.ID, cause)
	o.logger.LogScanFailed(ctx, job.ID, cause)
	telemetry.ScansFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", job.Provider)))
}

func (o *Orchestrator) journalRecord(event journal.EventType, scanID, region string, data any) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(event, scanID, region, data); err != nil {
		o.logger.Warn().Err(err).Str("scan_id", scanID).Msg("journal write failed")
	}
}

func (o *Orchestrator) journalRecordError(event journal.EventType, scanID string, cause error) {
	if o.journal == nil {
		return
	}
	if err := o.journal.RecordError(event, scanID, "", nil, cause); err != nil {
		o.logger.Warn().Err(err).Str("scan_id", scanID).Msg("journal write failed")
	}
}
