package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costhound/costhound/provider"
	"github.com/costhound/costhound/rules"
	"github.com/costhound/costhound/storage"
	"github.com/costhound/costhound/types"
)

// fakeAdapter is the registered test cloud
type fakeAdapter struct {
	regions    []string
	candidates map[string][]types.Candidate
}

func (f *fakeAdapter) Name() string                                  { return "fakecloud" }
func (f *fakeAdapter) ValidateCredentials(context.Context) error     { return nil }
func (f *fakeAdapter) ListRegions(context.Context) ([]string, error) { return f.regions, nil }
func (f *fakeAdapter) ScanRegion(_ context.Context, region string) ([]types.Candidate, error) {
	return f.candidates[region], nil
}

var (
	registerOnce sync.Once
	currentMu    sync.Mutex
	current      *fakeAdapter
)

func useAdapter(a *fakeAdapter) {
	registerOnce.Do(func() {
		provider.Register("fakecloud", func(context.Context, provider.Credentials) (provider.Adapter, error) {
			currentMu.Lock()
			defer currentMu.Unlock()
			return current, nil
		})
	})
	currentMu.Lock()
	current = a
	currentMu.Unlock()
}

type staticResolver struct {
	creds provider.Credentials
}

func (r staticResolver) Resolve(context.Context, string) (provider.Credentials, error) {
	return r.creds, nil
}

func testEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	resolver := staticResolver{creds: provider.Credentials{Provider: "fakecloud"}}
	e := New(store, store, resolver, nil, Config{Provider: "fakecloud"})
	return e, store
}

func orphanVolume(id, region string) types.Candidate {
	return types.Candidate{
		Type:     types.CandidateEBSVolume,
		ID:       id,
		Region:   region,
		Provider: "fakecloud",
		Meta:     types.CandidateMetadata{Attached: false, IdleDays: 30, SizeGB: 100, VolumeType: "gp3"},
	}
}

func TestCreateScanValidation(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	_, err := e.CreateScan(ctx, "", types.ScanKindAdHoc)
	assert.Error(t, err)

	_, err = e.CreateScan(ctx, "acct-1", types.ScanKind("weird"))
	assert.Error(t, err)

	job, err := e.CreateScan(ctx, "acct-1", types.ScanKindAdHoc)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, types.ScanPending, job.Status)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestScanEndToEnd(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	useAdapter(&fakeAdapter{
		regions: []string{"us-east-1", "us-west-2"},
		candidates: map[string][]types.Candidate{
			"us-east-1": {orphanVolume("vol-1", "us-east-1")},
			"us-west-2": {orphanVolume("vol-2", "us-west-2")},
		},
	})

	job, err := e.CreateScan(ctx, "acct-1", types.ScanKindFullInventory)
	require.NoError(t, err)
	require.NoError(t, e.RunScan(ctx, job.ID))

	done, err := e.GetScan(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ScanCompleted, done.Status)
	assert.Equal(t, 2, done.ResourcesExamined)
	assert.Equal(t, 2, done.FindingsCount)
	// Two 100GB gp3 volumes at the fallback $0.08/GB-month
	assert.Equal(t, 16.0, done.EstimatedMonthlyWaste)

	findings, err := e.ListFindings(ctx, storage.FindingFilter{ScanID: job.ID})
	require.NoError(t, err)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, job.ID, f.ScanID)
		assert.Equal(t, "acct-1", f.AccountID)
		assert.Equal(t, string(rules.EBSUnattached), f.ResourceType)
	}

	stats, err := e.GetStatistics(ctx, job.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFindings)
	assert.Equal(t, 16.0, stats.TotalMonthlyCost)
	assert.Equal(t, 192.0, stats.TotalAnnualCost)

	top, err := e.GetTopCostFindings(ctx, "acct-1", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 8.0, top[0].MonthlyCost)
}

func TestRuleOverrideChangesScanOutcome(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	useAdapter(&fakeAdapter{
		regions: []string{"us-east-1"},
		candidates: map[string][]types.Candidate{
			"us-east-1": {orphanVolume("vol-1", "us-east-1")},
		},
	})

	// Raise the idle threshold past the candidate's 30 days
	require.NoError(t, e.UpsertRule(ctx, "acct-1", string(rules.EBSUnattached),
		rules.RuleSet{Enabled: true, MinIdleDays: 60}))

	job, err := e.CreateScan(ctx, "acct-1", types.ScanKindAdHoc)
	require.NoError(t, err)
	require.NoError(t, e.RunScan(ctx, job.ID))

	done, _ := e.GetScan(ctx, job.ID)
	assert.Equal(t, types.ScanCompleted, done.Status)
	assert.Equal(t, 0, done.FindingsCount)

	// Back to the 7 day default, the volume matches again
	require.NoError(t, e.ResetRule(ctx, "acct-1", ""))

	job2, err := e.CreateScan(ctx, "acct-1", types.ScanKindAdHoc)
	require.NoError(t, err)
	require.NoError(t, e.RunScan(ctx, job2.ID))

	done2, _ := e.GetScan(ctx, job2.ID)
	assert.Equal(t, 1, done2.FindingsCount)
}

func TestUpsertRuleRejectsUnknownScenario(t *testing.T) {
	e, _ := testEngine(t)
	err := e.UpsertRule(context.Background(), "acct-1", "made_up", rules.RuleSet{Enabled: true})
	assert.Error(t, err)
}

func TestSubmitScanRecordsHandle(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	useAdapter(&fakeAdapter{regions: []string{"us-east-1"}})

	job, err := e.CreateScan(ctx, "acct-1", types.ScanKindScheduled)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Queue().Run(runCtx) }()

	handle, err := e.SubmitScan(ctx, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	// The worker owns the lifecycle from here; wait for terminal state
	require.Eventually(t, func() bool {
		got, err := e.GetScan(ctx, job.ID)
		return err == nil && got.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	got, err := e.GetScan(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, handle, got.TaskHandle)
	assert.Equal(t, types.ScanCompleted, got.Status)
}

func TestSubmitScanRejectsNonPending(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	useAdapter(&fakeAdapter{regions: []string{"us-east-1"}})

	job, err := e.CreateScan(ctx, "acct-1", types.ScanKindAdHoc)
	require.NoError(t, err)
	require.NoError(t, e.RunScan(ctx, job.ID))

	_, err = e.SubmitScan(ctx, job.ID)
	assert.Error(t, err)
}
