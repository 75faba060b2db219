// Package classifier turns raw provider candidates into findings by
// evaluating each applicable waste scenario against its resolved rule
// set. Classification is pure: no network, no storage, no retries.
package classifier

import (
	"time"

	"github.com/costhound/costhound/pricing"
	"github.com/costhound/costhound/rules"
	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

// scenariosByType maps a candidate type tag to every scenario that can
// fire on it. A candidate type may yield multiple findings, one per
// matching scenario, each a distinct remediation action.
var scenariosByType = map[string][]rules.Scenario{
	types.CandidateEBSVolume:       {rules.EBSUnattached, rules.EBSIdle, rules.EBSLegacyType},
	types.CandidateEC2Instance:     {rules.EC2Stopped, rules.EC2Idle},
	types.CandidateElasticIP:       {rules.EIPUnassociated},
	types.CandidateNATGateway:      {rules.NATGatewayIdle},
	types.CandidateLoadBalancer:    {rules.ELBNoTargets},
	types.CandidateEBSSnapshot:     {rules.EBSSnapshotOld},
	types.CandidateRDSSnapshot:     {rules.RDSSnapshotOld},
	types.CandidateRDSInstance:     {rules.RDSIdle},
	types.CandidateRedshiftCluster: {rules.RedshiftPaused},
	types.CandidateDynamoDBTable:   {rules.DynamoDBOverprovisioned},
	types.CandidateLambdaFunction:  {rules.LambdaStale},
	types.CandidateLogGroup:        {rules.LogGroupNoRetention},
	types.CandidateECRRepository:   {rules.ECRUntaggedImages},
	types.CandidateS3Bucket:        {rules.S3BucketEmpty},
}

// ScenariosFor returns the scenarios that evaluate a candidate type,
// empty when the type is unknown. Unknown types are skipped, never an
// error, so new provider output degrades gracefully.
func ScenariosFor(candidateType string) []rules.Scenario {
	return scenariosByType[candidateType]
}

// Classifier evaluates waste scenarios and prices the matches
type Classifier struct {
	model  *pricing.Model
	logger *telemetry.Logger
	now    func() time.Time
}

// New creates a classifier backed by the given cost model
func New(model *pricing.Model) *Classifier {
	return &Classifier{
		model:  model,
		logger: telemetry.NewLogger("classifier"),
		now:    time.Now,
	}
}

// Classify evaluates one scenario against one candidate under the
// given rule set. It returns nil when the rule is disabled or the
// candidate does not match. The returned finding has no ScanID or
// AccountID; the orchestrator stamps those before persisting.
func (c *Classifier) Classify(cand types.Candidate, sc rules.Scenario, rs rules.RuleSet) *types.Finding {
	if !rs.Enabled {
		return nil
	}

	eval, ok := evaluators[sc]
	if !ok {
		c.logger.Warn().
			Str("scenario", string(sc)).
			Msg("no evaluator for scenario, skipping")
		return nil
	}

	m := eval(cand.Meta, rs)
	if !m.ok {
		return nil
	}

	quote := c.model.EstimateMonthlyCost(cand, sc)
	cost := quote.MonthlyCost
	if cost < 0 {
		cost = 0
	}

	conf := m.confidence
	if m.ratio > 0 {
		conf = confidenceFromRatio(m.ratio)
	}

	now := c.now().UTC()
	return &types.Finding{
		ResourceType: string(sc),
		ResourceID:   cand.ID,
		ResourceName: cand.Name,
		Region:       cand.Region,
		MonthlyCost:  cost,
		Currency:     quote.Currency,
		Status:       types.FindingActive,
		Metadata: types.FindingMetadata{
			Scenario:        string(sc),
			Confidence:      conf,
			Recommendation:  m.recommendation,
			RuleValues:      rs.Values(),
			CostUnestimated: quote.Unestimated,
			CostStale:       quote.Stale,
			PriceSource:     string(quote.Source),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// confidenceFromRatio grades how far past its threshold the resource
// is. A ratio of 1.0 means it barely crossed the line.
func confidenceFromRatio(ratio float64) types.Confidence {
	switch {
	case ratio >= 3.0:
		return types.ConfidenceCritical
	case ratio >= 2.0:
		return types.ConfidenceHigh
	case ratio >= 1.5:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
