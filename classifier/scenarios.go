package classifier

import (
	"github.com/costhound/costhound/rules"
	"github.com/costhound/costhound/types"
)

// match is the outcome of one scenario predicate. ratio is how far
// past the threshold the candidate is (>= 1 when matched) and drives
// confidence grading; predicates without a meaningful ratio set a
// fixed confidence instead.
type match struct {
	ok             bool
	ratio          float64
	confidence     types.Confidence
	recommendation string
}

type evaluator func(m types.CandidateMetadata, rs rules.RuleSet) match

var evaluators = map[rules.Scenario]evaluator{
	rules.EBSUnattached:           evalEBSUnattached,
	rules.EBSIdle:                 evalEBSIdle,
	rules.EBSLegacyType:           evalEBSLegacyType,
	rules.EC2Stopped:              evalEC2Stopped,
	rules.EC2Idle:                 evalEC2Idle,
	rules.EIPUnassociated:         evalEIPUnassociated,
	rules.NATGatewayIdle:          evalNATGatewayIdle,
	rules.ELBNoTargets:            evalELBNoTargets,
	rules.EBSSnapshotOld:          evalEBSSnapshotOld,
	rules.RDSSnapshotOld:          evalRDSSnapshotOld,
	rules.RDSIdle:                 evalRDSIdle,
	rules.RedshiftPaused:          evalRedshiftPaused,
	rules.DynamoDBOverprovisioned: evalDynamoDBOverprovisioned,
	rules.LambdaStale:             evalLambdaStale,
	rules.LogGroupNoRetention:     evalLogGroupNoRetention,
	rules.ECRUntaggedImages:       evalECRUntaggedImages,
	rules.S3BucketEmpty:           evalS3BucketEmpty,
}

func evalEBSUnattached(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.Attached || m.IdleDays < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.IdleDays, rs.MinIdleDays),
		recommendation: "snapshot the volume and delete it, or reattach it",
	}
}

func evalEBSIdle(m types.CandidateMetadata, rs rules.RuleSet) match {
	if !m.Attached || m.IdleDays < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.IdleDays, rs.MinIdleDays),
		recommendation: "volume shows no I/O, snapshot and detach it",
	}
}

func evalEBSLegacyType(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.VolumeType != "gp2" || m.SizeGB < rs.MinSizeGB {
		return match{}
	}
	return match{
		ok:             true,
		confidence:     types.ConfidenceMedium,
		recommendation: "migrate gp2 volume to gp3 for the same performance at lower cost",
	}
}

func evalEC2Stopped(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.State != "stopped" || m.IdleDays < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.IdleDays, rs.MinIdleDays),
		recommendation: "terminate the instance or create an AMI before releasing it",
	}
}

func evalEC2Idle(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.State != "running" || !m.HasMetrics {
		return match{}
	}
	if m.CPUUtilizationP95 > rs.CPUThresholdPct || m.AgeDays() < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          thresholdRatio(rs.CPUThresholdPct, m.CPUUtilizationP95),
		recommendation: "downsize the instance or stop it outside business hours",
	}
}

func evalEIPUnassociated(m types.CandidateMetadata, _ rules.RuleSet) match {
	if m.Associated {
		return match{}
	}
	return match{
		ok:             true,
		confidence:     types.ConfidenceHigh,
		recommendation: "release the unassociated Elastic IP",
	}
}

func evalNATGatewayIdle(m types.CandidateMetadata, rs rules.RuleSet) match {
	if !m.HasMetrics || m.ConnectionsP95 > 0 || m.AgeDays() < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.AgeDays(), rs.MinIdleDays),
		recommendation: "gateway carries no traffic, delete it",
	}
}

func evalELBNoTargets(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.HealthyTargets > 0 || m.AgeDays() < rs.MinAgeDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.AgeDays(), rs.MinAgeDays),
		recommendation: "load balancer has no healthy targets, delete it",
	}
}

func evalEBSSnapshotOld(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.AgeDays() < rs.MinAgeDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.AgeDays(), rs.MinAgeDays),
		recommendation: "delete or archive the snapshot if no longer needed for recovery",
	}
}

func evalRDSSnapshotOld(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.AgeDays() < rs.MinAgeDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.AgeDays(), rs.MinAgeDays),
		recommendation: "delete the manual snapshot or export it to S3",
	}
}

func evalRDSIdle(m types.CandidateMetadata, rs rules.RuleSet) match {
	if !m.HasMetrics || m.ConnectionsP95 > 0 {
		return match{}
	}
	if m.CPUUtilizationP95 > rs.CPUThresholdPct || m.AgeDays() < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          thresholdRatio(rs.CPUThresholdPct, m.CPUUtilizationP95),
		recommendation: "database has no connections, snapshot it and stop or delete it",
	}
}

func evalRedshiftPaused(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.State != "paused" || m.IdleDays < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.IdleDays, rs.MinIdleDays),
		recommendation: "cluster has been paused for a while, snapshot and delete it",
	}
}

func evalDynamoDBOverprovisioned(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.ReadCapacity+m.WriteCapacity == 0 || !m.HasMetrics {
		return match{}
	}
	if m.UtilizationPct > rs.UtilizationThresholdPct {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          thresholdRatio(rs.UtilizationThresholdPct, m.UtilizationPct),
		recommendation: "lower provisioned capacity or switch the table to on-demand",
	}
}

func evalLambdaStale(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.IdleDays < rs.MinIdleDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.IdleDays, rs.MinIdleDays),
		recommendation: "function has not been invoked recently, delete it or archive its code",
	}
}

func evalLogGroupNoRetention(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.RetentionDays != 0 {
		return match{}
	}
	minGB := rs.MinSizeGB
	if minGB <= 0 {
		minGB = defaultThreshold(rules.LogGroupNoRetention).MinSizeGB
	}
	gb := float64(m.StoredBytes) / (1 << 30)
	if minGB <= 0 || gb < float64(minGB) {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          gb / float64(minGB),
		recommendation: "set a retention policy on the log group",
	}
}

func evalECRUntaggedImages(m types.CandidateMetadata, rs rules.RuleSet) match {
	minImages := rs.MinUntaggedImages
	if minImages <= 0 {
		minImages = defaultThreshold(rules.ECRUntaggedImages).MinUntaggedImages
	}
	if minImages <= 0 || int(m.UntaggedImageCount) < minImages {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          float64(m.UntaggedImageCount) / float64(minImages),
		recommendation: "add a lifecycle policy expiring untagged images",
	}
}

func evalS3BucketEmpty(m types.CandidateMetadata, rs rules.RuleSet) match {
	if m.ObjectCount > 0 || m.AgeDays() < rs.MinAgeDays {
		return match{}
	}
	return match{
		ok:             true,
		ratio:          daysRatio(m.AgeDays(), rs.MinAgeDays),
		recommendation: "bucket is empty, delete it",
	}
}

// defaultThreshold backfills thresholds an override left at zero, so
// an owner enabling a scenario without tuning it keeps the system
// floor instead of matching everything.
func defaultThreshold(sc rules.Scenario) rules.RuleSet {
	rs, _ := rules.Default(sc)
	return rs
}

// daysRatio guards against a zero threshold, which would otherwise
// make every match critical.
func daysRatio(actual, threshold int) float64 {
	if threshold <= 0 {
		return 1
	}
	return float64(actual) / float64(threshold)
}

// thresholdRatio inverts utilization style thresholds: the further the
// observed value sits below the limit, the higher the ratio.
func thresholdRatio(threshold, observed float64) float64 {
	if threshold <= 0 {
		return 1
	}
	if observed < 0.1 {
		observed = 0.1
	}
	return threshold / observed
}
