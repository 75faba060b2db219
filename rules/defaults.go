package rules

// systemDefaults are the built-in thresholds per scenario. They are
// immutable constants: Default always hands out a copy, never a
// reference into this map.
var systemDefaults = map[Scenario]RuleSet{
	EBSUnattached: {Enabled: true, MinIdleDays: 7},
	EBSIdle:       {Enabled: true, MinIdleDays: 30},
	EBSLegacyType: {Enabled: true, MinSizeGB: 1},

	EC2Stopped: {Enabled: true, MinIdleDays: 14},
	EC2Idle:    {Enabled: true, MinIdleDays: 14, CPUThresholdPct: 5},

	EIPUnassociated: {Enabled: true},
	NATGatewayIdle:  {Enabled: true, MinIdleDays: 14},
	ELBNoTargets:    {Enabled: true, MinAgeDays: 7},

	EBSSnapshotOld: {Enabled: true, MinAgeDays: 90},
	RDSSnapshotOld: {Enabled: true, MinAgeDays: 30},

	RDSIdle:                 {Enabled: true, MinIdleDays: 14, CPUThresholdPct: 5},
	RedshiftPaused:          {Enabled: true, MinIdleDays: 7},
	DynamoDBOverprovisioned: {Enabled: true, UtilizationThresholdPct: 10},

	LambdaStale: {Enabled: true, MinIdleDays: 90},

	LogGroupNoRetention: {Enabled: true, MinSizeGB: 1},

	ECRUntaggedImages: {Enabled: true, MinUntaggedImages: 10},

	S3BucketEmpty: {Enabled: true, MinAgeDays: 90},
}

// Default returns the system default rule set for a scenario. The
// second return is false when no default exists, which tells the
// classifier to skip that type rather than fail.
func Default(s Scenario) (RuleSet, bool) {
	rs, ok := systemDefaults[s]
	if !ok {
		return RuleSet{}, false
	}
	return copyRuleSet(rs), true
}

func copyRuleSet(rs RuleSet) RuleSet {
	out := rs
	if rs.Extra != nil {
		out.Extra = make(map[string]string, len(rs.Extra))
		for k, v := range rs.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
