// Package rules holds the detection rule registry: the closed set of
// waste scenarios the engine knows about, their system-default
// thresholds, and per-owner overrides.
package rules

// Scenario identifies one specific waste pattern. The set is closed so
// an unknown or misspelled type is caught at validation time instead of
// silently matching nothing.
type Scenario string

const (
	// Storage volume family
	EBSUnattached Scenario = "ebs_unattached"
	EBSIdle       Scenario = "ebs_idle"
	EBSLegacyType Scenario = "ebs_legacy_type"

	// Compute family
	EC2Stopped Scenario = "ec2_stopped"
	EC2Idle    Scenario = "ec2_idle"

	// Network family
	EIPUnassociated Scenario = "eip_unassociated"
	NATGatewayIdle  Scenario = "nat_gateway_idle"
	ELBNoTargets    Scenario = "elb_no_targets"

	// Snapshot family
	EBSSnapshotOld Scenario = "ebs_snapshot_old"
	RDSSnapshotOld Scenario = "rds_snapshot_old"

	// Database family
	RDSIdle                 Scenario = "rds_idle"
	RedshiftPaused          Scenario = "redshift_paused"
	DynamoDBOverprovisioned Scenario = "dynamodb_overprovisioned"

	// Serverless family
	LambdaStale Scenario = "lambda_stale"

	// Logs family
	LogGroupNoRetention Scenario = "log_group_no_retention"

	// Registry family
	ECRUntaggedImages Scenario = "ecr_untagged_images"

	// Object storage family
	S3BucketEmpty Scenario = "s3_bucket_empty"
)

// Family is a UX-level grouping of related scenarios. It drives
// basic/expert display modes only; rule resolution always keys on the
// precise scenario string.
type Family string

const (
	FamilyStorageVolume Family = "storage_volume"
	FamilyCompute       Family = "compute"
	FamilyNetwork       Family = "network"
	FamilySnapshot      Family = "snapshot"
	FamilyDatabase      Family = "database"
	FamilyServerless    Family = "serverless"
	FamilyLogs          Family = "logs"
	FamilyRegistry      Family = "registry"
	FamilyObjectStorage Family = "object_storage"
)

var families = map[Scenario]Family{
	EBSUnattached:           FamilyStorageVolume,
	EBSIdle:                 FamilyStorageVolume,
	EBSLegacyType:           FamilyStorageVolume,
	EC2Stopped:              FamilyCompute,
	EC2Idle:                 FamilyCompute,
	EIPUnassociated:         FamilyNetwork,
	NATGatewayIdle:          FamilyNetwork,
	ELBNoTargets:            FamilyNetwork,
	EBSSnapshotOld:          FamilySnapshot,
	RDSSnapshotOld:          FamilySnapshot,
	RDSIdle:                 FamilyDatabase,
	RedshiftPaused:          FamilyDatabase,
	DynamoDBOverprovisioned: FamilyDatabase,
	LambdaStale:             FamilyServerless,
	LogGroupNoRetention:     FamilyLogs,
	ECRUntaggedImages:       FamilyRegistry,
	S3BucketEmpty:           FamilyObjectStorage,
}

// Valid reports whether s is a known scenario
func (s Scenario) Valid() bool {
	_, ok := families[s]
	return ok
}

// Family returns the UX grouping for a scenario
func (s Scenario) Family() Family {
	return families[s]
}

// AllScenarios returns every known scenario in stable order
func AllScenarios() []Scenario {
	return []Scenario{
		EBSUnattached, EBSIdle, EBSLegacyType,
		EC2Stopped, EC2Idle,
		EIPUnassociated, NATGatewayIdle, ELBNoTargets,
		EBSSnapshotOld, RDSSnapshotOld,
		RDSIdle, RedshiftPaused, DynamoDBOverprovisioned,
		LambdaStale,
		LogGroupNoRetention,
		ECRUntaggedImages,
		S3BucketEmpty,
	}
}

// ScenariosForFamily returns the scenarios grouped under a family
func ScenariosForFamily(f Family) []Scenario {
	var out []Scenario
	for _, s := range AllScenarios() {
		if s.Family() == f {
			out = append(out, s)
		}
	}
	return out
}
