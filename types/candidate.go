package types

import "time"

// Candidate type tags emitted by provider adapters
const (
	CandidateEBSVolume       = "ebs_volume"
	CandidateEC2Instance     = "ec2_instance"
	CandidateElasticIP       = "elastic_ip"
	CandidateNATGateway      = "nat_gateway"
	CandidateEBSSnapshot     = "ebs_snapshot"
	CandidateRDSInstance     = "rds_instance"
	CandidateRDSSnapshot     = "rds_snapshot"
	CandidateRedshiftCluster = "redshift_cluster"
	CandidateDynamoDBTable   = "dynamodb_table"
	CandidateLambdaFunction  = "lambda_function"
	CandidateLogGroup        = "log_group"
	CandidateECRRepository   = "ecr_repository"
	CandidateS3Bucket        = "s3_bucket"
	CandidateLoadBalancer    = "load_balancer"
)

// Candidate is a raw, unclassified resource observation produced by a
// provider adapter during a region scan. It is never persisted on its
// own; the classifier consumes it immediately.
type Candidate struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Region   string            `json:"region"`
	Provider string            `json:"provider"`
	Meta     CandidateMetadata `json:"meta"`
}

// CandidateMetadata is structured metadata extracted from provider
// responses. Only the fields relevant to a candidate's type are set.
type CandidateMetadata struct {
	// Common
	State        string    `json:"state,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
	LastAccessed time.Time `json:"last_accessed,omitempty"`
	IdleDays     int       `json:"idle_days,omitempty"`

	// Storage
	SizeGB     int64  `json:"size_gb,omitempty"`
	VolumeType string `json:"volume_type,omitempty"`
	IOPS       int32  `json:"iops,omitempty"`
	Attached   bool   `json:"attached,omitempty"`
	AttachedTo string `json:"attached_to,omitempty"`
	Encrypted  bool   `json:"encrypted,omitempty"`

	// Network
	Associated     bool `json:"associated,omitempty"`
	HealthyTargets int  `json:"healthy_targets,omitempty"`
	TargetGroups   int  `json:"target_groups,omitempty"`

	// Compute
	InstanceType string `json:"instance_type,omitempty"`
	MemoryMB     int32  `json:"memory_mb,omitempty"`
	CodeSizeB    int64  `json:"code_size_bytes,omitempty"`
	Runtime      string `json:"runtime,omitempty"`

	// Database
	Engine             string `json:"engine,omitempty"`
	InstanceClass      string `json:"instance_class,omitempty"`
	MultiAZ            bool   `json:"multi_az,omitempty"`
	AllocatedStorageGB int32  `json:"allocated_storage_gb,omitempty"`
	NodeCount          int32  `json:"node_count,omitempty"`
	ReadCapacity       int64  `json:"read_capacity,omitempty"`
	WriteCapacity      int64  `json:"write_capacity,omitempty"`

	// Object/log/image storage
	StoredBytes        int64 `json:"stored_bytes,omitempty"`
	ObjectCount        int64 `json:"object_count,omitempty"`
	RetentionDays      int32 `json:"retention_days,omitempty"`
	ImageCount         int32 `json:"image_count,omitempty"`
	UntaggedImageCount int32 `json:"untagged_image_count,omitempty"`

	// Metric summaries (best effort, zero when unavailable)
	CPUUtilizationP95 float64 `json:"cpu_utilization_p95,omitempty"`
	ConnectionsP95    float64 `json:"connections_p95,omitempty"`
	UtilizationPct    float64 `json:"utilization_pct,omitempty"`
	HasMetrics        bool    `json:"has_metrics,omitempty"`
}

// AgeDays returns whole days since the candidate was created, zero
// when the creation time is unknown.
func (m CandidateMetadata) AgeDays() int {
	if m.CreatedAt.IsZero() {
		return 0
	}
	return int(time.Since(m.CreatedAt).Hours() / 24)
}

// DaysSinceModified returns whole days since last modification, zero
// when unknown.
func (m CandidateMetadata) DaysSinceModified() int {
	if m.LastModified.IsZero() {
		return 0
	}
	return int(time.Since(m.LastModified).Hours() / 24)
}
