package types

import "time"

// ScanKind describes why a scan was requested
type ScanKind string

const (
	ScanKindAdHoc         ScanKind = "ad_hoc"
	ScanKindScheduled     ScanKind = "scheduled"
	ScanKindFullInventory ScanKind = "full_inventory"
)

// ScanStatus is the lifecycle state of a scan job
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// MaxErrorSummaryLen bounds the error text stored on a failed scan
const MaxErrorSummaryLen = 512

// ScanJob is one invocation of the engine against one cloud account
type ScanJob struct {
	ID                    string            `json:"id"`
	AccountID             string            `json:"account_id"`
	Provider              string            `json:"provider"`
	Kind                  ScanKind          `json:"kind"`
	Status                ScanStatus        `json:"status"`
	StartedAt             *time.Time        `json:"started_at,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	ResourcesExamined     int               `json:"resources_examined"`
	FindingsCount         int               `json:"findings_count"`
	EstimatedMonthlyWaste float64           `json:"estimated_monthly_waste"`
	Currency              string            `json:"currency"`
	ErrorSummary          string            `json:"error_summary,omitempty"`
	RegionErrors          map[string]string `json:"region_errors,omitempty"`
	TaskHandle            string            `json:"task_handle,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// CanTransitionTo reports whether a status change is allowed.
// Transitions are monotonic: pending -> running -> completed|failed.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	switch s {
	case ScanPending:
		return next == ScanRunning
	case ScanRunning:
		return next == ScanCompleted || next == ScanFailed
	default:
		return false
	}
}

// Terminal reports whether the scan reached a final state
func (j *ScanJob) Terminal() bool {
	return j.Status == ScanCompleted || j.Status == ScanFailed
}

// RecordRegionError notes a per-region failure without failing the scan
func (j *ScanJob) RecordRegionError(region, msg string) {
	if j.RegionErrors == nil {
		j.RegionErrors = make(map[string]string)
	}
	j.RegionErrors[region] = TruncateError(msg)
}

// TruncateError bounds error text so a failed job never stores unbounded output
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorSummaryLen {
		return msg
	}
	return msg[:MaxErrorSummaryLen]
}
