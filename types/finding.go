package types

import "time"

// FindingStatus tracks what the user decided to do about a finding.
// The engine only ever creates findings as active; everything after
// that is external user action.
type FindingStatus string

const (
	FindingActive            FindingStatus = "active"
	FindingIgnored           FindingStatus = "ignored"
	FindingMarkedForDeletion FindingStatus = "marked_for_deletion"
	FindingDeleted           FindingStatus = "deleted"
)

// Confidence grades how far past its threshold a resource is
type Confidence string

const (
	ConfidenceCritical Confidence = "critical"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// Finding is the durable output of classification: one resource
// matching one waste scenario. The same physical resource may appear
// under several scenarios; each is a distinct remediation action.
type Finding struct {
	ID           string          `json:"id"`
	ScanID       string          `json:"scan_id"`
	AccountID    string          `json:"account_id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	ResourceName string          `json:"resource_name,omitempty"`
	Region       string          `json:"region"`
	MonthlyCost  float64         `json:"estimated_monthly_cost"`
	Currency     string          `json:"currency"`
	Status       FindingStatus   `json:"status"`
	Metadata     FindingMetadata `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FindingMetadata carries the audit trail for a finding: which
// scenario fired, how confident we are, and the rule values that
// triggered it.
type FindingMetadata struct {
	Scenario        string            `json:"scenario"`
	Confidence      Confidence        `json:"confidence"`
	Recommendation  string            `json:"recommendation,omitempty"`
	RuleValues      map[string]string `json:"rule_values,omitempty"`
	CostUnestimated bool              `json:"cost_unestimated,omitempty"`
	CostStale       bool              `json:"cost_stale,omitempty"`
	PriceSource     string            `json:"price_source,omitempty"`
}
