package storage

import (
	"github.com/costhound/costhound/pricing"
	"github.com/costhound/costhound/types"
)

// ScanStore persists scan job lifecycle state
type ScanStore interface {
	CreateScan(job types.ScanJob) error
	GetScan(id string) (*types.ScanJob, error)
	UpdateScan(job types.ScanJob) error
	ListScans(accountID string) ([]types.ScanJob, error)
	DeleteScan(id string) error
}

// FindingStore persists and queries classification output
type FindingStore interface {
	PutFindingsBatch(findings []types.Finding) error
	GetFinding(id string) (*types.Finding, error)
	ListFindings(q FindingFilter) ([]types.Finding, error)
	UpdateFindingStatus(id string, status types.FindingStatus) error
	TopCostFindings(accountID string, limit int) ([]types.Finding, error)
}

// PricingStore persists cached unit prices
type PricingStore interface {
	GetPricingEntry(provider, service, region string) (pricing.Entry, bool, error)
	PutPricingEntry(e pricing.Entry) error
}

// StorageStats provides operational metrics
type StorageStats interface {
	Stats() (scanCount, findingCount int, dbSizeBytes int64)
}

// Lifecycle manages storage lifecycle
type Lifecycle interface {
	Close() error
}

// Interface compliance checks
var (
	_ ScanStore    = (*Store)(nil)
	_ FindingStore = (*Store)(nil)
	_ PricingStore = (*Store)(nil)
	_ StorageStats = (*Store)(nil)
	_ Lifecycle    = (*Store)(nil)
)
