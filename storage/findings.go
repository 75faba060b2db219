package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"

	"github.com/costhound/costhound/types"
)

// costIndexEntry orders findings by account, then cost descending,
// then creation time ascending so ties resolve to the earliest finding.
type costIndexEntry struct {
	AccountID string
	Cost      float64
	CreatedAt time.Time
	Key       string
}

func costIndexLess(a, b *costIndexEntry) bool {
	if a.AccountID != b.AccountID {
		return a.AccountID < b.AccountID
	}
	if a.Cost != b.Cost {
		return a.Cost > b.Cost
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Key < b.Key
}

// findingKey is (scan, resource type, resource id): unique per scan,
// so re-persisting the same finding is an idempotent upsert.
func findingKey(f types.Finding) string {
	return fmt.Sprintf("%s/%s/%s", f.ScanID, f.ResourceType, f.ResourceID)
}

// PutFindingsBatch upserts a batch of findings in one transaction
func (s *Store) PutFindingsBatch(findings []types.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFindings)
		for i := range findings {
			findings[i].ID = findingKey(findings[i])
			value, err := json.Marshal(findings[i])
			if err != nil {
				return fmt.Errorf("marshal finding %s: %w", findings[i].ID, err)
			}
			if err := bucket.Put([]byte(findings[i].ID), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "put findings batch", Err: err}
	}

	for _, f := range findings {
		// The index is keyed by cost, so a re-upsert with a new cost
		// must shed the old entry first
		s.dropIndexEntry(f.ID)
		s.costIndex.ReplaceOrInsert(&costIndexEntry{
			AccountID: f.AccountID,
			Cost:      f.MonthlyCost,
			CreatedAt: f.CreatedAt,
			Key:       f.ID,
		})
	}
	return nil
}

// FindingFilter narrows ListFindings results
type FindingFilter struct {
	ScanID    string
	AccountID string
	Type      string
	Status    types.FindingStatus
	MinCost   float64
	Limit     int
	Offset    int
}

func (q FindingFilter) matches(f types.Finding) bool {
	if q.AccountID != "" && f.AccountID != q.AccountID {
		return false
	}
	if q.Type != "" && f.ResourceType != q.Type {
		return false
	}
	if q.Status != "" && f.Status != q.Status {
		return false
	}
	if f.MonthlyCost < q.MinCost {
		return false
	}
	return true
}

// ListFindings returns findings matching the filter in key order,
// applying offset/limit pagination after filtering.
func (s *Store) ListFindings(q FindingFilter) ([]types.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Finding
	skipped := 0

	collect := func(v []byte) error {
		var f types.Finding
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		if !q.matches(f) {
			return nil
		}
		if skipped < q.Offset {
			skipped++
			return nil
		}
		if q.Limit > 0 && len(out) >= q.Limit {
			return errListDone
		}
		out = append(out, f)
		return nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFindings)
		if q.ScanID != "" {
			prefix := []byte(q.ScanID + "/")
			c := bucket.Cursor()
			for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
				if err := collect(v); err != nil {
					return err
				}
			}
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			return collect(v)
		})
	})
	if err != nil && err != errListDone {
		return nil, err
	}
	return out, nil
}

var errListDone = fmt.Errorf("list done")

// GetFinding loads one finding by its composite id
func (s *Store) GetFinding(id string) (*types.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f *types.Finding
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketFindings).Get([]byte(id))
		if value == nil {
			return fmt.Errorf("finding %s not found", id)
		}
		f = &types.Finding{}
		return json.Unmarshal(value, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFindingStatus records a user decision about a finding. The
// engine never calls this after creation; it exists for the external
// management surface.
func (s *Store) UpdateFindingStatus(id string, status types.FindingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f types.Finding
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFindings)
		value := bucket.Get([]byte(id))
		if value == nil {
			return fmt.Errorf("finding %s not found", id)
		}
		if err := json.Unmarshal(value, &f); err != nil {
			return err
		}
		f.Status = status
		f.UpdatedAt = time.Now()
		updated, err := json.Marshal(f)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return &PersistenceError{Op: "update finding status", Err: err}
	}

	// Deleted findings leave the cost ranking; restoring one re-enters it
	if status == types.FindingDeleted {
		s.dropIndexEntry(id)
	} else {
		s.costIndex.ReplaceOrInsert(&costIndexEntry{
			AccountID: f.AccountID,
			Cost:      f.MonthlyCost,
			CreatedAt: f.CreatedAt,
			Key:       id,
		})
	}
	return nil
}

// TopCostFindings returns up to limit findings for an account, cost
// descending with creation-time tiebreak, straight from the btree
// index.
func (s *Store) TopCostFindings(accountID string, limit int) ([]types.Finding, error) {
	s.mu.RLock()

	pivot := &costIndexEntry{AccountID: accountID, Cost: math.Inf(1)}
	var keys []string
	s.costIndex.AscendGreaterOrEqual(pivot, func(e *costIndexEntry) bool {
		if e.AccountID != accountID {
			return false
		}
		keys = append(keys, e.Key)
		return limit <= 0 || len(keys) < limit
	})
	s.mu.RUnlock()

	findings := make([]types.Finding, 0, len(keys))
	for _, key := range keys {
		f, err := s.GetFinding(key)
		if err != nil {
			return nil, err
		}
		findings = append(findings, *f)
	}
	return findings, nil
}

// dropIndexEntry removes a finding from the cost index by key
func (s *Store) dropIndexEntry(key string) {
	var found *costIndexEntry
	s.costIndex.Ascend(func(e *costIndexEntry) bool {
		if e.Key == key {
			found = e
			return false
		}
		return true
	})
	if found != nil {
		s.costIndex.Delete(found)
	}
}

// rebuildCostIndex scans the findings bucket at startup. Deleted
// findings stay in the bucket for audit but never rank.
func (s *Store) rebuildCostIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFindings).ForEach(func(k, v []byte) error {
			var f types.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			if f.Status == types.FindingDeleted {
				return nil
			}
			s.costIndex.ReplaceOrInsert(&costIndexEntry{
				AccountID: f.AccountID,
				Cost:      f.MonthlyCost,
				CreatedAt: f.CreatedAt,
				Key:       string(k),
			})
			return nil
		})
	})
}
