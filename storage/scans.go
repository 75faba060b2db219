package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/costhound/costhound/types"
)

// ErrScanNotFound is returned when a scan id does not exist
var ErrScanNotFound = fmt.Errorf("scan not found")

// CreateScan stores a new scan job; the id must not already exist
func (s *Store) CreateScan(job types.ScanJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScans)
		if bucket.Get([]byte(job.ID)) != nil {
			return fmt.Errorf("scan %s already exists", job.ID)
		}
		value, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(job.ID), value)
	})
	if err != nil {
		return &PersistenceError{Op: "create scan", Err: err}
	}
	return nil
}

// GetScan loads one scan job by id
func (s *Store) GetScan(id string) (*types.ScanJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var job *types.ScanJob
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketScans).Get([]byte(id))
		if value == nil {
			return ErrScanNotFound
		}
		job = &types.ScanJob{}
		return json.Unmarshal(value, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateScan replaces an existing scan job record
func (s *Store) UpdateScan(job types.ScanJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.UpdatedAt = time.Now()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScans)
		if bucket.Get([]byte(job.ID)) == nil {
			return ErrScanNotFound
		}
		value, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(job.ID), value)
	})
	if err != nil {
		return &PersistenceError{Op: "update scan", Err: err}
	}
	return nil
}

// ListScans returns every scan for an account, newest first
func (s *Store) ListScans(accountID string) ([]types.ScanJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []types.ScanJob
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScans).ForEach(func(k, v []byte) error {
			var job types.ScanJob
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if accountID == "" || job.AccountID == accountID {
				jobs = append(jobs, job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortScansNewestFirst(jobs)
	return jobs, nil
}

// DeleteScan removes a scan job and cascades to its findings. This is
// an administrative action; the engine itself never deletes scans.
func (s *Store) DeleteScan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removedKeys [][]byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		scans := tx.Bucket(bucketScans)
		if scans.Get([]byte(id)) == nil {
			return ErrScanNotFound
		}
		if err := scans.Delete([]byte(id)); err != nil {
			return err
		}

		findings := tx.Bucket(bucketFindings)
		prefix := []byte(id + "/")
		c := findings.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			removedKeys = append(removedKeys, append([]byte(nil), k...))
		}
		for _, k := range removedKeys {
			if err := findings.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "delete scan", Err: err}
	}

	for _, k := range removedKeys {
		s.dropIndexEntry(string(k))
	}
	return nil
}

func sortScansNewestFirst(jobs []types.ScanJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
