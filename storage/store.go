// Package storage persists scan jobs, findings, rule overrides and
// pricing entries in a single embedded bbolt database, with an
// in-memory btree index for cost-ordered finding queries.
package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/costhound/costhound/telemetry"
)

// Bucket names in bbolt
var (
	bucketScans    = []byte("scans")
	bucketFindings = []byte("findings")
	bucketRules    = []byte("rules")
	bucketPricing  = []byte("pricing")
)

// PersistenceError wraps a failed write. The orchestrator treats it as
// job-fatal.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the bbolt-backed persistence layer
type Store struct {
	mu sync.RWMutex

	db *bbolt.DB

	// Cost-ordered finding index for top-N queries
	costIndex *btree.BTreeG[*costIndexEntry]

	dir    string
	logger *telemetry.Logger
}

// Open creates or opens the database in the given directory
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "costhound.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketScans, bucketFindings, bucketRules, bucketPricing} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:        db,
		costIndex: btree.NewG[*costIndexEntry](32, costIndexLess),
		dir:       dir,
		logger:    telemetry.NewLogger("storage"),
	}

	if err := s.rebuildCostIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to rebuild cost index: %w", err)
	}

	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns operational counters for observability
func (s *Store) Stats() (scanCount, findingCount int, dbSizeBytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_ = s.db.View(func(tx *bbolt.Tx) error {
		scanCount = tx.Bucket(bucketScans).Stats().KeyN
		findingCount = tx.Bucket(bucketFindings).Stats().KeyN
		dbSizeBytes = tx.Size()
		return nil
	})
	return scanCount, findingCount, dbSizeBytes
}
