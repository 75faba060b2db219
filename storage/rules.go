package storage

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// Rule overrides are stored as opaque JSON keyed by owner/scenario so
// the store stays ignorant of rule schemas. This satisfies
// rules.OverrideStore.

func ruleKey(ownerID, scenario string) []byte {
	return []byte(ownerID + "/" + scenario)
}

// GetRuleOverride loads one owner's override for a scenario
func (s *Store) GetRuleOverride(ownerID, scenario string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRules).Get(ruleKey(ownerID, scenario))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// PutRuleOverride creates or replaces exactly one override row
func (s *Store) PutRuleOverride(ownerID, scenario string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRules).Put(ruleKey(ownerID, scenario), value)
	})
	if err != nil {
		return &PersistenceError{Op: "put rule override", Err: err}
	}
	return nil
}

// DeleteRuleOverride removes one override; missing rows are a no-op
func (s *Store) DeleteRuleOverride(ownerID, scenario string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRules).Delete(ruleKey(ownerID, scenario))
	})
	if err != nil {
		return &PersistenceError{Op: "delete rule override", Err: err}
	}
	return nil
}

// DeleteOwnerOverrides removes every override for an owner in one
// transaction and reports how many rows went away.
func (s *Store) DeleteOwnerOverrides(ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRules)
		prefix := []byte(ownerID + "/")

		var keys [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	if err != nil {
		return 0, &PersistenceError{Op: "delete owner overrides", Err: err}
	}
	return deleted, nil
}
