package storage

import (
	"encoding/json"

	"go.etcd.io/bbolt"

	"github.com/costhound/costhound/pricing"
)

// Pricing entries are unique on (provider, service, region); an upsert
// overwrites the row, so concurrent refreshes never corrupt it. This
// satisfies pricing.EntryStore.

func pricingKey(provider, service, region string) []byte {
	return []byte(provider + "/" + service + "/" + region)
}

// GetPricingEntry loads one cached unit price
func (s *Store) GetPricingEntry(provider, service, region string) (pricing.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry pricing.Entry
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPricing).Get(pricingKey(provider, service, region))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return pricing.Entry{}, false, err
	}
	return entry, found, nil
}

// PutPricingEntry upserts one cached unit price
func (s *Store) PutPricingEntry(e pricing.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPricing).Put(pricingKey(e.Provider, e.Service, e.Region), value)
	})
	if err != nil {
		return &PersistenceError{Op: "put pricing entry", Err: err}
	}
	return nil
}
