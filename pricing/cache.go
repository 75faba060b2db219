package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/costhound/costhound/telemetry"
)

// Source tags where a price came from
type Source string

const (
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
	SourceManual   Source = "manual"
)

// DefaultTTL is how long a cached price stays fresh
const DefaultTTL = 24 * time.Hour

// Entry is one cached unit price, unique on (provider, service, region)
type Entry struct {
	Provider     string    `json:"provider"`
	Service      string    `json:"service"`
	Region       string    `json:"region"`
	PricePerUnit float64   `json:"price_per_unit"`
	Unit         string    `json:"unit"`
	Currency     string    `json:"currency"`
	Source       Source    `json:"source"`
	LastUpdated  time.Time `json:"last_updated"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL. Expired entries
// stay readable (stale-while-revalidate); they are flagged, never
// silently dropped until replaced.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// EntryStore persists pricing entries keyed by (provider, service, region)
type EntryStore interface {
	GetPricingEntry(provider, service, region string) (Entry, bool, error)
	PutPricingEntry(e Entry) error
}

// RefreshFunc fetches a fresh batch of prices from a live source. It
// runs out-of-band (a scheduled job); scans never block on it.
type RefreshFunc func(ctx context.Context) ([]Entry, error)

// Cache is the refreshable price cache. Reads are safe concurrently
// with refreshes: each refresh is an upsert keyed by the composite key,
// so writers overwrite rows, never corrupt them.
type Cache struct {
	store   EntryStore
	ttl     time.Duration
	refresh RefreshFunc
	logger  *telemetry.Logger
	now     func() time.Time
}

// NewCache creates a price cache backed by the given store
func NewCache(store EntryStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: telemetry.NewLogger("pricing"),
		now:    time.Now,
	}
}

// WithRefreshFunc sets the live price source used by Refresh
func (c *Cache) WithRefreshFunc(fn RefreshFunc) *Cache {
	c.refresh = fn
	return c
}

// Lookup returns the cached entry for the exact composite key. The
// stale flag is set when the entry exists but is past its TTL.
func (c *Cache) Lookup(provider, service, region string) (entry Entry, stale bool, ok bool) {
	e, found, err := c.store.GetPricingEntry(provider, service, region)
	if err != nil {
		// A broken cache read degrades to the fallback table
		c.logger.Warn().
			Err(err).
			Str("service", service).
			Str("region", region).
			Msg("pricing cache read failed")
		return Entry{}, false, false
	}
	if !found {
		return Entry{}, false, false
	}
	return e, e.Expired(c.now()), true
}

// Put upserts one entry, stamping LastUpdated and ExpiresAt
func (c *Cache) Put(e Entry) error {
	e.LastUpdated = c.now()
	e.ExpiresAt = e.LastUpdated.Add(c.ttl)
	if e.Currency == "" {
		e.Currency = "USD"
	}
	if err := c.store.PutPricingEntry(e); err != nil {
		return fmt.Errorf("store pricing entry %s/%s/%s: %w", e.Provider, e.Service, e.Region, err)
	}
	return nil
}

// Refresh repopulates the cache from the live source. Intended to be
// driven by a scheduler (daily); concurrent scans keep reading the old
// rows until each upsert lands.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	if c.refresh == nil {
		return 0, fmt.Errorf("no refresh source configured")
	}

	entries, err := c.refresh(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch live prices: %w", err)
	}

	for _, e := range entries {
		if e.Source == "" {
			e.Source = SourceAPI
		}
		if err := c.Put(e); err != nil {
			return 0, err
		}
	}

	c.logger.WithContext(ctx).Info().
		Int("entries", len(entries)).
		Msg("pricing cache refreshed")
	return len(entries), nil
}
