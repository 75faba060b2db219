package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/costhound/costhound/telemetry"
)

// OverrideStore persists per-owner rule overrides. Values are opaque
// JSON so the store never needs to understand rule schemas.
type OverrideStore interface {
	GetRuleOverride(ownerID, scenario string) (value []byte, found bool, err error)
	PutRuleOverride(ownerID, scenario string, value []byte) error
	DeleteRuleOverride(ownerID, scenario string) error
	DeleteOwnerOverrides(ownerID string) (deleted int, err error)
}

// Registry resolves effective rule sets: the owner's override when one
// exists, otherwise the immutable system default. Safe for concurrent
// reads from multiple running scans.
type Registry struct {
	store  OverrideStore
	logger *telemetry.Logger
}

// NewRegistry creates a rule registry backed by the given store
func NewRegistry(store OverrideStore) *Registry {
	return &Registry{
		store:  store,
		logger: telemetry.NewLogger("rules"),
	}
}

// Resolve returns the effective rule set for (owner, scenario). The
// second return is false when neither an override nor a system default
// exists; callers skip that scenario rather than treating it as an
// error.
func (r *Registry) Resolve(ctx context.Context, ownerID string, s Scenario) (RuleSet, bool, error) {
	if ownerID != "" {
		value, found, err := r.store.GetRuleOverride(ownerID, string(s))
		if err != nil {
			return RuleSet{}, false, fmt.Errorf("load rule override for %s/%s: %w", ownerID, s, err)
		}
		if found {
			var rs RuleSet
			if err := json.Unmarshal(value, &rs); err != nil {
				// A corrupt override must not kill the scan; fall
				// back to the default and log it.
				r.logger.WithContext(ctx).Warn().
					Str("owner", ownerID).
					Str("scenario", string(s)).
					Err(err).
					Msg("corrupt rule override, using default")
			} else {
				return rs, true, nil
			}
		}
	}

	rs, ok := Default(s)
	return rs, ok, nil
}

// Upsert creates or replaces the single override row for
// (owner, scenario).
func (r *Registry) Upsert(ctx context.Context, ownerID string, s Scenario, rs RuleSet) error {
	if ownerID == "" {
		return fmt.Errorf("owner id required")
	}
	if !s.Valid() {
		return fmt.Errorf("unknown scenario %q", s)
	}

	value, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode rule set: %w", err)
	}
	if err := r.store.PutRuleOverride(ownerID, string(s), value); err != nil {
		return fmt.Errorf("store rule override for %s/%s: %w", ownerID, s, err)
	}

	r.logger.WithContext(ctx).Info().
		Str("owner", ownerID).
		Str("scenario", string(s)).
		Msg("rule override upserted")
	return nil
}

// ResetToDefault deletes the owner's override for one scenario, or
// every override for the owner when scenario is nil.
func (r *Registry) ResetToDefault(ctx context.Context, ownerID string, s *Scenario) error {
	if ownerID == "" {
		return fmt.Errorf("owner id required")
	}

	if s != nil {
		if !s.Valid() {
			return fmt.Errorf("unknown scenario %q", *s)
		}
		if err := r.store.DeleteRuleOverride(ownerID, string(*s)); err != nil {
			return fmt.Errorf("delete rule override for %s/%s: %w", ownerID, *s, err)
		}
		return nil
	}

	deleted, err := r.store.DeleteOwnerOverrides(ownerID)
	if err != nil {
		return fmt.Errorf("delete rule overrides for %s: %w", ownerID, err)
	}

	r.logger.WithContext(ctx).Info().
		Str("owner", ownerID).
		Int("deleted", deleted).
		Msg("rule overrides reset to defaults")
	return nil
}
