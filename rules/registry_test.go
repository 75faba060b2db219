package rules

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOverrideStore is an in-memory OverrideStore for tests
type memOverrideStore struct {
	rows map[string][]byte
}

func newMemOverrideStore() *memOverrideStore {
	return &memOverrideStore{rows: make(map[string][]byte)}
}

func (m *memOverrideStore) GetRuleOverride(ownerID, scenario string) ([]byte, bool, error) {
	v, ok := m.rows[ownerID+"/"+scenario]
	return v, ok, nil
}

func (m *memOverrideStore) PutRuleOverride(ownerID, scenario string, value []byte) error {
	m.rows[ownerID+"/"+scenario] = value
	return nil
}

func (m *memOverrideStore) DeleteRuleOverride(ownerID, scenario string) error {
	delete(m.rows, ownerID+"/"+scenario)
	return nil
}

func (m *memOverrideStore) DeleteOwnerOverrides(ownerID string) (int, error) {
	deleted := 0
	for k := range m.rows {
		if strings.HasPrefix(k, ownerID+"/") {
			delete(m.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

func TestResolveFallsBackToSystemDefault(t *testing.T) {
	reg := NewRegistry(newMemOverrideStore())

	rs, ok, err := reg.Resolve(context.Background(), "acct-1", EBSIdle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rs.Enabled)
	assert.Equal(t, 30, rs.MinIdleDays)
}

func TestResolvePrefersOwnerOverride(t *testing.T) {
	reg := NewRegistry(newMemOverrideStore())
	ctx := context.Background()

	require.NoError(t, reg.Upsert(ctx, "acct-1", EBSIdle, RuleSet{Enabled: true, MinIdleDays: 7}))

	rs, ok, err := reg.Resolve(ctx, "acct-1", EBSIdle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, rs.MinIdleDays)

	// Other owners still see the default
	rs, ok, err = reg.Resolve(ctx, "acct-2", EBSIdle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, rs.MinIdleDays)
}

func TestResolveCorruptOverrideUsesDefault(t *testing.T) {
	store := newMemOverrideStore()
	store.rows["acct-1/"+string(EBSIdle)] = []byte("{not json")
	reg := NewRegistry(store)

	rs, ok, err := reg.Resolve(context.Background(), "acct-1", EBSIdle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, rs.MinIdleDays)
}

func TestUpsertRejectsUnknownScenario(t *testing.T) {
	reg := NewRegistry(newMemOverrideStore())
	err := reg.Upsert(context.Background(), "acct-1", Scenario("made_up"), RuleSet{Enabled: true})
	assert.Error(t, err)
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := newMemOverrideStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	require.NoError(t, reg.Upsert(ctx, "acct-1", EBSIdle, RuleSet{Enabled: true, MinIdleDays: 7}))
	require.NoError(t, reg.Upsert(ctx, "acct-1", EBSIdle, RuleSet{Enabled: true, MinIdleDays: 14}))

	assert.Len(t, store.rows, 1)
	rs, _, err := reg.Resolve(ctx, "acct-1", EBSIdle)
	require.NoError(t, err)
	assert.Equal(t, 14, rs.MinIdleDays)
}

func TestResetToDefaultSingleScenario(t *testing.T) {
	reg := NewRegistry(newMemOverrideStore())
	ctx := context.Background()
	require.NoError(t, reg.Upsert(ctx, "acct-1", EBSIdle, RuleSet{Enabled: true, MinIdleDays: 7}))

	sc := EBSIdle
	require.NoError(t, reg.ResetToDefault(ctx, "acct-1", &sc))

	rs, ok, err := reg.Resolve(ctx, "acct-1", EBSIdle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, rs.MinIdleDays)
}

func TestResetToDefaultAllScenarios(t *testing.T) {
	store := newMemOverrideStore()
	reg := NewRegistry(store)
	ctx := context.Background()
	require.NoError(t, reg.Upsert(ctx, "acct-1", EBSIdle, RuleSet{Enabled: true, MinIdleDays: 7}))
	require.NoError(t, reg.Upsert(ctx, "acct-1", EC2Stopped, RuleSet{Enabled: false}))
	require.NoError(t, reg.Upsert(ctx, "acct-2", EBSIdle, RuleSet{Enabled: true, MinIdleDays: 3}))

	require.NoError(t, reg.ResetToDefault(ctx, "acct-1", nil))

	assert.Len(t, store.rows, 1)
	_, found, _ := store.GetRuleOverride("acct-2", string(EBSIdle))
	assert.True(t, found)
}

func TestRuleSetPreservesUnknownKeys(t *testing.T) {
	in := []byte(`{"enabled":true,"min_idle_days":14,"future_knob":"fast","nested":{"a":1}}`)

	var rs RuleSet
	require.NoError(t, json.Unmarshal(in, &rs))
	assert.True(t, rs.Enabled)
	assert.Equal(t, 14, rs.MinIdleDays)
	assert.Equal(t, "fast", rs.Extra["future_knob"])
	assert.JSONEq(t, `{"a":1}`, rs.Extra["nested"])

	out, err := json.Marshal(rs)
	require.NoError(t, err)

	var round RuleSet
	require.NoError(t, json.Unmarshal(out, &round))
	assert.Equal(t, rs, round)
}

func TestDefaultReturnsCopy(t *testing.T) {
	a, ok := Default(EBSIdle)
	require.True(t, ok)
	a.MinIdleDays = 1

	b, _ := Default(EBSIdle)
	assert.Equal(t, 30, b.MinIdleDays)
}

func TestDefaultUnknownScenario(t *testing.T) {
	_, ok := Default(Scenario("made_up"))
	assert.False(t, ok)
}

func TestScenarioFamilies(t *testing.T) {
	for _, sc := range AllScenarios() {
		assert.True(t, sc.Valid(), "scenario %s", sc)
		assert.NotEmpty(t, sc.Family(), "scenario %s has no family", sc)
	}
	assert.False(t, Scenario("made_up").Valid())
}
