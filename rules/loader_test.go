package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverrides(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadOverridesFile(t *testing.T) {
	path := writeOverrides(t, `
version: "1"
owners:
  acct-42:
    ebs_idle:
      enabled: true
      min_idle_days: 45
    ec2_idle:
      enabled: false
`)

	file, err := LoadOverridesFile(path)
	require.NoError(t, err)
	require.Contains(t, file.Owners, "acct-42")

	rs := file.Owners["acct-42"]["ebs_idle"]
	assert.True(t, rs.Enabled)
	assert.Equal(t, 45, rs.MinIdleDays)
	assert.False(t, file.Owners["acct-42"]["ec2_idle"].Enabled)
}

func TestLoadOverridesFileRejectsUnknownScenario(t *testing.T) {
	path := writeOverrides(t, `
version: "1"
owners:
  acct-42:
    made_up_scenario:
      enabled: true
`)

	_, err := LoadOverridesFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "made_up_scenario")
}

func TestLoadOverridesFileRequiresVersion(t *testing.T) {
	path := writeOverrides(t, `
owners:
  acct-42:
    ebs_idle:
      enabled: true
`)

	_, err := LoadOverridesFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadOverridesFileMissing(t *testing.T) {
	_, err := LoadOverridesFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestOverridesFileApply(t *testing.T) {
	store := newMemOverrideStore()
	registry := NewRegistry(store)

	file := &OverridesFile{
		Version: "1",
		Owners: map[string]map[string]RuleSet{
			"acct-42": {
				string(EBSIdle): {Enabled: true, MinIdleDays: 45},
			},
		},
	}

	require.NoError(t, file.Apply(context.Background(), registry))

	rs, ok, err := registry.Resolve(context.Background(), "acct-42", EBSIdle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 45, rs.MinIdleDays)
}
