package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "costhound.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
provider = "aws"

[aws]
regions = ["us-east-1", "eu-west-1"]
profile = "prod"

[engine]
max_regions = 8
region_concurrency = 2
scan_deadline = "15m"
queue_workers = 4

[pricing]
ttl = "12h"

[storage]
dir = "/var/lib/costhound"

[daemon]
interval = "2h"
metrics_port = 9321
accounts = ["acct-1"]

[otel]
endpoint = "localhost:4317"
insecure = true

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "aws", cfg.Provider)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, cfg.AWS.Regions)
	assert.Equal(t, "prod", cfg.AWS.Profile)
	assert.Equal(t, 8, cfg.Engine.MaxRegions)
	assert.Equal(t, 15*time.Minute, cfg.Engine.ScanDeadline)
	assert.Equal(t, 12*time.Hour, cfg.Pricing.TTL)
	assert.Equal(t, "/var/lib/costhound", cfg.Storage.Dir)
	// Journal colocates with storage unless overridden
	assert.Equal(t, "/var/lib/costhound", cfg.Storage.JournalDir)
	assert.Equal(t, 2*time.Hour, cfg.Daemon.Interval)
	assert.Equal(t, 9321, cfg.Daemon.MetricsPort)
	assert.Equal(t, "localhost:4317", cfg.OTEL.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "aws", cfg.Provider)
	assert.Equal(t, 30*time.Minute, cfg.Engine.ScanDeadline)
	assert.Equal(t, 24*time.Hour, cfg.Pricing.TTL)
	assert.Equal(t, time.Hour, cfg.Daemon.Interval)
	assert.Equal(t, 2113, cfg.Daemon.MetricsPort)
	assert.Equal(t, "costhound", cfg.OTEL.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
[engine]
scan_deadline = "soon"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsTightInterval(t *testing.T) {
	cfg := Default()
	cfg.Daemon.Interval = 10 * time.Second
	assert.Error(t, cfg.Validate())
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
