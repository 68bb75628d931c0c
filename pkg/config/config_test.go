package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "avsync.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app_name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppName)
	assert.Equal(t, "tcp", cfg.Backend.Kind)
	assert.Equal(t, "127.0.0.1:12123", cfg.Backend.Address)
	assert.Equal(t, "json", cfg.Backend.Codec)
	assert.Equal(t, 3*time.Second, cfg.Backend.IdleTimeout())
	assert.Equal(t, 2*time.Second, cfg.Backend.RetryInterval())
	assert.Equal(t, time.Second, cfg.Session.HeartbeatInterval())
	assert.Equal(t, time.Second, cfg.Session.TelemetryInterval())
	assert.Equal(t, 10_000_000.0, cfg.Session.UnknownDistanceM)
	assert.Equal(t, 10*time.Second, cfg.TRx.SampleTTL())
	assert.Equal(t, uint64(1<<20), cfg.TRx.MaxBytes)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	p := writeConfig(t, `
backend:
  address: 10.0.0.7:9000
  codec: CBOR
fleet:
  nodes:
    - name: uav-0
      lon: 127.0
      lat: 37.5
      alt: 300
    - name: uav-1
      lon: 127.01
      lat: 37.5
      alt: 300
`)
	t.Setenv("AVSYNC_BACKEND_RETRY_INTERVAL_MS", "500")
	t.Setenv("AVSYNC_TRX_MAX_BYTES", "4096")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7:9000", cfg.Backend.Address)
	assert.Equal(t, "cbor", cfg.Backend.Codec)
	assert.Equal(t, 500*time.Millisecond, cfg.Backend.RetryInterval())
	assert.Equal(t, uint64(4096), cfg.TRx.MaxBytes)
	require.Len(t, cfg.Fleet.Nodes, 2)
	assert.Equal(t, "uav-1", cfg.Fleet.Nodes[1].Name)
	assert.InDelta(t, 127.01, cfg.Fleet.Nodes[1].Lon, 1e-9)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "log:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "backend:\n  codec: xml\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "session:\n  heartbeat_interval_ms: 0\n"))
	assert.Error(t, err)
}
