package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "paper", c.TradingMode)
	assert.Equal(t, 1000.0, c.Portfolio.Bankroll)
	assert.Equal(t, 0.08, c.Alpha.MinEdge)
	assert.Equal(t, 0.78, c.Alpha.ConvictionThreshold)
	assert.Len(t, c.Locations, 4)
	assert.Equal(t, 900, c.Scheduling.ScanIntervalSeconds)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
trading_mode: live
portfolio:
  bankroll: 2500
  timezone: America/Chicago
alpha:
  min_edge: 0.10
locations:
  - name: seattle
    lat: 47.6
    lon: -122.3
scheduling:
  scan_interval_seconds: 300
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "live", c.TradingMode)
	assert.Equal(t, 2500.0, c.Portfolio.Bankroll)
	assert.Equal(t, 0.10, c.Alpha.MinEdge)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.78, c.Alpha.ConvictionThreshold)
	require.Len(t, c.Locations, 1)
	assert.Equal(t, "seattle", c.Locations[0].Name)
	assert.Equal(t, 300, c.Scheduling.ScanIntervalSeconds)
	assert.Equal(t, "America/Chicago", c.Location().String())
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading_mode: yolo\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading_mode")
}

func TestLoadRejectsNonPositiveBankroll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portfolio:\n  bankroll: -5\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bankroll")
}

func TestLocationNames(t *testing.T) {
	c := Default()
	names := c.LocationNames()
	assert.Contains(t, names, "miami")
	assert.Contains(t, names, "chicago")
}
