package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, 20, c.CoarsenTo())
	assert.Equal(t, int64(0), c.MaxWorkingSetBytes())
	assert.Equal(t, "info", c.LogLevel())
	assert.InDelta(t, 0.95, c.MinCoarsenRatio(), 1e-12)
	assert.False(t, c.CheckConsistency())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gopart.yaml")
	data := []byte("engine:\n  coarsen_to: 50\n  max_working_set_bytes: 1048576\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c := NewConfig()
	require.NoError(t, c.LoadFromFile(path))
	assert.Equal(t, 50, c.CoarsenTo())
	assert.Equal(t, int64(1<<20), c.MaxWorkingSetBytes())
	assert.Equal(t, 120, c.LeafSize(), "unset keys keep their defaults")

	assert.Error(t, NewConfig().LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	v.Set("dist.processes", 3)
	c := FromViper(v)
	assert.Equal(t, 3, c.Processes())
	assert.Equal(t, 20, c.CoarsenTo())
}

func TestCreateLogger(t *testing.T) {
	c := NewConfig()
	c.Set("logging.console", false)
	c.Set("logging.level", "warn")
	var buf bytes.Buffer
	log := c.CreateLoggerTo(&buf)
	log.Info().Msg("hidden")
	log.Warn().Int("nparts", 4).Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"nparts":4`)

	c.Set("logging.level", "nonsense")
	buf.Reset()
	log = c.CreateLoggerTo(&buf)
	log.Info().Msg("falls back to info")
	assert.Contains(t, buf.String(), "falls back to info")
}
