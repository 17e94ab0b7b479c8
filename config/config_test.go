package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.NoError(t, c.Check())
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("DELTASNAP_TEST_DIR", "/tmp/checkpoints")
	c := Default()
	err := c.LoadYAML([]byte(`
replicator:
  name: arena
  instance: node1
  tick_interval: 20ms
  checkpoint_interval: 1m
  cleanup:
    enabled: true
    keep: 2
storage:
  type: fs
  options:
    root_path: ${DELTASNAP_TEST_DIR}
simulation:
  objects: 10
  loss_rate: 0.25
http:
  address: ":8500"
`), true)
	require.NoError(t, err)
	assert.Equal(t, "arena", c.Replicator.Name)
	assert.Equal(t, "node1", c.InstanceName())
	assert.Equal(t, 20*time.Millisecond, c.Replicator.TickInterval)
	assert.Equal(t, 8, c.Replicator.SendConcurrency, "untouched default")
	assert.Equal(t, 2, c.Replicator.Cleanup.Keep)
	assert.Equal(t, 5*time.Minute, c.Replicator.Cleanup.Interval, "untouched default")
	assert.Equal(t, "/tmp/checkpoints", c.Storage.Options["root_path"])
	assert.Equal(t, 10, c.Simulation.Objects)
	assert.Equal(t, 0.25, c.Simulation.LossRate)
	assert.NoError(t, c.Check())
	assert.Contains(t, c.String(), "name: arena")
}

func TestLoadYAML_unknownKey(t *testing.T) {
	c := Default()
	err := c.LoadYAML([]byte("replicator:\n  nmae: typo\n"), false)
	assert.Error(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "deltasnap.yaml")
	require.NoError(t, os.WriteFile(fpath, []byte("replicator:\n  name: fromfile\n"), 0644))
	c := Default()
	require.NoError(t, c.LoadYAMLFile(fpath, false))
	assert.Equal(t, "fromfile", c.Replicator.Name)

	err := c.LoadYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.ErrorContains(t, err, "open yaml file")
}

func TestConfig_Check(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		errStr string
	}{
		{"no-name", func(c *Config) { c.Replicator.Name = "" }, "replicator.name"},
		{"tick", func(c *Config) { c.Replicator.TickInterval = 0 }, "replicator.tick_interval"},
		{"concurrency", func(c *Config) { c.Replicator.SendConcurrency = 0 }, "replicator.send_concurrency"},
		{"checkpoint-without-storage", func(c *Config) { c.Replicator.CheckpointInterval = time.Minute }, "requires storage.type"},
		{"cleanup-keep", func(c *Config) {
			c.Replicator.Cleanup.Enabled = true
			c.Replicator.Cleanup.Keep = 0
		}, "replicator.cleanup.keep"},
		{"loss-rate", func(c *Config) { c.Simulation.LossRate = 1.5 }, "simulation.loss_rate"},
		{"negative", func(c *Config) { c.Simulation.Objects = -1 }, "cannot be negative"},
		{"http", func(c *Config) { c.HTTP.Address = "nope" }, "http.address"},
		{"log", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.ErrorContains(t, c.Check(), tt.errStr)
		})
	}
}
