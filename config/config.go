// Package config implements the YAML config file parser
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/PowerDNS/deltasnap/config/logger"
	"github.com/PowerDNS/deltasnap/status/healthtracker"
	"github.com/PowerDNS/deltasnap/status/starttracker"
)

// MinTickInterval is the shortest tick interval we accept
const MinTickInterval = time.Millisecond

// Config is the config root object
type Config struct {
	Replicator Replicator    `yaml:"replicator"`
	Simulation Simulation    `yaml:"simulation"`
	Storage    Storage       `yaml:"storage"`
	HTTP       HTTP          `yaml:"http"`
	Log        logger.Config `yaml:"log"`
	Health     Health        `yaml:"health"`

	// Set to current version by main
	Version string `yaml:"-"`
}

// Replicator configures the replicator loop
type Replicator struct {
	Name               string        `yaml:"name"`     // Used in checkpoint names and metrics
	Instance           string        `yaml:"instance"` // Defaults to the hostname
	TickInterval       time.Duration `yaml:"tick_interval"`
	SendConcurrency    int           `yaml:"send_concurrency"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"` // 0 disables checkpoints
	Cleanup            Cleanup       `yaml:"cleanup"`
}

// Cleanup configures the removal of old checkpoints
type Cleanup struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	// MustKeepInterval protects checkpoints we have first seen less than this
	// interval ago, since peers may still be loading them.
	MustKeepInterval time.Duration `yaml:"must_keep_interval"`
	// Keep is the number of newest checkpoints to keep per instance
	Keep int `yaml:"keep"`
	// RemoveOldInstancesInterval removes all checkpoints of an instance once
	// its newest one is this old and another instance has a newer one.
	RemoveOldInstancesInterval time.Duration `yaml:"remove_old_instances_interval"`
}

// Simulation configures the synthetic world of the 'simulate' command
type Simulation struct {
	Objects        int     `yaml:"objects"`
	SlotsPerObject int     `yaml:"slots_per_object"`
	Connections    int     `yaml:"connections"`
	ChangeFraction float64 `yaml:"change_fraction"` // Fraction of slots changed per step
	ReparentChance float64 `yaml:"reparent_chance"` // Chance per step that an object changes parent
	LossRate       float64 `yaml:"loss_rate"`       // Fraction of frames dropped by the simulated network
	Seed           int64   `yaml:"seed"`
	Ticks          int     `yaml:"ticks"` // 0 runs until interrupted
}

// Storage configures the simpleblob backend for checkpoints
type Storage struct {
	Type    string                 `yaml:"type"` // Empty disables storage
	Options map[string]interface{} `yaml:"options"`
}

// HTTP configures the HTTP server with Prometheus metrics and status page
type HTTP struct {
	Address string `yaml:"address"` // Address like ":8000"
}

// Health configures the healthz trackers
type Health struct {
	Tick       healthtracker.HealthConfig `yaml:"tick"`
	Checkpoint healthtracker.HealthConfig `yaml:"checkpoint"`
	Start      starttracker.StartConfig   `yaml:"start"`
}

// Check validates a Config instance
func (c Config) Check() error {
	if err := c.Log.Check(); err != nil {
		return err
	}
	r := c.Replicator
	if r.Name == "" {
		return fmt.Errorf("replicator.name: required")
	}
	if r.TickInterval < MinTickInterval {
		return fmt.Errorf("replicator.tick_interval: too short interval")
	}
	if r.SendConcurrency < 1 {
		return fmt.Errorf("replicator.send_concurrency: must be at least 1")
	}
	if r.CheckpointInterval < 0 {
		return fmt.Errorf("replicator.checkpoint_interval: cannot be negative")
	}
	if r.CheckpointInterval > 0 && c.Storage.Type == "" {
		return fmt.Errorf("replicator.checkpoint_interval: requires storage.type")
	}
	if r.Cleanup.Enabled {
		if r.Cleanup.Interval <= 0 {
			return fmt.Errorf("replicator.cleanup.interval: must be positive")
		}
		if r.Cleanup.Keep < 1 {
			return fmt.Errorf("replicator.cleanup.keep: must be at least 1")
		}
	}
	s := c.Simulation
	if s.Objects < 0 || s.SlotsPerObject < 0 || s.Connections < 0 || s.Ticks < 0 {
		return fmt.Errorf("simulation: counts cannot be negative")
	}
	for name, f := range map[string]float64{
		"change_fraction": s.ChangeFraction,
		"reparent_chance": s.ReparentChance,
		"loss_rate":       s.LossRate,
	} {
		if f < 0 || f > 1 {
			return fmt.Errorf("simulation.%s: must be between 0 and 1", name)
		}
	}
	if c.HTTP.Address != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Address); err != nil {
			return fmt.Errorf("http.address: %v", err)
		}
	}
	return nil
}

// InstanceName returns the configured instance name, or the hostname
func (c Config) InstanceName() string {
	if c.Replicator.Instance != "" {
		return c.Replicator.Instance
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// String returns the config as a YAML string.
func (c Config) String() string {
	y, err := yaml.Marshal(c)
	if err != nil {
		logrus.Panicf("YAML marshal of config failed: %v", err) // Should never happen
	}
	return string(y)
}

// LoadYAML loads config from YAML. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAML(yamlContents []byte, expandEnv bool) error {
	if expandEnv {
		yamlContents = []byte(os.ExpandEnv(string(yamlContents)))
	}
	return yaml.UnmarshalStrict(yamlContents, c)
}

// LoadYAMLFile loads config from a YAML file. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAMLFile(fpath string, expandEnv bool) error {
	contents, err := os.ReadFile(fpath)
	if err != nil {
		return errors.Wrap(err, "open yaml file")
	}
	return c.LoadYAML(contents, expandEnv)
}

// Default returns a Config with default settings
func Default() Config {
	return Config{
		Replicator: Replicator{
			Name:               "world",
			TickInterval:       50 * time.Millisecond,
			SendConcurrency:    8,
			CheckpointInterval: 0,
			Cleanup: Cleanup{
				Enabled:                    false,
				Interval:                   5 * time.Minute,
				MustKeepInterval:           10 * time.Minute,
				Keep:                       3,
				RemoveOldInstancesInterval: 7 * 24 * time.Hour,
			},
		},
		Simulation: Simulation{
			Objects:        100,
			SlotsPerObject: 16,
			Connections:    4,
			ChangeFraction: 0.1,
			ReparentChance: 0.01,
			LossRate:       0,
			Seed:           1,
			Ticks:          100,
		},
		Log: logger.DefaultConfig,
		Health: Health{
			Tick: healthtracker.HealthConfig{
				ErrorDuration:      time.Minute,
				WarnDuration:       10 * time.Second,
				ErrorSequence:      100,
				WarnSequence:       10,
				EvaluationInterval: 5 * time.Second,
			},
			Checkpoint: healthtracker.HealthConfig{
				ErrorDuration:      10 * time.Minute,
				WarnDuration:       time.Minute,
				ErrorSequence:      10,
				WarnSequence:       3,
				EvaluationInterval: 5 * time.Second,
			},
			Start: starttracker.StartConfig{
				EvaluationInterval: 5 * time.Second,
				ErrorDuration:      time.Minute,
				WarnDuration:       10 * time.Second,
				ReportHealthz:      true,
				ReportMetadata:     true,
			},
		},
	}
}
