package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PowerDNS/deltasnap/config"
)

func TestRunSimulate(t *testing.T) {
	conf = config.Default()
	conf.Replicator.Name = "simtest"
	conf.Replicator.Instance = "test"
	conf.Replicator.TickInterval = 10 * time.Millisecond
	conf.Simulation.Objects = 10
	conf.Simulation.Connections = 2
	conf.Simulation.Ticks = 5
	conf.Simulation.LossRate = 0.2
	conf.Health.Start.ReportHealthz = false
	require.NoError(t, conf.Check())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := runSimulate(ctx)
	assert.NoError(t, err)
}
