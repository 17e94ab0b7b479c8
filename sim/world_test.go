package sim

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PowerDNS/deltasnap/config"
	"github.com/PowerDNS/deltasnap/replicator"
	"github.com/PowerDNS/deltasnap/snapshot"
)

func testConfig() config.Simulation {
	c := config.Default().Simulation
	c.Objects = 20
	c.SlotsPerObject = 10
	c.ChangeFraction = 0.2
	c.ReparentChance = 0.1
	return c
}

func newTestReplicator() *replicator.Replicator {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return replicator.New("sim", replicator.Options{Logger: l})
}

func TestNew_Deterministic(t *testing.T) {
	c := testConfig()
	w1 := New(c, rand.New(rand.NewSource(42)))
	w2 := New(c, rand.New(rand.NewSource(42)))
	require.Len(t, w1.Objects, 20)
	for i := range w1.Objects {
		assert.Equal(t, w1.Objects[i].UUID, w2.Objects[i].UUID)
		assert.Equal(t, w1.Objects[i].X, w2.Objects[i].X)
		assert.Len(t, w1.Objects[i].Counters, 4)
	}
}

func TestWorld_Publish(t *testing.T) {
	c := testConfig()
	rng := rand.New(rand.NewSource(1))
	w := New(c, rng)
	r := newTestReplicator()
	w.Track(r)

	ch, err := w.Publish(r)
	require.NoError(t, err)
	assert.Equal(t, Changes{Added: 20 * 10}, ch)

	// Publishing an unchanged world changes nothing
	ch, err = w.Publish(r)
	require.NoError(t, err)
	assert.Equal(t, Changes{Unchanged: 20 * 10}, ch)

	o := w.Objects[0]
	o.Health--
	ch, err = w.Publish(r)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Updated)

	// Reparenting changes the hash of the salted position slots only
	o.Parent = w.Objects[1].UUID
	o.Parented = true
	ch, err = w.Publish(r)
	require.NoError(t, err)
	assert.Equal(t, 3, ch.Updated)
	st, ok := r.Object(o.ID)
	require.True(t, ok)
	parent, ok := st.ParentID()
	assert.True(t, ok)
	assert.Equal(t, w.Objects[1].UUID, parent)
}

func TestWorld_PublishUntracked(t *testing.T) {
	w := New(testConfig(), rand.New(rand.NewSource(1)))
	_, err := w.Publish(newTestReplicator())
	assert.True(t, errors.Is(err, replicator.ErrUnknownObject))
}

func TestWorld_Step(t *testing.T) {
	c := testConfig()
	c.ChangeFraction = 0
	c.ReparentChance = 0
	rng := rand.New(rand.NewSource(1))
	w := New(c, rng)
	assert.Equal(t, 0, w.Step(rng))

	c.ChangeFraction = 1
	w = New(c, rng)
	// Owner never changes
	assert.Equal(t, 20*9, w.Step(rng))
}

func TestSimulation_ConvergesWithLoss(t *testing.T) {
	ctx := context.Background()
	c := testConfig()
	rng := rand.New(rand.NewSource(7))
	w := New(c, rng)
	r := newTestReplicator()
	w.Track(r)

	var mirrors []*replicator.Mirror
	var sinks []*LossySink
	for i := 1; i <= 3; i++ {
		m := replicator.NewMirror()
		s := NewLossySink(m, 0.3, int64(i))
		r.Connect(snapshot.ConnID(i), s)
		mirrors = append(mirrors, m)
		sinks = append(sinks, s)
	}

	failedTicks := 0
	for i := 0; i < 30; i++ {
		w.Step(rng)
		_, err := w.Publish(r)
		require.NoError(t, err)
		_, err = r.Tick(ctx)
		var sendErr *replicator.SendError
		if err != nil {
			require.True(t, errors.As(err, &sendErr), "unexpected error: %v", err)
			failedTicks++
		}
	}
	assert.Greater(t, failedTicks, 0)

	// Once the network is reliable, a single tick catches up
	for _, s := range sinks {
		assert.Greater(t, s.Dropped(), 0)
		s.SetLossRate(0)
	}
	_, err := r.Tick(ctx)
	require.NoError(t, err)

	for _, m := range mirrors {
		assert.Equal(t, c.Objects, m.Len())
		for _, o := range w.Objects {
			err := r.Update(o.ID, func(st *snapshot.State) error {
				return m.Verify(st)
			})
			assert.NoError(t, err)
		}
	}
}
