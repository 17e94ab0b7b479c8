package cleaner

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/PowerDNS/simpleblob/backends/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PowerDNS/deltasnap/config"
	"github.com/PowerDNS/deltasnap/protocol"
)

func mt(timeString string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", timeString)
	if err != nil {
		panic(err)
	}
	return t
}

func cp(replicatorName, instanceID, timeString string) string {
	return protocol.Name(replicatorName, instanceID, mt(timeString))
}

var initialCheckpoints = []string{
	// Ignored, because we run a cleaner for the "test" prefix
	cp("ignored", "old", "2020-01-01 01:00:00"),
	cp("ignored", "old", "2020-01-01 01:01:00"),
	cp("test", "a", "2020-01-30 08:00:00"),
	cp("test", "a", "2020-01-30 08:01:00"),
	cp("test", "a", "2020-01-30 08:02:00"),
	cp("test", "a", "2020-01-30 08:03:00"),
	cp("test", "old", "2020-01-01 06:00:00"),
	cp("test", "old", "2020-01-01 07:00:00"),
}

func newTestWorker(name string, keep int) (*Worker, simpleblob.Interface) {
	st := memory.New()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	w := New(name, st, config.Cleanup{
		Enabled:                    true,
		Interval:                   time.Minute, // not used in test
		MustKeepInterval:           10 * time.Minute,
		Keep:                       keep,
		RemoveOldInstancesInterval: 7 * 24 * time.Hour,
	}, logger)
	return w, st
}

func TestWorker(t *testing.T) {
	w, st := newTestWorker("test", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	add := func(name string) {
		require.NoError(t, st.Store(ctx, name, []byte{'x'}))
	}
	for _, name := range initialCheckpoints {
		add(name)
	}

	doRun := func(timeString string, expected []string) {
		_, err := w.RunOnce(ctx, mt(timeString))
		assert.NoError(t, err, timeString)

		list, err := st.List(ctx, "")
		assert.NoError(t, err, timeString)
		names := list.Names()
		sort.Strings(names)
		sort.Strings(expected)
		assert.Equal(t, expected, names, timeString)
	}

	// Nothing is removed until MustKeepInterval passed since we first saw them
	doRun("2020-01-30 10:00:00", initialCheckpoints)
	doRun("2020-01-30 10:01:00", initialCheckpoints)

	// The stale "old" instance disappears completely, "a" keeps its newest
	doRun("2020-01-30 10:10:01", []string{
		cp("ignored", "old", "2020-01-01 01:00:00"),
		cp("ignored", "old", "2020-01-01 01:01:00"),
		cp("test", "a", "2020-01-30 08:03:00"),
	})

	// A new checkpoint does not cause removal of the previous one on the
	// run that first sees it
	add(cp("test", "a", "2020-01-30 10:10:50"))
	doRun("2020-01-30 10:11:00", []string{
		cp("ignored", "old", "2020-01-01 01:00:00"),
		cp("ignored", "old", "2020-01-01 01:01:00"),
		cp("test", "a", "2020-01-30 08:03:00"),
		cp("test", "a", "2020-01-30 10:10:50"),
	})

	// But on the next one
	doRun("2020-01-30 10:12:00", []string{
		cp("ignored", "old", "2020-01-01 01:00:00"),
		cp("ignored", "old", "2020-01-01 01:01:00"),
		cp("test", "a", "2020-01-30 10:10:50"),
	})
}

func TestWorker_KeepAndSoleInstance(t *testing.T) {
	w, st := newTestWorker("solo", 2)
	ctx := context.Background()
	names := []string{
		cp("solo", "x", "2020-01-01 01:00:00"),
		cp("solo", "x", "2020-01-01 02:00:00"),
		cp("solo", "x", "2020-01-01 03:00:00"),
		"solo__garbage.txt",
	}
	for _, name := range names {
		require.NoError(t, st.Store(ctx, name, []byte{'x'}))
	}

	// The only instance is never stale, however old it is
	_, err := w.RunOnce(ctx, mt("2021-01-01 00:00:00"))
	require.NoError(t, err)
	stats, err := w.RunOnce(ctx, mt("2021-01-01 01:00:00"))
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Cleaned: 1}, stats)

	list, err := st.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		cp("solo", "x", "2020-01-01 02:00:00"),
		cp("solo", "x", "2020-01-01 03:00:00"),
		"solo__garbage.txt",
	}, list.Names())
}

func TestWorker_Disabled(t *testing.T) {
	w, _ := newTestWorker("test", 1)
	w.conf.Enabled = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}
