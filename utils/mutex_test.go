package utils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoredMutex(t *testing.T) {
	logger, hook := test.NewNullLogger()
	relaxed := MonitoredMutex{Logger: logger, Name: "relaxed", Limit: time.Hour}
	relaxed.Lock()
	relaxed.Unlock()
	assert.Empty(t, hook.AllEntries())

	m := MonitoredMutex{Logger: logger, Name: "test", Limit: time.Millisecond}
	m.Lock()
	time.Sleep(5 * time.Millisecond)
	held := m.Unlock()
	assert.GreaterOrEqual(t, held, 5*time.Millisecond)
	require.Len(t, hook.AllEntries(), 1)
	e := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, "test", e.Data["lock_name"])
	assert.Contains(t, e.Data["caller"], "mutex_test.go")
}
