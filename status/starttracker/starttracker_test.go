package starttracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wojas/go-healthz"
)

func TestStartTracker(t *testing.T) {
	st := New(StartConfig{ReportHealthz: true, ErrorDuration: time.Hour, WarnDuration: 0}, "test", true)
	defer healthz.Deregister(st.name())

	assert.False(t, st.Completed())
	assert.Error(t, st.check(), "warning while pending")

	st.SetPassedInitialTick()
	assert.False(t, st.Completed())
	st.SetPassedInitialCheckpoint()
	assert.True(t, st.Completed())
	assert.NoError(t, st.check())
}

func TestStartTracker_NoCheckpoint(t *testing.T) {
	st := New(StartConfig{}, "test_nocp", false)
	defer healthz.Deregister(st.name())

	assert.NoError(t, st.check(), "not reported without ReportHealthz")
	st.SetPassedInitialTick()
	assert.True(t, st.Completed())
}
