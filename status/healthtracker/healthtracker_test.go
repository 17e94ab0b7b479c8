package healthtracker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthConfig_Validated(t *testing.T) {
	hc := HealthConfig{}.Validated()
	assert.Equal(t, MinEvaluationInterval, hc.EvaluationInterval)
	assert.Equal(t, uint32(DefaultErrorSequence), hc.ErrorSequence)
	assert.Equal(t, uint32(DefaultErrorSequence), hc.WarnSequence)

	hc = HealthConfig{ErrorSequence: 5, WarnSequence: 2, ErrorDuration: time.Minute, WarnDuration: time.Hour}.Validated()
	assert.Equal(t, uint32(2), hc.WarnSequence)
	assert.Equal(t, time.Minute, hc.WarnDuration)
}

func TestHealthTracker(t *testing.T) {
	ht := New(HealthConfig{
		ErrorSequence: 3,
		WarnSequence:  2,
		ErrorDuration: time.Hour,
		WarnDuration:  time.Hour,
	}, "test_tracker", "test")
	defer ht.Close()

	assert.NoError(t, ht.Check())

	boom := errors.New("boom")
	ht.AddFailure(boom)
	assert.Equal(t, uint32(1), ht.Failures())
	assert.NoError(t, ht.Check())

	ht.AddFailure(boom)
	err := ht.Check()
	assert.ErrorContains(t, err, "failed to test 2 consecutive times: boom")

	ht.AddFailure(boom)
	assert.ErrorContains(t, ht.Check(), "3 consecutive times")
	assert.Equal(t, boom, ht.LastError())

	ht.AddSuccess()
	assert.Zero(t, ht.Failures())
	assert.NoError(t, ht.Check())
}
