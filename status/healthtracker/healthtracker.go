// Package healthtracker reports consecutive failures of a recurring activity,
// like replicator ticks or checkpoint stores, on the healthz endpoint.
package healthtracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wojas/go-healthz"
	"go.uber.org/atomic"
)

type HealthTracker struct {
	Config   HealthConfig
	sequence atomic.Uint32
	since    atomic.Time
	prefix   string
	activity string
	logger   logrus.FieldLogger

	mu      sync.Mutex
	lastErr error
}

// New creates a HealthTracker and registers its checks with healthz under
// "<prefix>_failed_attempts" and "<prefix>_failed_duration".
func New(hc HealthConfig, prefix string, activity string) *HealthTracker {
	ht := &HealthTracker{
		Config:   hc.Validated(),
		prefix:   prefix,
		activity: activity,
		logger:   logrus.WithField("healthtracker", prefix),
	}
	healthz.Register(ht.sequenceName(), ht.Config.EvaluationInterval, ht.checkSequence)
	healthz.Register(ht.durationName(), ht.Config.EvaluationInterval, ht.checkDuration)
	ht.logger.Debug("Registered health trackers")
	return ht
}

func (ht *HealthTracker) sequenceName() string {
	return fmt.Sprintf("%s_failed_attempts", ht.prefix)
}

func (ht *HealthTracker) durationName() string {
	return fmt.Sprintf("%s_failed_duration", ht.prefix)
}

func (ht *HealthTracker) checkSequence() error {
	n := ht.sequence.Load()
	switch {
	case n == 0:
		return nil
	case n >= ht.Config.ErrorSequence:
		return fmt.Errorf("failed to %s %d consecutive times: %v", ht.activity, n, ht.LastError())
	case n >= ht.Config.WarnSequence:
		return healthz.Warnf("failed to %s %d consecutive times: %v", ht.activity, n, ht.LastError())
	}
	return nil
}

func (ht *HealthTracker) checkDuration() error {
	if ht.sequence.Load() == 0 {
		return nil
	}
	failingFor := time.Since(ht.since.Load()).Round(time.Second)
	switch {
	case failingFor >= ht.Config.ErrorDuration:
		return fmt.Errorf("failed to %s for %s", ht.activity, failingFor)
	case failingFor >= ht.Config.WarnDuration:
		return healthz.Warnf("failed to %s for %s", ht.activity, failingFor)
	}
	return nil
}

// AddFailure records a failed attempt
func (ht *HealthTracker) AddFailure(err error) {
	ht.mu.Lock()
	ht.lastErr = err
	ht.mu.Unlock()
	if ht.sequence.Inc() == 1 {
		ht.since.Store(time.Now())
	}
	ht.logger.WithError(err).Debugf("Consecutive failures: %d", ht.sequence.Load())
}

// AddSuccess resets the failure sequence
func (ht *HealthTracker) AddSuccess() {
	if ht.sequence.Swap(0) > 0 {
		ht.logger.Info("Recovered after failures")
	}
}

// Failures returns the number of consecutive failures
func (ht *HealthTracker) Failures() uint32 {
	return ht.sequence.Load()
}

func (ht *HealthTracker) LastError() error {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return ht.lastErr
}

// Check runs both checks and returns the most severe result
func (ht *HealthTracker) Check() error {
	if err := ht.checkSequence(); err != nil {
		return err
	}
	return ht.checkDuration()
}

// Close deregisters the checks from healthz
func (ht *HealthTracker) Close() {
	healthz.Deregister(ht.sequenceName())
	healthz.Deregister(ht.durationName())
}
