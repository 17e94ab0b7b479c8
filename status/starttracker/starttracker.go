// Package starttracker reports on the healthz endpoint until a replicator
// completed its first tick and, if storage is configured, its first
// checkpoint.
package starttracker

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wojas/go-healthz"
	"go.uber.org/atomic"
)

type StartTracker struct {
	Config            StartConfig
	initialTick       atomic.Bool
	initialCheckpoint atomic.Bool
	since             atomic.Time
	prefix            string
	logger            logrus.FieldLogger
}

// New creates a StartTracker. If needCheckpoint is false, the startup is
// complete after the first tick.
func New(sc StartConfig, prefix string, needCheckpoint bool) *StartTracker {
	st := &StartTracker{
		Config: sc.Validated(),
		prefix: prefix,
		logger: logrus.WithField("starttracker", prefix),
	}
	st.initialCheckpoint.Store(!needCheckpoint)
	st.since.Store(time.Now())
	st.register()
	return st
}

func (st *StartTracker) name() string {
	return fmt.Sprintf("%s_startup_in_progress", st.prefix)
}

func (st *StartTracker) register() {
	if st.Config.ReportMetadata {
		healthz.SetMeta("startupCompleted", false)
	}
	healthz.Register(st.name(), st.Config.EvaluationInterval, st.check)
}

func (st *StartTracker) check() error {
	if !st.Completed() {
		if !st.Config.ReportHealthz {
			return nil
		}
		pending := time.Since(st.since.Load()).Round(time.Second)
		if pending >= st.Config.ErrorDuration {
			return fmt.Errorf("startup pending after %s", pending)
		}
		if pending >= st.Config.WarnDuration {
			return healthz.Warnf("startup pending after %s", pending)
		}
		return nil
	}

	if st.Config.ReportMetadata {
		healthz.SetMeta("startupCompleted", true)
	}
	st.logger.Info("Startup phase completed")

	// Only relevant until it passed once
	healthz.Deregister(st.name())
	return nil
}

// Completed reports if all startup phases have passed
func (st *StartTracker) Completed() bool {
	return st.initialTick.Load() && st.initialCheckpoint.Load()
}

func (st *StartTracker) SetPassedInitialTick() {
	if !st.initialTick.Swap(true) {
		st.logger.Debug("Passed initial tick")
	}
}

func (st *StartTracker) SetPassedInitialCheckpoint() {
	if !st.initialCheckpoint.Swap(true) {
		st.logger.Debug("Passed initial checkpoint")
	}
}
