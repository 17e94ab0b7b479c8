package utils

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const MonitoredMutexDefaultLimit = time.Second

// MonitoredMutex is a sync.Mutex that logs a warning on Unlock when it was
// held for longer than Limit.
type MonitoredMutex struct {
	mu       sync.Mutex
	lockTime time.Time

	Logger logrus.FieldLogger
	Name   string
	Limit  time.Duration // MonitoredMutexDefaultLimit if 0
}

func (m *MonitoredMutex) Lock() {
	m.mu.Lock()
	m.lockTime = time.Now()
}

// Unlock unlocks the mutex and returns how long it was held.
func (m *MonitoredMutex) Unlock() time.Duration {
	held := time.Since(m.lockTime)
	m.lockTime = time.Time{}
	m.mu.Unlock()

	limit := m.Limit
	if limit <= 0 {
		limit = MonitoredMutexDefaultLimit
	}
	if held > limit {
		// Only a warning: clock jumps and paused processes can cause spikes
		m.logger().WithFields(logrus.Fields{
			"lock_held": held,
			"limit":     limit,
			"lock_name": m.Name,
			"caller":    caller(2),
		}).Warn("Lock time limit exceeded")
	}
	return held
}

func (m *MonitoredMutex) logger() logrus.FieldLogger {
	if m.Logger != nil {
		return m.Logger
	}
	return logrus.StandardLogger()
}

func caller(skip int) string {
	pc, fileName, fileLine, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	details := runtime.FuncForPC(pc)
	if details == nil {
		return fmt.Sprintf("%s:%d", fileName, fileLine)
	}
	return fmt.Sprintf("%s:%d (%s)", fileName, fileLine, details.Name())
}
