// Package climit limits the number of concurrent operations, like frame sends
// of a single replicator.
package climit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// New creates a ConcurrencyLimit that allows limit concurrent holders.
// The replicator and limit names are used as Prometheus labels.
func New(replicator, name string, limit int, logger logrus.FieldLogger) *ConcurrencyLimit {
	if logger == nil {
		lr := logrus.New()
		lr.SetLevel(logrus.PanicLevel)
		logger = lr
	}
	logger = logger.WithField("limit_name", name)
	if limit < 1 {
		logger.Warnf(
			"Increasing concurrency limit from configured %d to minimum of 1", limit)
		limit = 1
	}
	l := &ConcurrencyLimit{
		name:  name,
		limit: limit,
		labels: prometheus.Labels{
			"replicator": replicator,
			"limit_name": name,
		},
		ch:  make(chan struct{}, limit),
		log: logger,
	}
	for i := 0; i < limit; i++ {
		l.ch <- struct{}{}
	}
	metricLimit.With(l.labels).Set(float64(limit))
	return l
}

// ConcurrencyLimit hands out a fixed number of Tokens.
// Every Token obtained with Acquire or AcquireContext MUST be released with
// Token.Release.
type ConcurrencyLimit struct {
	name   string
	limit  int
	labels prometheus.Labels
	ch     chan struct{}
	log    logrus.FieldLogger
}

// Limit returns the number of tokens
func (cl *ConcurrencyLimit) Limit() int {
	return cl.limit
}

// Acquire blocks until a Token is available.
func (cl *ConcurrencyLimit) Acquire() *Token {
	t, _ := cl.AcquireContext(context.Background())
	return t
}

// AcquireContext is like Acquire, but gives up when the context is closed.
func (cl *ConcurrencyLimit) AcquireContext(ctx context.Context) (*Token, error) {
	metricWaiting.With(cl.labels).Inc()
	defer metricWaiting.With(cl.labels).Dec()

	t0 := time.Now()
	select {
	case <-cl.ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	dt := time.Since(t0)

	metricActive.With(cl.labels).Inc()
	metricAcquiredTotal.With(cl.labels).Inc()
	metricWaitingSeconds.With(cl.labels).Observe(dt.Seconds())
	cl.log.WithField("time_to_acquire", dt).Trace("Acquired token")
	return &Token{
		cl:   cl,
		time: time.Now(),
	}, nil
}

// Token allows the holder to proceed with a limited operation.
type Token struct {
	mu   sync.Mutex
	cl   *ConcurrencyLimit // nil once released
	time time.Time
}

// Release returns the Token to the ConcurrencyLimit and returns how long it
// was held. Calling it again is a no-op that returns 0.
func (t *Token) Release() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cl == nil {
		return 0
	}
	cl := t.cl
	t.cl = nil
	cl.ch <- struct{}{}
	dt := time.Since(t.time)
	metricActive.With(cl.labels).Dec()
	metricActiveSeconds.With(cl.labels).Observe(dt.Seconds())
	return dt
}
