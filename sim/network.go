package sim

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/PowerDNS/deltasnap/replicator"
	"github.com/PowerDNS/deltasnap/snapshot"
)

// ErrDropped is returned by LossySink for frames the network lost
var ErrDropped = errors.New("frame dropped")

// NewLossySink wraps a sink and drops about lossRate of all frames
func NewLossySink(next replicator.Sink, lossRate float64, seed int64) *LossySink {
	return &LossySink{
		next:     next,
		lossRate: lossRate,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// LossySink simulates an unreliable network
type LossySink struct {
	next replicator.Sink

	mu       sync.Mutex
	lossRate float64
	rng      *rand.Rand
	dropped  int
}

func (s *LossySink) Send(ctx context.Context, conn snapshot.ConnID, frame []byte) error {
	s.mu.Lock()
	drop := s.rng.Float64() < s.lossRate
	if drop {
		s.dropped++
	}
	s.mu.Unlock()
	if drop {
		return ErrDropped
	}
	return s.next.Send(ctx, conn, frame)
}

// SetLossRate changes the fraction of dropped frames
func (s *LossySink) SetLossRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lossRate = rate
}

// Dropped returns the number of dropped frames
func (s *LossySink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
