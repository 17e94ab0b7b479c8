package replicator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/replicator/events"
	"github.com/PowerDNS/deltasnap/snapshot"
	"github.com/PowerDNS/deltasnap/utils"
)

// TickStats describes the outcome of a single tick
type TickStats = events.TickStats

// SendError is returned by Tick when some frames could not be sent.
// Their entries stay unacknowledged and will be sent again.
type SendError struct {
	Failed int
	Err    error // first failure
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%d frame(s) failed to send: %v", e.Failed, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type ack struct {
	slot       snapshot.Slot
	generation uint64
}

// job is a single frame for a single connection
type job struct {
	conn    *connection
	st      *snapshot.State
	version uint32
	full    bool
	acks    []ack
	data    []byte
	err     error
}

func newJob(c *connection, st *snapshot.State, full bool, entries []*snapshot.Entry) *job {
	f := protocol.Frame{
		ObjectID:   uint32(st.ObjectID()),
		SnapshotID: st.SnapshotID,
		Version:    st.Version,
		Full:       full,
		Entries:    make([]protocol.SlotValue, len(entries)),
	}
	if id, ok := st.ParentID(); ok {
		f.ParentID = &id
	}
	j := &job{
		conn:    c,
		st:      st,
		version: st.Version,
		full:    full,
		acks:    make([]ack, len(entries)),
	}
	for i, e := range entries {
		f.Entries[i] = protocol.SlotValue{
			Slot:  uint32(e.Slot()),
			Value: e.Value(),
			Hash:  e.Hash(),
		}
		j.acks[i] = ack{slot: e.Slot(), generation: e.Generation()}
	}
	j.data = f.Marshal() // copies the values
	return j
}

// Tick sends every connection the entries it has not acknowledged yet, and
// acknowledges them after a successful send.
//
// A connection that has no complete copy of an object receives a full frame.
// All other connections receive a delta frame with only the pending entries,
// or nothing at all if they are up to date.
func (r *Replicator) Tick(ctx context.Context) (TickStats, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	t0 := time.Now()
	jobs, stats := r.collect()
	r.send(ctx, jobs)
	err := r.apply(jobs, &stats)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	stats.Duration = time.Since(t0)

	metricTicks.WithLabelValues(r.name).Inc()
	metricTickSeconds.WithLabelValues(r.name).Observe(stats.Duration.Seconds())
	if err != nil {
		metricTickFailures.WithLabelValues(r.name).Inc()
		if r.opt.Health != nil {
			r.opt.Health.AddFailure(err)
		}
	} else {
		if r.opt.Health != nil {
			r.opt.Health.AddSuccess()
		}
		if r.opt.Start != nil {
			r.opt.Start.SetPassedInitialTick()
		}
	}

	r.l.WithFields(logrus.Fields{
		"tick":          stats.Tick,
		"frames":        stats.Frames,
		"full_frames":   stats.FullFrames,
		"failed_frames": stats.FailedFrames,
		"entries":       stats.Entries,
		"bytes":         stats.Bytes,
		"time_total":    utils.TimeDiff(time.Now(), t0),
	}).Trace("Tick done")

	if pubErr := r.opt.Events.TickDone.PublishContext(ctx, stats); pubErr != nil && err == nil {
		err = pubErr
	}
	return stats, err
}

// collect builds the frames for all connections under the owner lock
func (r *Replicator) collect() (jobs []*job, stats TickStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticks++
	stats.Tick = r.ticks
	stats.Objects = len(r.objects)
	stats.Connections = len(r.conns)

	conns := make([]*connection, 0, len(r.conns))
	for _, id := range r.connIDs() {
		conns = append(conns, r.conns[id])
	}

	for _, id := range r.objectIDs() {
		st := r.objects[id]
		type pending struct {
			c       *connection
			full    bool
			entries []*snapshot.Entry
		}
		var todo []pending
		for _, c := range conns {
			full := c.needsFull(st)
			if full {
				todo = append(todo, pending{c, true, st.Entries()})
				continue
			}
			if st.UpdatedConnections().Contains(c.id) {
				continue
			}
			entries := st.Pending(c.id)
			if len(entries) == 0 {
				st.AcknowledgeAll(c.id)
				continue
			}
			todo = append(todo, pending{c, false, entries})
		}
		if len(todo) == 0 {
			continue
		}

		st.SnapshotID++
		for _, p := range todo {
			jobs = append(jobs, newJob(p.c, st, p.full, p.entries))
		}
	}
	return jobs, stats
}

// send sends all frames concurrently, bounded by the send limit.
// Every job has its err set when it returns.
func (r *Replicator) send(ctx context.Context, jobs []*job) {
	var wg sync.WaitGroup
	for i, j := range jobs {
		tok, err := r.limit.AcquireContext(ctx)
		if err != nil {
			for _, rest := range jobs[i:] {
				rest.err = err
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer tok.Release()
			t0 := time.Now()
			j.err = j.conn.sink.Send(ctx, j.conn.id, j.data)
			metricSendSeconds.WithLabelValues(r.name).Observe(time.Since(t0).Seconds())
		}()
	}
	wg.Wait()
}

// apply acknowledges the successfully sent frames under the owner lock
func (r *Replicator) apply(jobs []*job, stats *TickStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, j := range jobs {
		if j.err != nil {
			stats.FailedFrames++
			metricFramesFailed.WithLabelValues(r.name).Inc()
			if firstErr == nil {
				firstErr = j.err
			}
			r.l.WithError(j.err).WithFields(logrus.Fields{
				"conn":   j.conn.id,
				"object": j.st.ObjectID(),
			}).Debug("Frame send failed")
			continue
		}

		stats.Frames++
		stats.Entries += len(j.acks)
		stats.Bytes += len(j.data)
		kind := "delta"
		if j.full {
			stats.FullFrames++
			kind = "full"
		}
		metricFramesSent.WithLabelValues(r.name, kind).Inc()
		metricBytesSent.WithLabelValues(r.name).Add(float64(len(j.data)))

		// The connection or the object may have been replaced, or the object
		// resynced, while we were sending.
		if r.conns[j.conn.id] != j.conn ||
			r.objects[j.st.ObjectID()] != j.st ||
			j.st.Version != j.version {
			continue
		}
		for _, a := range j.acks {
			j.st.Acknowledge(j.conn.id, a.slot, a.generation)
		}
		if j.full {
			j.conn.seen[j.st.ObjectID()] = j.version
		}
		j.st.AcknowledgeAll(j.conn.id)
	}
	if stats.FailedFrames > 0 {
		return &SendError{Failed: stats.FailedFrames, Err: firstErr}
	}
	return nil
}

// Run ticks until the context is closed. Send failures are logged and
// retried on the next tick.
func (r *Replicator) Run(ctx context.Context, interval time.Duration) error {
	r.l.WithField("interval", interval).Info("Replicator running")
	for {
		stats, err := r.Tick(ctx)
		if err != nil {
			if utils.IsCanceled(ctx) {
				return ctx.Err()
			}
			r.l.WithError(err).Warn("Tick failed, will retry")
		} else if stats.Frames > 0 {
			r.l.WithFields(logrus.Fields{
				"tick":   stats.Tick,
				"frames": stats.Frames,
				"bytes":  stats.Bytes,
			}).Debug("Tick sent frames")
		}

		wait := interval - stats.Duration
		if wait < 0 {
			wait = 0
		}
		if err := utils.SleepContext(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Replicator) connIDs() []snapshot.ConnID {
	ids := make([]snapshot.ConnID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
