// Package replicator owns a set of snapshot States and replicates them to
// connected peers as delta frames.
package replicator

import (
	"context"
	"sort"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/PowerDNS/deltasnap/replicator/events"
	"github.com/PowerDNS/deltasnap/snapshot"
	"github.com/PowerDNS/deltasnap/status/healthtracker"
	"github.com/PowerDNS/deltasnap/status/starttracker"
	"github.com/PowerDNS/deltasnap/utils"
	"github.com/PowerDNS/deltasnap/utils/climit"
)

// DefaultSendConcurrency is used when Options.SendConcurrency is not set
const DefaultSendConcurrency = 8

// ErrUnknownObject is returned by Update for objects that are not tracked
var ErrUnknownObject = errors.New("unknown object")

// Sink delivers encoded frames to a connection.
// Send is called concurrently, also for the same connection.
type Sink interface {
	Send(ctx context.Context, conn snapshot.ConnID, frame []byte) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, conn snapshot.ConnID, frame []byte) error

func (f SinkFunc) Send(ctx context.Context, conn snapshot.ConnID, frame []byte) error {
	return f(ctx, conn, frame)
}

type Options struct {
	// Logger defaults to the logrus standard logger
	Logger logrus.FieldLogger
	// Events are used to publish events to
	Events *events.Events
	// SendConcurrency limits the number of frames in flight during a tick
	SendConcurrency int
	// Health tracks tick failures, optional
	Health *healthtracker.HealthTracker
	// CheckpointHealth tracks checkpoint store failures, optional
	CheckpointHealth *healthtracker.HealthTracker
	// Start tracks the startup phase, optional
	Start *starttracker.StartTracker
}

// New creates a Replicator without objects or connections
func New(name string, opt Options) *Replicator {
	var logger logrus.FieldLogger = logrus.StandardLogger()
	if opt.Logger != nil {
		logger = opt.Logger
	}
	logger = logger.WithField("replicator", name)
	if opt.Events == nil {
		opt.Events = events.New()
	}
	if opt.SendConcurrency <= 0 {
		opt.SendConcurrency = DefaultSendConcurrency
	}
	r := &Replicator{
		name:    name,
		opt:     opt,
		l:       logger,
		limit:   climit.New(name, "send", opt.SendConcurrency, logger),
		objects: make(map[snapshot.ObjectID]*snapshot.State),
		conns:   make(map[snapshot.ConnID]*connection),
	}
	r.mu.Logger = logger
	r.mu.Name = "replicator"
	return r
}

// Replicator is the owning task of its States. All access to a tracked
// State must go through Update.
type Replicator struct {
	name  string
	opt   Options
	l     logrus.FieldLogger
	limit *climit.ConcurrencyLimit

	tickMu sync.Mutex // serializes Tick

	mu      utils.MonitoredMutex // protects the fields below and all States
	objects map[snapshot.ObjectID]*snapshot.State
	conns   map[snapshot.ConnID]*connection
	ticks   uint64
}

type connection struct {
	id   snapshot.ConnID
	sink Sink
	// Object version for which a full frame was delivered
	seen map[snapshot.ObjectID]uint32
}

// needsFull reports if the connection has no complete copy of the object
func (c *connection) needsFull(st *snapshot.State) bool {
	v, exists := c.seen[st.ObjectID()]
	return !exists || v != st.Version
}

func (r *Replicator) Name() string {
	return r.name
}

func (r *Replicator) Events() *events.Events {
	return r.opt.Events
}

// Track starts replicating a State. A State with the same ObjectID is
// replaced and every connection will receive a full frame.
func (r *Replicator) Track(st *snapshot.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := st.ObjectID()
	if _, exists := r.objects[id]; exists {
		r.l.WithField("object", id).Warn("Replacing tracked object")
	}
	r.objects[id] = st
	for _, c := range r.conns {
		delete(c.seen, id)
	}
}

// Untrack stops replicating an object
func (r *Replicator) Untrack(id snapshot.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, id)
	for _, c := range r.conns {
		delete(c.seen, id)
	}
}

// Object returns a tracked State. The State must only be accessed through
// Update while the Replicator may be running.
func (r *Replicator) Object(id snapshot.ObjectID) (*snapshot.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, exists := r.objects[id]
	return st, exists
}

// Objects returns the IDs of the tracked objects in ascending order
func (r *Replicator) Objects() []snapshot.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objectIDs()
}

// Update calls fn with a tracked State while holding the owner lock
func (r *Replicator) Update(id snapshot.ObjectID, fn func(st *snapshot.State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, exists := r.objects[id]
	if !exists {
		return errors.Wrapf(ErrUnknownObject, "object %d", id)
	}
	return fn(st)
}

// Connect adds a connection. An existing connection with the same ID is
// treated as a reconnect and starts from scratch.
func (r *Replicator) Connect(id snapshot.ConnID, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[id]; exists {
		r.l.WithField("conn", id).Info("Reconnect, forgetting acknowledgements")
		r.removeConnection(id)
	}
	r.conns[id] = &connection{
		id:   id,
		sink: sink,
		seen: make(map[snapshot.ObjectID]uint32),
	}
	metricConnections.WithLabelValues(r.name).Set(float64(len(r.conns)))
}

// Disconnect removes a connection and everything it acknowledged
func (r *Replicator) Disconnect(id snapshot.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[id]; !exists {
		return
	}
	r.removeConnection(id)
	delete(r.conns, id)
	metricConnections.WithLabelValues(r.name).Set(float64(len(r.conns)))
}

func (r *Replicator) removeConnection(id snapshot.ConnID) {
	for _, st := range r.objects {
		st.RemoveConnection(id)
	}
}

// Connections returns the connected IDs in ascending order
func (r *Replicator) Connections() []snapshot.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connIDs()
}

// Resync forces full frames to all connections on the next tick
func (r *Replicator) Resync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.objects {
		st.Version++
		st.ClearConnections()
	}
	r.l.WithField("objects", len(r.objects)).Info("Resync requested")
}

// Info summarizes the replicator for status displays
type Info struct {
	Name        string
	Objects     int
	Entries     int
	Connections int
	Size        datasize.ByteSize
	LastTick    events.TickStats
}

func (r *Replicator) Info() Info {
	r.mu.Lock()
	info := Info{
		Name:        r.name,
		Objects:     len(r.objects),
		Connections: len(r.conns),
	}
	for _, st := range r.objects {
		info.Entries += st.Len()
		info.Size += datasize.ByteSize(st.TotalSize())
	}
	r.mu.Unlock()
	info.LastTick, _ = r.opt.Events.TickDone.Last()
	return info
}

func (r *Replicator) objectIDs() []snapshot.ObjectID {
	ids := make([]snapshot.ObjectID, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
