package replicator

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/snapshot"
)

// ErrOutOfSync is returned when a delta frame does not apply to the mirrored
// copy of an object.
var ErrOutOfSync = errors.New("delta frame for object without full copy")

// NewMirror returns an empty Mirror
func NewMirror() *Mirror {
	return &Mirror{
		objects: make(map[snapshot.ObjectID]*mirrorObject),
	}
}

// Mirror is the receiving side of a connection. It applies frames and keeps
// the last value of every slot of every object.
// Mirror implements Sink, so it can be connected to a Replicator directly.
// It is safe for concurrent use.
type Mirror struct {
	mu      sync.Mutex
	objects map[snapshot.ObjectID]*mirrorObject
	frames  int
}

type mirrorObject struct {
	snapshotID uint32
	version    uint32
	parent     *uuid.UUID
	slots      map[snapshot.Slot][]byte
}

// Send decodes and applies a frame
func (m *Mirror) Send(ctx context.Context, conn snapshot.ConnID, frame []byte) error {
	return m.Apply(frame)
}

// Apply decodes and applies a frame
func (m *Mirror) Apply(data []byte) error {
	var f protocol.Frame
	if err := f.Unmarshal(data); err != nil {
		return errors.Wrap(err, "decode frame")
	}
	return m.ApplyFrame(&f)
}

// ApplyFrame applies a decoded frame. Values are copied.
func (m *Mirror) ApplyFrame(f *protocol.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := snapshot.ObjectID(f.ObjectID)
	o, exists := m.objects[id]
	if f.Full {
		o = &mirrorObject{
			slots: make(map[snapshot.Slot][]byte, len(f.Entries)),
		}
		m.objects[id] = o
	} else if !exists || o.version != f.Version {
		return errors.Wrapf(ErrOutOfSync, "object %d version %d", id, f.Version)
	}

	o.snapshotID = f.SnapshotID
	o.version = f.Version
	o.parent = f.ParentID
	for _, sv := range f.Entries {
		o.slots[snapshot.Slot(sv.Slot)] = bytes.Clone(sv.Value)
	}
	m.frames++
	return nil
}

// ApplyCheckpoint seeds the Mirror from a checkpoint
func (m *Mirror) ApplyCheckpoint(cp *protocol.Checkpoint) error {
	for i := range cp.Frames {
		if err := m.ApplyFrame(&cp.Frames[i]); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the mirrored value of a slot
func (m *Mirror) Value(id snapshot.ObjectID, slot snapshot.Slot) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, exists := m.objects[id]
	if !exists {
		return nil, false
	}
	v, exists := o.slots[slot]
	return v, exists
}

// Len returns the number of mirrored objects
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Frames returns the number of frames applied
func (m *Mirror) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// SnapshotID returns the SnapshotID of the last frame applied for an object
func (m *Mirror) SnapshotID(id snapshot.ObjectID) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, exists := m.objects[id]; exists {
		return o.snapshotID
	}
	return 0
}

// ParentID returns the parent sent with the last frame for an object
func (m *Mirror) ParentID(id snapshot.ObjectID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, exists := m.objects[id]; exists && o.parent != nil {
		return *o.parent, true
	}
	return uuid.Nil, false
}

// Verify checks that the mirrored slots of an object match a State exactly
func (m *Mirror) Verify(st *snapshot.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := st.ObjectID()
	o, exists := m.objects[id]
	if !exists {
		return fmt.Errorf("object %d: not mirrored", id)
	}
	if o.version != st.Version {
		return fmt.Errorf("object %d: version %d, expected %d", id, o.version, st.Version)
	}
	if len(o.slots) != st.Len() {
		return fmt.Errorf("object %d: %d slots, expected %d", id, len(o.slots), st.Len())
	}
	for _, e := range st.Entries() {
		v, exists := o.slots[e.Slot()]
		if !exists {
			return fmt.Errorf("object %d slot %d: missing", id, e.Slot())
		}
		if !bytes.Equal(v, e.Value()) {
			return fmt.Errorf("object %d slot %d: value mismatch", id, e.Slot())
		}
	}
	return nil
}
