package snapshot

import (
	"hash"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

// ObjectID identifies the networked object a State belongs to
type ObjectID uint32

// Change describes the effect of a write
type Change int

const (
	Unchanged Change = iota // same hash as before, nothing was modified
	Updated                 // existing slot got a new value
	Added                   // first write for this slot
)

func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Added:
		return "added"
	default:
		return "invalid"
	}
}

// ValueCache produces the serialized form of a typed value for a slot,
// possibly reusing an earlier serialization.
type ValueCache interface {
	GetOrSerialize(slot Slot, value any) ([]byte, error)
}

// NewState creates an empty State that hashes with 64-bit MurmurHash3.
func NewState(objectID ObjectID) *State {
	return NewStateWithHash(objectID, murmur3.New64())
}

// NewStateWithHash creates an empty State with a custom hash.
// The State takes ownership of h.
func NewStateWithHash(objectID ObjectID, h hash.Hash64) *State {
	return &State{
		objectID: objectID,
		index:    make(map[Slot]*Entry),
		updated:  NewConnSet(),
		h:        h,
	}
}

// State tracks the last serialized value of every slot of one networked object,
// and which connections have received those values.
//
// State does not lock. All calls must come from the goroutine that owns the
// object, or be serialized by the caller.
type State struct {
	// Protocol counters, owned by the replication protocol
	SnapshotID uint32
	Version    uint32

	objectID  ObjectID
	entries   []*Entry // in order of first write
	index     map[Slot]*Entry
	updated   *ConnSet // connections that have all current entries
	parent    parentSalt
	totalSize int
	h         hash.Hash64
}

func (s *State) ObjectID() ObjectID {
	return s.objectID
}

// Entries returns all entries in order of their first write.
// The returned slice must not be modified.
func (s *State) Entries() []*Entry {
	return s.entries
}

// Lookup returns the entry for a slot
func (s *State) Lookup(slot Slot) (*Entry, bool) {
	e, exists := s.index[slot]
	return e, exists
}

func (s *State) Len() int {
	return len(s.entries)
}

// TotalSize returns the sum of the value sizes of all entries
func (s *State) TotalSize() int {
	return s.totalSize
}

// UpdatedConnections returns the connections that were up to date on all
// entries when last checked. Any change to any entry clears this set.
func (s *State) UpdatedConnections() *ConnSet {
	return s.updated
}

// RemoveConnection forgets everything that was acknowledged by a connection.
// Call this when a peer disconnects.
func (s *State) RemoveConnection(id ConnID) {
	s.updated.Remove(id)
	for _, e := range s.entries {
		e.acked.Remove(id)
	}
	metricConnectionRemovals.Inc()
}

// ClearConnections forgets all acknowledgements, which causes all entries to
// be sent again to every connection.
func (s *State) ClearConnections() {
	s.updated.Clear()
	for _, e := range s.entries {
		e.acked.Clear()
	}
}

// AddSerialized records the current serialized value of a slot.
//
// If saltWithParent is set and the State has a parent, the parent is mixed
// into the hash, so that the value is considered changed when the parent
// changes. Without a parent the value is hashed unsalted, which is visible
// through Entry.Salted.
//
// Equality is decided by the 64-bit hash alone. A hash collision would cause
// a missed update; this is accepted given the collision probability.
//
// The value is copied, the caller keeps ownership of the passed slice.
// Passing a nil value is a programming error and panics.
func (s *State) AddSerialized(slot Slot, value []byte, saltWithParent bool) Change {
	if value == nil {
		panic("snapshot: AddSerialized called with nil value")
	}

	salted := saltWithParent && s.parent.present
	if saltWithParent && !salted {
		metricUnsaltedWrites.Inc()
	}
	h := s.hash(value, salted)

	e, exists := s.index[slot]
	if exists {
		if e.hash == h {
			metricWritesUnchanged.Inc()
			return Unchanged
		}
		s.totalSize -= len(e.value)
		e.value = append(e.value[:0], value...)
		e.hash = h
		e.salted = salted
		e.generation++
		s.totalSize += len(e.value)
		e.acked.Clear()
		s.updated.Clear()
		metricWritesUpdated.Inc()
		return Updated
	}

	e = &Entry{
		slot:       slot,
		value:      append(make([]byte, 0, len(value)), value...),
		hash:       h,
		salted:     salted,
		generation: 1,
		acked:      NewConnSet(),
	}
	s.entries = append(s.entries, e)
	s.index[slot] = e
	s.updated.Clear()
	s.totalSize += len(e.value)
	metricWritesAdded.Inc()
	return Added
}

// AddCached serializes value through the cache and records it with
// AddSerialized. A serialization error leaves the State untouched.
func (s *State) AddCached(cache ValueCache, slot Slot, value any, saltWithParent bool) (Change, error) {
	if cache == nil {
		panic("snapshot: AddCached called with nil cache")
	}
	b, err := cache.GetOrSerialize(slot, value)
	if err != nil {
		return Unchanged, errors.Wrapf(err, "serialize slot %d", slot)
	}
	if b == nil {
		b = []byte{}
	}
	return s.AddSerialized(slot, b, saltWithParent), nil
}

// Acknowledge marks that conn received the given generation of a slot.
// It returns false if the slot is unknown or its value changed since that
// generation was sent.
func (s *State) Acknowledge(conn ConnID, slot Slot, generation uint64) bool {
	e, exists := s.index[slot]
	if !exists || e.generation != generation {
		return false
	}
	e.acked.Add(conn)
	return true
}

// AcknowledgeAll adds conn to the updated connections if it has acknowledged
// every entry. It returns true if conn is now up to date.
func (s *State) AcknowledgeAll(conn ConnID) bool {
	if s.updated.Contains(conn) {
		return true
	}
	for _, e := range s.entries {
		if !e.acked.Contains(conn) {
			return false
		}
	}
	s.updated.Add(conn)
	return true
}

// Pending returns the entries that conn has not acknowledged, in order of
// their first write.
func (s *State) Pending(conn ConnID) []*Entry {
	if s.updated.Contains(conn) {
		return nil
	}
	var pending []*Entry
	for _, e := range s.entries {
		if !e.acked.Contains(conn) {
			pending = append(pending, e)
		}
	}
	return pending
}

func (s *State) hash(value []byte, salted bool) uint64 {
	s.h.Reset()
	_, _ = s.h.Write(value) // never fails
	if salted {
		_, _ = s.h.Write(s.parent.enc[:])
	}
	return s.h.Sum64()
}
