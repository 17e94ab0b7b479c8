package snapshot

// Slot identifies a replicated field within a networked object
type Slot uint32

// Entry is the tracked state of a single slot.
// All fields are owned by the State and only change through its methods.
type Entry struct {
	slot       Slot
	value      []byte
	hash       uint64
	salted     bool   // parent salt was mixed into hash
	generation uint64 // bumped on every content change, starts at 1
	acked      *ConnSet
}

func (e *Entry) Slot() Slot {
	return e.slot
}

// Value returns the current serialized value.
// Careful, this does not make a copy. Callers must not modify it, and it is
// only valid until the next write to this slot, which reuses the buffer.
func (e *Entry) Value() []byte {
	return e.value
}

func (e *Entry) Hash() uint64 {
	return e.hash
}

// Salted reports if the parent salt was part of the hash at the last write.
// This is false if salting was requested while the State had no parent.
func (e *Entry) Salted() bool {
	return e.salted
}

// Generation identifies the current value of the entry. Acknowledgements
// carry the generation that was sent, so that a value that changed in the
// meantime is not marked as received.
func (e *Entry) Generation() uint64 {
	return e.generation
}

// Acknowledged returns the set of connections that have received the
// current value.
func (e *Entry) Acknowledged() *ConnSet {
	return e.acked
}

func (e *Entry) Size() int {
	return len(e.value)
}
