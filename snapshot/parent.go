package snapshot

import "github.com/google/uuid"

// ParentSaltSize is the number of salt bytes a parent adds to the hash input
const ParentSaltSize = 16

// parentSalt is either absent, or holds the parent and its cached encoding.
// The zero value is the absent variant.
type parentSalt struct {
	present bool
	id      uuid.UUID
	enc     [ParentSaltSize]byte
}

func (p *parentSalt) set(id uuid.UUID) {
	if p.present && p.id == id {
		return
	}
	p.enc = [ParentSaltSize]byte(id) // RFC 4122 byte order
	p.id = id
	p.present = true
}

// SetParentID sets the parent used to salt hashes of parent-relative values.
// Setting the current parent again does nothing. Existing entries keep their
// hashes and ack state until they are written again with salting enabled.
func (s *State) SetParentID(id uuid.UUID) {
	s.parent.set(id)
}

// ClearParentID removes the parent. Salted writes are hashed unsalted until a
// new parent is set.
func (s *State) ClearParentID() {
	s.parent = parentSalt{}
}

// ParentID returns the current parent, if any
func (s *State) ParentID() (uuid.UUID, bool) {
	return s.parent.id, s.parent.present
}

func (s *State) HasParent() bool {
	return s.parent.present
}
