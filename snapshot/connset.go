package snapshot

import (
	"sort"
	"strconv"
	"strings"
)

// ConnID identifies a remote peer. It is only ever used as a set member.
type ConnID uint32

// NewConnSet returns an empty ConnSet
func NewConnSet() *ConnSet {
	return &ConnSet{
		m: make(map[ConnID]struct{}),
	}
}

// ConnSet is a set of connections
type ConnSet struct {
	m map[ConnID]struct{}
}

func (s *ConnSet) Add(id ConnID) {
	s.m[id] = struct{}{}
}

func (s *ConnSet) Remove(id ConnID) {
	delete(s.m, id)
}

func (s *ConnSet) Contains(id ConnID) bool {
	_, exists := s.m[id]
	return exists
}

func (s *ConnSet) Len() int {
	return len(s.m)
}

func (s *ConnSet) Empty() bool {
	return len(s.m) == 0
}

// Clear removes all connections. It keeps the allocated map, because sets
// are cleared on every change of a slot.
func (s *ConnSet) Clear() {
	clear(s.m)
}

// List returns the connections in ascending order
func (s *ConnSet) List() []ConnID {
	ids := make([]ConnID, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}

func (s *ConnSet) String() string {
	ids := s.List()
	p := make([]string, len(ids))
	for i, id := range ids {
		p[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(p, " ")
}
