// Package valuecache serializes typed slot values and reuses the previous
// serialization when a slot's value did not change.
package valuecache

import (
	"math"

	"github.com/google/uuid"

	"github.com/PowerDNS/deltasnap/snapshot"
)

// New returns an empty Cache
func New() *Cache {
	return &Cache{
		entries: make(map[snapshot.Slot]cached),
	}
}

// Cache implements snapshot.ValueCache for a single object.
// Like the State it serves, it does not lock.
type Cache struct {
	entries map[snapshot.Slot]cached
	stats   Stats
}

type cached struct {
	value any
	data  []byte
}

type Stats struct {
	Hits   uint64
	Misses uint64
}

// GetOrSerialize returns the serialized value, reusing the previous bytes for
// the slot if the value is equal to the previous one.
// The returned bytes must not be modified.
func (c *Cache) GetOrSerialize(slot snapshot.Slot, value any) ([]byte, error) {
	if prev, exists := c.entries[slot]; exists && sameValue(prev.value, value) {
		c.stats.Hits++
		metricHits.Inc()
		return prev.data, nil
	}
	data, err := Encode(value)
	if err != nil {
		return nil, err
	}
	c.stats.Misses++
	metricMisses.Inc()
	c.entries[slot] = cached{value: value, data: data}
	return data, nil
}

// Forget removes the cached serialization for a slot
func (c *Cache) Forget(slot snapshot.Slot) {
	delete(c.entries, slot)
}

func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	return c.stats
}

// sameValue reports if value serializes to the same bytes as prev.
// Floats are compared by their bits, because -0 == +0 and NaN != NaN.
func sameValue(prev, value any) bool {
	switch v := value.(type) {
	case float32:
		p, ok := prev.(float32)
		return ok && math.Float32bits(p) == math.Float32bits(v)
	case float64:
		p, ok := prev.(float64)
		return ok && math.Float64bits(p) == math.Float64bits(v)
	}
	return reusable(value) && prev == value
}

// reusable reports if equality of the value implies equal serialization.
// This excludes slices and BinaryMarshaler types, which may be pointers or
// contain pointers to data that changed since the last call.
func reusable(value any) bool {
	switch value.(type) {
	case bool, string, uuid.UUID,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
