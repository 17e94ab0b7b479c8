package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnSet(t *testing.T) {
	s := NewConnSet()
	assert.True(t, s.Empty())
	assert.False(t, s.Contains(1))

	s.Add(30)
	s.Add(1)
	s.Add(200)
	s.Add(1)
	assert.False(t, s.Empty())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(1))

	// Deterministic sorted output
	for i := 0; i < 10; i++ {
		assert.Equal(t, []ConnID{1, 30, 200}, s.List())
		assert.Equal(t, "1 30 200", s.String())
	}

	s.Remove(30)
	s.Remove(31) // absent
	assert.Equal(t, []ConnID{1, 200}, s.List())

	s.Clear()
	assert.True(t, s.Empty())
	assert.Equal(t, []ConnID{}, s.List())
	assert.Equal(t, "", s.String())
}
