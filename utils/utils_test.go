package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayValue(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		max  int
		want string
	}{
		{"empty", []byte{}, 0, " []"},
		{"nil", nil, 0, " []"},
		{"safe", []byte("abc"), 0, "abc [61 62 63]"},
		{"varint", []byte{0x08, 0xac, 0x02}, 0, "... [08 ac 02]"},
		{"string", []byte{0x0a, 0x02, 'h', 'i'}, 0, "..hi [0a 02 68 69]"},
		{"truncated", []byte("abcdef"), 2, "ab [61 62] (+4 bytes)"},
		{"max-equal", []byte("ab"), 2, "ab [61 62]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equalf(t, tt.want, DisplayValue(tt.b, tt.max), "DisplayValue(%v)", tt.b)
		})
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, IsCanceled(ctx))
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestTimeDiff(t *testing.T) {
	t0 := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, 1500*time.Millisecond, TimeDiff(t0.Add(1500400*time.Microsecond), t0))
}
