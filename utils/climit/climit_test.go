package climit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestConcurrencyLimit(t *testing.T) {
	cl := New("test", "send", 2, nil)
	assert.Equal(t, 2, cl.Limit())
	acquired := make(chan *Token)

	var count atomic.Int32
	go func() {
		for i := 0; i < 4; i++ {
			tok := cl.Acquire()
			count.Inc()
			acquired <- tok
		}
	}()

	t1 := <-acquired
	t2 := <-acquired
	assert.Equal(t, int32(2), count.Load())
	select {
	case <-acquired:
		t.Fatal("acquired more tokens than the limit")
	case <-time.After(10 * time.Millisecond):
	}

	t2.Release()
	t3 := <-acquired
	assert.Equal(t, int32(3), count.Load())

	// Double release must not free a second slot
	assert.Zero(t, t2.Release())
	select {
	case <-acquired:
		t.Fatal("double release freed a token")
	case <-time.After(10 * time.Millisecond):
	}

	t1.Release()
	t4 := <-acquired
	assert.Equal(t, int32(4), count.Load())

	t3.Release()
	t4.Release()
}

func TestConcurrencyLimit_AcquireContext(t *testing.T) {
	cl := New("test", "ctx", 1, nil)
	tok, err := cl.AcquireContext(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = cl.AcquireContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	tok.Release()
	tok, err = cl.AcquireContext(context.Background())
	require.NoError(t, err)
	tok.Release()
}

func TestConcurrencyLimit_MinimumOfOne(t *testing.T) {
	cl := New("test", "zero", 0, nil)
	assert.Equal(t, 1, cl.Limit())
}
