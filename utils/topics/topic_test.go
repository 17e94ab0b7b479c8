package topics

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_SubscribeSendLast(t *testing.T) {
	tp := New[int]()
	tp.Publish(1)

	sub := tp.Subscribe(true)
	defer sub.Close()
	v, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, tp.Len())
}

func TestTopic_PublishContext(t *testing.T) {
	tp := New[int]()
	sub := tp.Subscribe(false) // never read
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tp.PublishContext(ctx, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	last, ok := tp.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestSubscription_Close(t *testing.T) {
	tp := New[int]()
	sub := tp.Subscribe(false)
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, tp.Len())
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
