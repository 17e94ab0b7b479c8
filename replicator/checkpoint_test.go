package replicator

import (
	"context"
	"testing"
	"time"

	"github.com/PowerDNS/simpleblob/backends/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PowerDNS/deltasnap/protocol"
)

func TestReplicator_Checkpoint(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := newTestReplicator(t, 3)
	set(t, r, 2, 9, []byte("later")...)

	sub := r.Events().CheckpointStored.Subscribe(true)
	defer sub.Close()

	name, err := r.Checkpoint(ctx, st, "inst1")
	require.NoError(t, err)
	ni, err := protocol.ParseName(name)
	require.NoError(t, err)
	assert.Equal(t, "test", ni.ReplicatorName)
	assert.Equal(t, "inst1", ni.InstanceID)

	info, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, name, info.NameInfo.FullName)
	assert.Equal(t, 3, info.Objects)

	// Unrelated blobs are ignored in listings
	require.NoError(t, st.Store(ctx, "test__notes.txt", []byte("x")))
	require.NoError(t, st.Store(ctx, protocol.Name("other", "inst1", time.Now()), []byte("x")))

	list, err := ListCheckpoints(ctx, st, "test")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, name, list[0].FullName)

	cp, err := LoadCheckpoint(ctx, st, name)
	require.NoError(t, err)
	assert.Equal(t, "inst1", cp.Instance)
	assert.Equal(t, protocol.CurrentFormatVersion, cp.FormatVersion)
	require.Len(t, cp.Frames, 3)
	for _, f := range cp.Frames {
		assert.True(t, f.Full)
	}

	// A mirror seeded from the checkpoint matches the live objects
	m := NewMirror()
	require.NoError(t, m.ApplyCheckpoint(cp))
	verifyAll(t, r, m)
}

func TestReplicator_CheckpointDoesNotAcknowledge(t *testing.T) {
	r := newTestReplicator(t, 1)
	r.Connect(1, NewMirror())
	cp := r.CheckpointData("inst1", time.Now())
	require.Len(t, cp.Frames, 1)
	assert.Len(t, cp.Frames[0].Entries, 4)

	st, _ := r.Object(1)
	assert.Len(t, st.Pending(1), 4)
	assert.Equal(t, uint32(0), st.SnapshotID)

	// Values are copies
	cp.Frames[0].Entries[0].Value[0] = 0xff
	e, _ := st.Lookup(0)
	assert.Equal(t, byte(1), e.Value()[0])
}

func TestLoadCheckpoint_missing(t *testing.T) {
	_, err := LoadCheckpoint(context.Background(), memory.New(), "nope")
	assert.Error(t, err)
}
