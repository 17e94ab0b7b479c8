package protocol

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestCheckpoint(objects int) *Checkpoint {
	parent := uuid.New()
	c := &Checkpoint{
		FormatVersion: CurrentFormatVersion,
		CompatVersion: WriteCompatFormatVersion,
		TimestampNano: uint64(time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano()),
		Instance:      "inst1",
	}
	for i := 0; i < objects; i++ {
		f := Frame{
			ObjectID:   uint32(i + 1),
			SnapshotID: 1,
			Full:       true,
		}
		if i%2 == 0 {
			f.ParentID = &parent
		}
		for j := 0; j < 10; j++ {
			f.Entries = append(f.Entries, SlotValue{
				Slot:  uint32(j),
				Value: []byte{0x08, byte(i), byte(j)},
				Hash:  uint64(i*1000 + j + 1),
			})
		}
		c.Frames = append(c.Frames, f)
	}
	return c
}

func TestCheckpoint_roundtrip(t *testing.T) {
	c := makeTestCheckpoint(5)
	var got Checkpoint
	require.NoError(t, got.Unmarshal(c.Marshal()))
	assert.Equal(t, *c, got)
}

func TestDumpData_LoadData(t *testing.T) {
	c := makeTestCheckpoint(100)
	data, st, err := DumpData(c)
	require.NoError(t, err)
	assert.Equal(t, len(c.Marshal()), int(st.ProtobufSize))
	assert.Equal(t, len(data), int(st.CompressedSize))

	got, err := LoadData(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestLoadData_errors(t *testing.T) {
	_, err := LoadData([]byte("not gzip"))
	assert.Error(t, err)

	c := makeTestCheckpoint(1)
	c.CompatVersion = CurrentFormatVersion + 1
	data, _, err := DumpData(c)
	require.NoError(t, err)
	_, err = LoadData(data)
	assert.ErrorContains(t, err, "requires format version")
}

func BenchmarkDumpData(b *testing.B) {
	c := makeTestCheckpoint(10_000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := DumpData(c)
		if err != nil {
			b.Fatal(err)
		}
	}
}
