package protocol

import (
	"github.com/CrowdStrike/csproto"
	"github.com/pkg/errors"
)

const (
	// CurrentFormatVersion is the current checkpoint format we write
	CurrentFormatVersion uint32 = 1

	// CompatFormatVersion is the oldest checkpoint version we can read.
	CompatFormatVersion uint32 = 1

	// WriteCompatFormatVersion is the oldest checkpoint version that checkpoints
	// written by this program version are compatible with.
	WriteCompatFormatVersion uint32 = 1
)

// Protobuf field numbers
const (
	FieldCheckpointFormatVersion = 1
	FieldCheckpointCompatVersion = 2
	FieldCheckpointTimestampNano = 3
	FieldCheckpointInstance      = 4
	FieldCheckpointFrames        = 5
)

// Checkpoint holds a full frame for every object of a replicator at one point
// in time. New connections can be seeded from it.
type Checkpoint struct {
	FormatVersion uint32 // version of this checkpoint format
	CompatVersion uint32 // compatible with clients that support at least this version
	TimestampNano uint64
	Instance      string
	Frames        []Frame
}

func (c *Checkpoint) Marshal() []byte {
	frames := make([][]byte, len(c.Frames))
	size := sizeVarintField(uint64(c.FormatVersion)) +
		sizeVarintField(uint64(c.CompatVersion))
	if c.TimestampNano > 0 {
		size += TagSize0To15 + 8
	}
	if len(c.Instance) > 0 {
		size += sizeBytesField(len(c.Instance))
	}
	for i := range c.Frames {
		frames[i] = c.Frames[i].Marshal()
		size += sizeBytesField(len(frames[i]))
	}

	b := make([]byte, size)
	offset := 0
	offset += putVarintField(b[offset:], FieldCheckpointFormatVersion, uint64(c.FormatVersion))
	offset += putVarintField(b[offset:], FieldCheckpointCompatVersion, uint64(c.CompatVersion))
	if c.TimestampNano > 0 {
		offset += putFixed64Field(b[offset:], FieldCheckpointTimestampNano, c.TimestampNano)
	}
	if len(c.Instance) > 0 {
		offset += putBytesField(b[offset:], FieldCheckpointInstance, []byte(c.Instance))
	}
	for _, f := range frames {
		offset += putBytesField(b[offset:], FieldCheckpointFrames, f)
	}
	return b[:offset]
}

func (c *Checkpoint) Unmarshal(data []byte) error {
	d := csproto.NewDecoder(data)
	d.SetMode(csproto.DecoderModeFast)
	for d.More() {
		tag, wireType, err := d.DecodeTag()
		if err != nil {
			return err
		}
		switch tag {
		case FieldCheckpointFormatVersion:
			c.FormatVersion, err = getUInt32(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldCheckpointCompatVersion:
			c.CompatVersion, err = getUInt32(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldCheckpointTimestampNano:
			c.TimestampNano, err = getFixed64(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldCheckpointInstance:
			c.Instance, err = getString(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldCheckpointFrames:
			msg, err := getBytes(d, tag, wireType)
			if err != nil {
				return err
			}
			var f Frame
			if err := f.Unmarshal(msg); err != nil {
				return errors.Wrapf(err, "frame %d", len(c.Frames))
			}
			c.Frames = append(c.Frames, f)
		default:
			if _, err := d.Skip(tag, wireType); err != nil {
				return err
			}
		}
	}
	return nil
}
