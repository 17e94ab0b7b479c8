package protocol

import (
	"encoding/binary"

	"github.com/CrowdStrike/csproto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Protobuf field numbers
const (
	FieldFrameObjectID   = 1
	FieldFrameSnapshotID = 2
	FieldFrameVersion    = 3
	FieldFrameParentID   = 4
	FieldFrameFull       = 5
	FieldFrameEntries    = 6
)

// Protobuf field numbers
const (
	FieldSlotValueSlot  = 1
	FieldSlotValueValue = 2
	FieldSlotValueHash  = 3
)

// SlotValue is a single slot update inside a Frame
type SlotValue struct {
	Slot  uint32
	Value []byte
	Hash  uint64
}

func (sv *SlotValue) size() int {
	n := sizeVarintField(uint64(sv.Slot))
	if len(sv.Value) > 0 {
		n += sizeBytesField(len(sv.Value))
	}
	if sv.Hash > 0 {
		n += TagSize0To15 + 8
	}
	return n
}

func (sv *SlotValue) marshalTo(b []byte) int {
	offset := putVarintField(b, FieldSlotValueSlot, uint64(sv.Slot))
	if len(sv.Value) > 0 {
		offset += putBytesField(b[offset:], FieldSlotValueValue, sv.Value)
	}
	if sv.Hash > 0 {
		offset += putFixed64Field(b[offset:], FieldSlotValueHash, sv.Hash)
	}
	return offset
}

// Unmarshal decodes a SlotValue. Value refers to data, it is not copied.
func (sv *SlotValue) Unmarshal(data []byte) error {
	// Special purpose parsing code for speed (no pointer allocs with NewDecoder)
	offset := 0
	dataSize := len(data)
	for offset < dataSize {
		// Get the tag and type
		v, n, err := csproto.DecodeVarint(data[offset:])
		if err != nil {
			return err
		}
		offset += n
		tag := int(v >> 3)
		wireType := csproto.WireType(v & 0x7)

		switch tag {
		case FieldSlotValueSlot:
			if err := expectWT(tag, wireType, csproto.WireTypeVarint); err != nil {
				return err
			}
			v, n, err := csproto.DecodeVarint(data[offset:])
			if err != nil {
				return err
			}
			offset += n
			sv.Slot = uint32(v)
		case FieldSlotValueValue:
			if err := expectWT(tag, wireType, csproto.WireTypeLengthDelimited); err != nil {
				return err
			}
			v, n, err := csproto.DecodeVarint(data[offset:])
			if err != nil {
				return err
			}
			offset += n
			if v > uint64(dataSize-offset) {
				return ErrShortData
			}
			size := int(v)
			sv.Value = data[offset : offset+size : offset+size]
			offset += size
		case FieldSlotValueHash:
			if err := expectWT(tag, wireType, csproto.WireTypeFixed64); err != nil {
				return err
			}
			if dataSize-offset < 8 {
				return ErrShortData
			}
			sv.Hash = binary.LittleEndian.Uint64(data[offset : offset+8])
			offset += 8
		default:
			n, err := skipTag(data[offset:], wireType)
			if err != nil {
				return err
			}
			offset += n
		}
	}
	return nil
}

// Frame carries the updates of one object for one connection.
// A Full frame contains every slot of the object, a delta frame only the
// slots the connection has not acknowledged.
type Frame struct {
	ObjectID   uint32
	SnapshotID uint32
	Version    uint32
	ParentID   *uuid.UUID
	Full       bool
	Entries    []SlotValue
}

// Size returns the size of the marshaled Frame
func (f *Frame) Size() int {
	n := sizeVarintField(uint64(f.ObjectID)) +
		sizeVarintField(uint64(f.SnapshotID)) +
		sizeVarintField(uint64(f.Version))
	if f.ParentID != nil {
		n += sizeBytesField(len(*f.ParentID))
	}
	if f.Full {
		n += sizeVarintField(1)
	}
	for i := range f.Entries {
		n += sizeBytesField(f.Entries[i].size())
	}
	return n
}

// Marshal returns the protobuf encoding of the Frame.
// All values are copied, the Frame can be reused afterwards.
func (f *Frame) Marshal() []byte {
	b := make([]byte, f.Size())
	offset := 0
	offset += putVarintField(b[offset:], FieldFrameObjectID, uint64(f.ObjectID))
	offset += putVarintField(b[offset:], FieldFrameSnapshotID, uint64(f.SnapshotID))
	offset += putVarintField(b[offset:], FieldFrameVersion, uint64(f.Version))
	if f.ParentID != nil {
		offset += putBytesField(b[offset:], FieldFrameParentID, (*f.ParentID)[:])
	}
	if f.Full {
		offset += putVarintField(b[offset:], FieldFrameFull, 1)
	}
	for i := range f.Entries {
		sv := &f.Entries[i]
		offset += csproto.EncodeTag(b[offset:], FieldFrameEntries, csproto.WireTypeLengthDelimited)
		offset += csproto.EncodeVarint(b[offset:], uint64(sv.size()))
		offset += sv.marshalTo(b[offset:])
	}
	return b[:offset]
}

// Unmarshal decodes a Frame. Entry values refer to data, they are not copied.
func (f *Frame) Unmarshal(data []byte) error {
	d := csproto.NewDecoder(data)
	d.SetMode(csproto.DecoderModeFast)
	for d.More() {
		tag, wireType, err := d.DecodeTag()
		if err != nil {
			return err
		}
		switch tag {
		case FieldFrameObjectID:
			f.ObjectID, err = getUInt32(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldFrameSnapshotID:
			f.SnapshotID, err = getUInt32(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldFrameVersion:
			f.Version, err = getUInt32(d, tag, wireType)
			if err != nil {
				return err
			}
		case FieldFrameParentID:
			b, err := getBytes(d, tag, wireType)
			if err != nil {
				return err
			}
			id, err := uuid.FromBytes(b)
			if err != nil {
				return errors.Wrap(err, "parent id")
			}
			f.ParentID = &id
		case FieldFrameFull:
			full, err := getUInt32(d, tag, wireType)
			if err != nil {
				return err
			}
			f.Full = full != 0
		case FieldFrameEntries:
			msg, err := getBytes(d, tag, wireType)
			if err != nil {
				return err
			}
			var sv SlotValue
			if err := sv.Unmarshal(msg); err != nil {
				return errors.Wrap(err, "slot value")
			}
			f.Entries = append(f.Entries, sv)
		default:
			if _, err := d.Skip(tag, wireType); err != nil {
				return err
			}
		}
	}
	return nil
}
