package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/CrowdStrike/csproto"
	"github.com/pkg/errors"
)

// TagSize0To15 is the number of bytes taken by a key with tag 1-15
const TagSize0To15 = 1

type ErrUnexpectedWireType struct {
	Tag         int
	WireType    csproto.WireType
	ExpWireType csproto.WireType
}

func (e ErrUnexpectedWireType) Error() string {
	return fmt.Sprintf("unexpected wiretype for tag %d: got %v, expected %v",
		e.Tag, e.WireType, e.ExpWireType)
}

// ErrShortData is returned when a length or fixed size field exceeds the data
var ErrShortData = errors.New("remaining data too short for indicated size")

func expectWT(tag int, got, exp csproto.WireType) error {
	if got != exp {
		return ErrUnexpectedWireType{
			Tag:         tag,
			WireType:    got,
			ExpWireType: exp,
		}
	}
	return nil
}

func getUInt32(d *csproto.Decoder, tag int, wireType csproto.WireType) (uint32, error) {
	if err := expectWT(tag, wireType, csproto.WireTypeVarint); err != nil {
		return 0, err
	}
	return d.DecodeUInt32()
}

func getFixed64(d *csproto.Decoder, tag int, wireType csproto.WireType) (uint64, error) {
	if err := expectWT(tag, wireType, csproto.WireTypeFixed64); err != nil {
		return 0, err
	}
	return d.DecodeFixed64()
}

func getBytes(d *csproto.Decoder, tag int, wireType csproto.WireType) ([]byte, error) {
	if err := expectWT(tag, wireType, csproto.WireTypeLengthDelimited); err != nil {
		return nil, err
	}
	val, err := d.DecodeBytes()
	if err != nil {
		return nil, err
	}
	n := len(val)
	return val[0:n:n], nil
}

func getString(d *csproto.Decoder, tag int, wireType csproto.WireType) (string, error) {
	if err := expectWT(tag, wireType, csproto.WireTypeLengthDelimited); err != nil {
		return "", err
	}
	return d.DecodeString()
}

// skipTag skips over the next tag data
func skipTag(data []byte, wireType csproto.WireType) (skip int, err error) {
	switch wireType {
	case csproto.WireTypeVarint:
		_, n, err := csproto.DecodeVarint(data)
		if err != nil {
			return 0, err
		}
		skip = n
	case csproto.WireTypeLengthDelimited:
		size, n, err := csproto.DecodeVarint(data)
		if err != nil {
			return 0, err
		}
		if size > uint64(len(data)-n) {
			return 0, io.ErrUnexpectedEOF
		}
		skip = int(size) + n
	case csproto.WireTypeFixed32:
		skip = 4
	case csproto.WireTypeFixed64:
		skip = 8
	default:
		return 0, fmt.Errorf("unsupported wire type: %v", wireType)
	}
	if skip > len(data) {
		return 0, io.ErrUnexpectedEOF
	}
	return skip, nil
}

// Helpers for size calculation and encoding of single fields.
// All field numbers in this package are below 16, so tags take one byte.

func sizeVarintField(v uint64) int {
	if v == 0 {
		return 0
	}
	return TagSize0To15 + csproto.SizeOfVarint(v)
}

func sizeBytesField(size int) int {
	return TagSize0To15 + csproto.SizeOfVarint(uint64(size)) + size
}

func putVarintField(b []byte, tag int, v uint64) int {
	if v == 0 {
		return 0
	}
	offset := csproto.EncodeTag(b, tag, csproto.WireTypeVarint)
	offset += csproto.EncodeVarint(b[offset:], v)
	return offset
}

func putBytesField(b []byte, tag int, data []byte) int {
	offset := csproto.EncodeTag(b, tag, csproto.WireTypeLengthDelimited)
	offset += csproto.EncodeVarint(b[offset:], uint64(len(data)))
	offset += copy(b[offset:], data)
	return offset
}

func putFixed64Field(b []byte, tag int, v uint64) int {
	offset := csproto.EncodeTag(b, tag, csproto.WireTypeFixed64)
	binary.LittleEndian.PutUint64(b[offset:offset+8], v)
	return offset + 8
}
