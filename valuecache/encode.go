package valuecache

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/CrowdStrike/csproto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FieldValue is the protobuf field number every value is written as.
// A serialized value is a valid protobuf message with a single field.
const FieldValue = 1

// tagSize is the size of the FieldValue tag
const tagSize = 1

// ErrUnsupportedType is returned for values Encode cannot serialize
type ErrUnsupportedType struct {
	Value any
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported value type %T", e.Value)
}

// Encode serializes a typed value:
//
//   - bool and unsigned integers as varint
//   - signed integers as zigzag varint (sint64)
//   - float32 and float64 as fixed32 and fixed64
//   - string, []byte, uuid.UUID and encoding.BinaryMarshaler as bytes
func Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case bool:
		var u uint64
		if v {
			u = 1
		}
		return encodeVarint(u), nil
	case uint:
		return encodeVarint(uint64(v)), nil
	case uint8:
		return encodeVarint(uint64(v)), nil
	case uint16:
		return encodeVarint(uint64(v)), nil
	case uint32:
		return encodeVarint(uint64(v)), nil
	case uint64:
		return encodeVarint(v), nil
	case int:
		return encodeVarint(zigzag(int64(v))), nil
	case int8:
		return encodeVarint(zigzag(int64(v))), nil
	case int16:
		return encodeVarint(zigzag(int64(v))), nil
	case int32:
		return encodeVarint(zigzag(int64(v))), nil
	case int64:
		return encodeVarint(zigzag(v)), nil
	case float32:
		b := make([]byte, tagSize+4)
		offset := csproto.EncodeTag(b, FieldValue, csproto.WireTypeFixed32)
		binary.LittleEndian.PutUint32(b[offset:], math.Float32bits(v))
		return b, nil
	case float64:
		b := make([]byte, tagSize+8)
		offset := csproto.EncodeTag(b, FieldValue, csproto.WireTypeFixed64)
		binary.LittleEndian.PutUint64(b[offset:], math.Float64bits(v))
		return b, nil
	case string:
		return encodeBytes([]byte(v)), nil
	case []byte:
		return encodeBytes(v), nil
	case uuid.UUID:
		return encodeBytes(v[:]), nil
	case encoding.BinaryMarshaler:
		data, err := v.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %T", value)
		}
		return encodeBytes(data), nil
	default:
		return nil, ErrUnsupportedType{Value: value}
	}
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func encodeVarint(v uint64) []byte {
	b := make([]byte, tagSize+csproto.SizeOfVarint(v))
	offset := csproto.EncodeTag(b, FieldValue, csproto.WireTypeVarint)
	csproto.EncodeVarint(b[offset:], v)
	return b
}

func encodeBytes(data []byte) []byte {
	size := len(data)
	b := make([]byte, tagSize+csproto.SizeOfVarint(uint64(size))+size)
	offset := csproto.EncodeTag(b, FieldValue, csproto.WireTypeLengthDelimited)
	offset += csproto.EncodeVarint(b[offset:], uint64(size))
	copy(b[offset:], data)
	return b
}
