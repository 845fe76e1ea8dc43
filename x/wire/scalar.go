package wire

import (
	"encoding/binary"
)

// taggedSize is the size of the single value form: id, size (always 1), value
const taggedSize = 12

// EncodeInt32 encodes v as 4 bytes big-endian
func EncodeInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

// DecodeInt32 decodes exactly 4 big-endian bytes
func DecodeInt32(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, NewFormatError("int32 payload must be 4 bytes, got %d", len(b))
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// EncodeBytes returns a copy of an opaque byte string
func EncodeBytes(v []byte) []byte {
	return append([]byte(nil), v...)
}

// DecodeBytes returns a copy of an opaque byte string
func DecodeBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

// EncodeTagged encodes a single value in waveform header form: (id, 1, v).
func EncodeTagged(id ID, v int32) []byte {
	b := make([]byte, taggedSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(id))
	binary.BigEndian.PutUint32(b[4:8], 1)
	binary.BigEndian.PutUint32(b[8:12], uint32(v))
	return b
}

// DecodeTagged decodes the (id, 1, value) form
func DecodeTagged(b []byte) (ID, int32, error) {
	if len(b) != taggedSize {
		return 0, 0, NewFormatError("tagged payload must be %d bytes, got %d", taggedSize, len(b))
	}
	if size := int32(binary.BigEndian.Uint32(b[4:8])); size != 1 {
		return 0, 0, NewFormatError("tagged payload declares %d elements, want 1", size)
	}
	return ID(binary.BigEndian.Uint32(b[0:4])), int32(binary.BigEndian.Uint32(b[8:12])), nil
}
