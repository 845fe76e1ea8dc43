package wire

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Decode parses one segment message. It never mutates any accumulator state.
func Decode(topic string, payload []byte) (Segment, error) {
	index, err := parseIndex(topic)
	if err != nil {
		return Segment{}, err
	}

	if len(payload) < MetadataSize {
		return Segment{}, NewFormatError("payload of %d bytes is shorter than the %d byte header",
			len(payload), MetadataSize)
	}
	if rem := (len(payload) - MetadataSize) % elementSize; rem != 0 {
		return Segment{}, NewFormatError("segment data of %d bytes is not a multiple of %d",
			len(payload)-MetadataSize, elementSize)
	}

	id := ID(binary.BigEndian.Uint32(payload[0:4]))
	size := int32(binary.BigEndian.Uint32(payload[4:8]))
	if size < 0 {
		return Segment{}, NewFormatError("negative waveform size %d", size).WithSegment(id, index)
	}

	data := make([]int32, (len(payload)-MetadataSize)/elementSize)
	for i := range data {
		off := MetadataSize + i*elementSize
		data[i] = int32(binary.BigEndian.Uint32(payload[off : off+elementSize]))
	}

	return Segment{ID: id, Index: index, Size: int(size), Data: data}, nil
}

// parseIndex returns the decimal suffix after the last '/' of topic
func parseIndex(topic string) (int, error) {
	suffix := topic[strings.LastIndexByte(topic, '/')+1:]
	if suffix == "" {
		return 0, NewFormatError("topic %q has no segment index", topic)
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return 0, NewFormatError("topic %q has non-numeric segment index %q", topic, suffix)
		}
	}
	index, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, NewFormatError("topic %q segment index out of range", topic).WithCause(err)
	}
	return index, nil
}
