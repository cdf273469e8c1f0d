// Package relay streams servo position snapshots over UDP to remote
// consumers such as teleoperation followers or visualizers.
//
// Wire format, little-endian: a float64 timestamp in seconds, a uint8
// servo count, then one record per servo of uint8 ID and uint16 position.
package relay

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// headerSize is timestamp(8) + count(1); each servo record is id(1) + position(2).
const (
	headerSize = 9
	recordSize = 3
)

// Frame is one position snapshot on the wire.
type Frame struct {
	// Timestamp is seconds since the Unix epoch.
	Timestamp float64

	// Positions maps servo ID to raw position.
	Positions map[int]int
}

// Marshal encodes a frame. Servos are written in ascending ID order so
// identical snapshots produce identical datagrams.
func (f Frame) Marshal() ([]byte, error) {
	if len(f.Positions) > math.MaxUint8 {
		return nil, fmt.Errorf("too many servos for one frame: %d", len(f.Positions))
	}

	ids := make([]int, 0, len(f.Positions))
	for id := range f.Positions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	buf := make([]byte, headerSize+len(ids)*recordSize)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f.Timestamp))
	buf[8] = byte(len(ids))

	offset := headerSize
	for _, id := range ids {
		position := f.Positions[id]
		if id < 0 || id > math.MaxUint8 {
			return nil, fmt.Errorf("servo ID %d does not fit the frame format", id)
		}
		if position < 0 || position > math.MaxUint16 {
			return nil, fmt.Errorf("position %d for servo %d does not fit the frame format", position, id)
		}
		buf[offset] = byte(id)
		binary.LittleEndian.PutUint16(buf[offset+1:], uint16(position))
		offset += recordSize
	}
	return buf, nil
}

// Unmarshal decodes a frame.
func Unmarshal(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	count := int(data[8])
	if len(data) < headerSize+count*recordSize {
		return Frame{}, fmt.Errorf("frame truncated: %d bytes for %d servos", len(data), count)
	}

	frame := Frame{
		Timestamp: math.Float64frombits(binary.LittleEndian.Uint64(data)),
		Positions: make(map[int]int, count),
	}

	offset := headerSize
	for i := 0; i < count; i++ {
		id := int(data[offset])
		frame.Positions[id] = int(binary.LittleEndian.Uint16(data[offset+1:]))
		offset += recordSize
	}
	return frame, nil
}
