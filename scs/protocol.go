// Package scs implements the Feetech SCS/STS register protocol: packet
// framing, the instruction set, and single-flush group transactions over a
// half-duplex serial bus. Operations report a CommStatus for the transport
// round trip and a StatusError for faults the servo itself reports; the two
// are distinct failure channels and both matter to callers.
package scs

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instruction codes per the Feetech protocol specification.
const (
	InstPing      byte = 0x01
	InstRead      byte = 0x02
	InstWrite     byte = 0x03
	InstRegWrite  byte = 0x04
	InstAction    byte = 0x05
	InstReset     byte = 0x06
	InstSyncRead  byte = 0x82
	InstSyncWrite byte = 0x83

	// InstOfsCal recalibrates the position offset so that the current
	// position reads as the argument value. HLS series only.
	InstOfsCal byte = 0x0B
)

// Special ID values.
const (
	BroadcastID = 0xFE
	MaxID       = 0xFD
)

// Packet header bytes.
const (
	headerByte1 = 0xFF
	headerByte2 = 0xFF
)

// CommStatus is the result of one transport-level request/response round
// trip. Zero means success; everything else identifies where the exchange
// broke down.
type CommStatus int

const (
	CommSuccess   CommStatus = 0
	CommPortBusy  CommStatus = -1
	CommTxFail    CommStatus = -2
	CommRxFail    CommStatus = -3
	CommTxError   CommStatus = -4
	CommRxWaiting CommStatus = -5
	CommRxTimeout CommStatus = -6
	CommRxCorrupt CommStatus = -7
	CommNotAvail  CommStatus = -9
)

// OK reports whether the round trip succeeded.
func (s CommStatus) OK() bool {
	return s == CommSuccess
}

func (s CommStatus) String() string {
	switch s {
	case CommSuccess:
		return "success"
	case CommPortBusy:
		return "port is busy"
	case CommTxFail:
		return "failed to transmit instruction packet"
	case CommRxFail:
		return "failed to receive status packet"
	case CommTxError:
		return "incorrect instruction packet"
	case CommRxWaiting:
		return "waiting for status packet"
	case CommRxTimeout:
		return "no status packet received"
	case CommRxCorrupt:
		return "incorrect status packet"
	case CommNotAvail:
		return "function not available"
	default:
		return fmt.Sprintf("unknown status (%d)", int(s))
	}
}

// StatusError holds the fault flags a servo reports in its status packet.
// A non-zero value means the packet arrived but the servo is complaining.
type StatusError byte

const (
	ErrVoltage     StatusError = 1 << 0
	ErrAngleLimit  StatusError = 1 << 1
	ErrOverheat    StatusError = 1 << 2
	ErrRange       StatusError = 1 << 3
	ErrChecksum    StatusError = 1 << 4
	ErrOverload    StatusError = 1 << 5
	ErrInstruction StatusError = 1 << 6
)

// HasError reports whether any fault flag is set.
func (e StatusError) HasError() bool {
	return e != 0
}

func (e StatusError) Error() string {
	if e == 0 {
		return "no error"
	}

	var msgs []string
	if e&ErrVoltage != 0 {
		msgs = append(msgs, "voltage")
	}
	if e&ErrAngleLimit != 0 {
		msgs = append(msgs, "angle limit")
	}
	if e&ErrOverheat != 0 {
		msgs = append(msgs, "overheat")
	}
	if e&ErrRange != 0 {
		msgs = append(msgs, "range")
	}
	if e&ErrChecksum != 0 {
		msgs = append(msgs, "checksum")
	}
	if e&ErrOverload != 0 {
		msgs = append(msgs, "overload")
	}
	if e&ErrInstruction != 0 {
		msgs = append(msgs, "instruction")
	}

	return "servo fault: " + strings.Join(msgs, ", ")
}

// packet is a decoded status packet.
type packet struct {
	id     byte
	status StatusError
	params []byte
}

// EncodeWord converts a 16-bit value to wire bytes. STS and HLS series are
// little-endian.
func EncodeWord(value uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return buf
}

// DecodeWord converts wire bytes to a 16-bit value.
func DecodeWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(data)
}

// instructionPacket builds a wire-format instruction packet:
// header(2) + id(1) + length(1) + instruction(1) + params(n) + checksum(1).
func instructionPacket(id, instruction byte, params []byte) []byte {
	buf := make([]byte, 0, 6+len(params))
	buf = append(buf, headerByte1, headerByte2)
	buf = append(buf, id)
	buf = append(buf, byte(len(params)+2))
	buf = append(buf, instruction)
	buf = append(buf, params...)
	buf = append(buf, checksum(buf[2:]))
	return buf
}

// checksum is the ones' complement of the byte sum from ID onwards.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}

// statusLength returns the wire length of a status packet carrying dataLen
// parameter bytes: header(2) + id(1) + length(1) + error(1) + data + checksum(1).
func statusLength(dataLen int) int {
	return 6 + dataLen
}

// decodePacket parses one status packet from data. It returns the packet,
// the number of bytes consumed, and a CommStatus: CommRxWaiting when more
// bytes are needed, CommRxCorrupt when no valid packet can be framed.
func decodePacket(data []byte) (packet, int, CommStatus) {
	headerIdx := -1
	for i := 0; i+1 < len(data); i++ {
		if data[i] == headerByte1 && data[i+1] == headerByte2 {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return packet{}, 0, CommRxCorrupt
	}

	data = data[headerIdx:]
	if len(data) < 6 {
		return packet{}, 0, CommRxWaiting
	}

	id := data[2]
	length := int(data[3])
	totalLen := 4 + length
	if len(data) < totalLen {
		return packet{}, 0, CommRxWaiting
	}

	if checksum(data[2:totalLen-1]) != data[totalLen-1] {
		return packet{}, 0, CommRxCorrupt
	}

	pkt := packet{
		id:     id,
		status: StatusError(data[4]),
	}
	if paramLen := length - 2; paramLen > 0 {
		pkt.params = make([]byte, paramLen)
		copy(pkt.params, data[5:5+paramLen])
	}

	return pkt, headerIdx + totalLen, CommSuccess
}

// decodePackets salvages as many status packets as possible from a buffer,
// skipping corrupted stretches. Used for sync read responses where each
// servo answers in turn and one bad reply must not mask the rest.
func decodePackets(data []byte) []packet {
	var packets []packet
	offset := 0

	for offset < len(data) {
		pkt, consumed, status := decodePacket(data[offset:])
		if status != CommSuccess {
			if status == CommRxWaiting {
				break
			}
			// Corrupt stretch; look for the next header.
			next := -1
			for i := offset + 2; i+1 < len(data); i++ {
				if data[i] == headerByte1 && data[i+1] == headerByte2 {
					next = i
					break
				}
			}
			if next < 0 {
				break
			}
			offset = next
			continue
		}
		packets = append(packets, pkt)
		offset += consumed
	}

	return packets
}
