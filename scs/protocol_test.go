package scs

import (
	"bytes"
	"testing"
)

// statusPacket builds a valid status packet for test fixtures.
func statusPacket(id byte, errFlags byte, params ...byte) []byte {
	buf := []byte{headerByte1, headerByte2, id, byte(len(params) + 2), errFlags}
	buf = append(buf, params...)
	return append(buf, checksum(buf[2:]))
}

func TestInstructionPacket(t *testing.T) {
	pkt := instructionPacket(1, InstPing, nil)
	want := []byte{0xFF, 0xFF, 0x01, 0x02, 0x01, 0xFB}
	if !bytes.Equal(pkt, want) {
		t.Errorf("ping packet = % X, want % X", pkt, want)
	}

	pkt = instructionPacket(2, InstRead, []byte{56, 2})
	want = []byte{0xFF, 0xFF, 0x02, 0x04, 0x02, 0x38, 0x02, 0xBD}
	if !bytes.Equal(pkt, want) {
		t.Errorf("read packet = % X, want % X", pkt, want)
	}
}

func TestChecksum(t *testing.T) {
	// id=1, len=2, inst=1 -> ^(0x04) = 0xFB
	if got := checksum([]byte{0x01, 0x02, 0x01}); got != 0xFB {
		t.Errorf("checksum = %#x, want 0xFB", got)
	}
}

func TestEncodeDecodeWord(t *testing.T) {
	data := EncodeWord(2048)
	if !bytes.Equal(data, []byte{0x00, 0x08}) {
		t.Errorf("EncodeWord(2048) = % X, want 00 08", data)
	}
	if got := DecodeWord(data); got != 2048 {
		t.Errorf("DecodeWord = %d, want 2048", got)
	}
	if got := DecodeWord([]byte{0x12}); got != 0 {
		t.Errorf("DecodeWord(short) = %d, want 0", got)
	}
}

func TestDecodePacket(t *testing.T) {
	raw := statusPacket(3, 0, 0x00, 0x08)
	pkt, consumed, st := decodePacket(raw)
	if !st.OK() {
		t.Fatalf("decodePacket status = %v", st)
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
	if pkt.id != 3 {
		t.Errorf("id = %d, want 3", pkt.id)
	}
	if pkt.status != 0 {
		t.Errorf("status = %v, want 0", pkt.status)
	}
	if !bytes.Equal(pkt.params, []byte{0x00, 0x08}) {
		t.Errorf("params = % X, want 00 08", pkt.params)
	}
}

func TestDecodePacketLeadingGarbage(t *testing.T) {
	raw := append([]byte{0x00, 0x55}, statusPacket(1, 0)...)
	pkt, consumed, st := decodePacket(raw)
	if !st.OK() {
		t.Fatalf("decodePacket status = %v", st)
	}
	if pkt.id != 1 {
		t.Errorf("id = %d, want 1", pkt.id)
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
}

func TestDecodePacketIncomplete(t *testing.T) {
	raw := statusPacket(1, 0, 0x00, 0x08)
	_, _, st := decodePacket(raw[:4])
	if st != CommRxWaiting {
		t.Errorf("status = %v, want CommRxWaiting", st)
	}
}

func TestDecodePacketBadChecksum(t *testing.T) {
	raw := statusPacket(1, 0, 0x00, 0x08)
	raw[len(raw)-1] ^= 0xFF
	_, _, st := decodePacket(raw)
	if st != CommRxCorrupt {
		t.Errorf("status = %v, want CommRxCorrupt", st)
	}
}

func TestDecodePacketNoHeader(t *testing.T) {
	_, _, st := decodePacket([]byte{0x01, 0x02, 0x03, 0x04})
	if st != CommRxCorrupt {
		t.Errorf("status = %v, want CommRxCorrupt", st)
	}
}

func TestDecodePacketsSalvagesAroundCorruption(t *testing.T) {
	good1 := statusPacket(1, 0, 0x10, 0x00)
	bad := statusPacket(2, 0, 0x20, 0x00)
	bad[len(bad)-1] ^= 0xFF
	good2 := statusPacket(3, 0, 0x30, 0x00)

	raw := append(append(good1, bad...), good2...)
	packets := decodePackets(raw)
	if len(packets) != 2 {
		t.Fatalf("decoded %d packets, want 2", len(packets))
	}
	if packets[0].id != 1 || packets[1].id != 3 {
		t.Errorf("decoded ids = %d, %d, want 1, 3", packets[0].id, packets[1].id)
	}
}

func TestCommStatus(t *testing.T) {
	if !CommSuccess.OK() {
		t.Error("CommSuccess.OK() = false")
	}
	if CommRxTimeout.OK() {
		t.Error("CommRxTimeout.OK() = true")
	}
	if CommRxTimeout.String() != "no status packet received" {
		t.Errorf("CommRxTimeout.String() = %q", CommRxTimeout.String())
	}
}

func TestStatusError(t *testing.T) {
	var none StatusError
	if none.HasError() {
		t.Error("zero StatusError reports an error")
	}

	e := ErrOverheat | ErrOverload
	if !e.HasError() {
		t.Error("HasError() = false for set flags")
	}
	if e.Error() != "servo fault: overheat, overload" {
		t.Errorf("Error() = %q", e.Error())
	}
}
