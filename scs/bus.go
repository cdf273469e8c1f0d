package scs

import (
	"errors"
	"time"
)

// Bus sends instruction packets to servos and collects their status packets.
// Every operation is a blocking single-attempt round trip: the half-duplex
// line carries one request at a time and retry policy belongs to callers.
//
// A Bus is not safe for concurrent use; callers that share one across
// goroutines must serialize access themselves.
type Bus struct {
	transport   Transport
	timeout     time.Duration
	minCmdGap   time.Duration
	lastCmdTime time.Time
	closed      bool
}

// BusConfig holds configuration for creating a new Bus.
type BusConfig struct {
	// Transport is the underlying communication transport. Required.
	Transport Transport

	// Timeout for one request/response round trip. Default is 1 second.
	Timeout time.Duration

	// MinCommandGap is the minimum time between commands. Default is 1ms.
	MinCommandGap time.Duration
}

// NewBus creates a bus over an already-open transport.
func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.MinCommandGap == 0 {
		cfg.MinCommandGap = time.Millisecond
	}

	return &Bus{
		transport:   cfg.Transport,
		timeout:     cfg.Timeout,
		minCmdGap:   cfg.MinCommandGap,
		lastCmdTime: time.Now(),
	}, nil
}

// SetBaud reconfigures the transport line speed.
func (b *Bus) SetBaud(rate int) error {
	return b.transport.SetBaud(rate)
}

// Close closes the bus and releases the transport.
func (b *Bus) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.transport.Close()
}

// Ping probes whether a servo responds at the given ID.
func (b *Bus) Ping(id int) (CommStatus, StatusError) {
	if !validID(id) {
		return CommTxError, 0
	}

	if st := b.send(instructionPacket(byte(id), InstPing, nil)); !st.OK() {
		return st, 0
	}

	pkt, st := b.readStatus(statusLength(0))
	if !st.OK() {
		return st, 0
	}
	if pkt.id != byte(id) {
		return CommRxCorrupt, 0
	}
	return CommSuccess, pkt.status
}

// ReadBytes reads a register window of the given length from one servo.
func (b *Bus) ReadBytes(id, address, length int) ([]byte, CommStatus, StatusError) {
	if !validID(id) {
		return nil, CommTxError, 0
	}

	if st := b.send(instructionPacket(byte(id), InstRead, []byte{byte(address), byte(length)})); !st.OK() {
		return nil, st, 0
	}

	pkt, st := b.readStatus(statusLength(length))
	if !st.OK() {
		return nil, st, 0
	}
	if pkt.id != byte(id) || len(pkt.params) < length {
		return nil, CommRxCorrupt, 0
	}
	return pkt.params[:length], CommSuccess, pkt.status
}

// WriteBytes writes data into a register window on one servo.
func (b *Bus) WriteBytes(id, address int, data []byte) (CommStatus, StatusError) {
	if !validID(id) {
		return CommTxError, 0
	}

	params := make([]byte, 1+len(data))
	params[0] = byte(address)
	copy(params[1:], data)

	if st := b.send(instructionPacket(byte(id), InstWrite, params)); !st.OK() {
		return st, 0
	}

	pkt, st := b.readStatus(statusLength(0))
	if !st.OK() {
		return st, 0
	}
	if pkt.id != byte(id) {
		return CommRxCorrupt, 0
	}
	return CommSuccess, pkt.status
}

// OfsCal issues the HLS offset-calibration instruction: the servo adjusts
// its internal offset so the present position reads as the given value.
func (b *Bus) OfsCal(id, position int) (CommStatus, StatusError) {
	if !validID(id) {
		return CommTxError, 0
	}

	if st := b.send(instructionPacket(byte(id), InstOfsCal, EncodeWord(uint16(position)))); !st.OK() {
		return st, 0
	}

	pkt, st := b.readStatus(statusLength(0))
	if !st.OK() {
		return st, 0
	}
	if pkt.id != byte(id) {
		return CommRxCorrupt, 0
	}
	return CommSuccess, pkt.status
}

// SyncWrite broadcasts one packet carrying a fixed-width record for each
// servo in data. Broadcast instructions get no status packet back, so the
// result reflects only the transmit leg.
func (b *Bus) SyncWrite(address, dataLen int, data map[int][]byte) CommStatus {
	params := make([]byte, 0, 2+len(data)*(1+dataLen))
	params = append(params, byte(address), byte(dataLen))
	for id, record := range data {
		if !validID(id) || len(record) != dataLen {
			return CommTxError
		}
		params = append(params, byte(id))
		params = append(params, record...)
	}

	return b.send(instructionPacket(BroadcastID, InstSyncWrite, params))
}

// SyncRead broadcasts one read request for a register window and collects
// the individual status packets the listed servos answer with. The returned
// map holds data only for servos whose reply arrived intact; a non-success
// status is returned only when the transaction itself failed (nothing was
// transmitted, or nothing at all came back).
func (b *Bus) SyncRead(address, dataLen int, ids []int) (map[int][]byte, CommStatus) {
	params := make([]byte, 0, 2+len(ids))
	params = append(params, byte(address), byte(dataLen))
	for _, id := range ids {
		if !validID(id) {
			return nil, CommTxError
		}
		params = append(params, byte(id))
	}

	if st := b.send(instructionPacket(BroadcastID, InstSyncRead, params)); !st.OK() {
		return nil, st
	}

	raw, ok := b.readRaw(len(ids) * statusLength(dataLen))
	if !ok && len(raw) == 0 {
		return nil, CommRxTimeout
	}

	result := make(map[int][]byte, len(ids))
	for _, pkt := range decodePackets(raw) {
		if pkt.status.HasError() || len(pkt.params) < dataLen {
			continue
		}
		result[int(pkt.id)] = pkt.params[:dataLen]
	}
	return result, CommSuccess
}

func validID(id int) bool {
	return id >= 0 && id <= MaxID
}

func (b *Bus) send(pkt []byte) CommStatus {
	if b.closed {
		return CommPortBusy
	}

	// Respect the inter-command gap the servos need on a half-duplex line.
	if elapsed := time.Since(b.lastCmdTime); elapsed < b.minCmdGap {
		time.Sleep(b.minCmdGap - elapsed)
	}

	// Drop any stale input from a previous exchange.
	b.transport.Flush()

	n, err := b.transport.Write(pkt)
	if err != nil || n != len(pkt) {
		return CommTxFail
	}
	b.lastCmdTime = time.Now()

	// Bus turnaround before the servo starts answering.
	time.Sleep(100 * time.Microsecond)

	return CommSuccess
}

func (b *Bus) readStatus(expectedLen int) (packet, CommStatus) {
	raw, ok := b.readRaw(expectedLen)
	if !ok && len(raw) == 0 {
		return packet{}, CommRxTimeout
	}

	pkt, _, st := decodePacket(raw)
	if !st.OK() {
		if !ok {
			return packet{}, CommRxTimeout
		}
		return packet{}, CommRxCorrupt
	}
	return pkt, CommSuccess
}

// readRaw accumulates up to expectedLen bytes until the deadline passes.
// It returns whatever arrived and whether the full count was reached.
func (b *Bus) readRaw(expectedLen int) ([]byte, bool) {
	buffer := make([]byte, expectedLen)
	totalRead := 0
	deadline := time.Now().Add(b.timeout)

	for totalRead < expectedLen {
		if time.Now().After(deadline) {
			return buffer[:totalRead], false
		}

		remaining := max(time.Until(deadline), 10*time.Millisecond)
		b.transport.SetReadTimeout(remaining)

		n, err := b.transport.Read(buffer[totalRead:])
		if err != nil && n == 0 {
			// Timeout or transient empty read; try again until deadline.
			time.Sleep(time.Millisecond)
			continue
		}
		totalRead += n
	}

	return buffer[:totalRead], true
}
