package scs

// Syncer is the subset of Bus the group engines need. It is satisfied by
// *Bus and by test doubles.
type Syncer interface {
	SyncWrite(address, dataLen int, data map[int][]byte) CommStatus
	SyncRead(address, dataLen int, ids []int) (map[int][]byte, CommStatus)
}

// GroupSyncWrite accumulates one fixed-width record per servo and flushes
// them all in a single bus transaction. The parameter buffer is cleared by
// the flush, success or failure, so a failed batch never contaminates the
// next one.
type GroupSyncWrite struct {
	bus     Syncer
	address int
	dataLen int
	params  map[int][]byte
}

// NewGroupSyncWrite creates a group write for a register window of dataLen
// bytes starting at address.
func NewGroupSyncWrite(bus Syncer, address, dataLen int) *GroupSyncWrite {
	return &GroupSyncWrite{
		bus:     bus,
		address: address,
		dataLen: dataLen,
		params:  make(map[int][]byte),
	}
}

// AddParam registers a servo's record for the next flush. It reports false
// when the ID is out of range, already registered, or the record width is
// wrong; the caller decides whether that skips the servo or aborts.
func (g *GroupSyncWrite) AddParam(id int, data []byte) bool {
	if !validID(id) || len(data) != g.dataLen {
		return false
	}
	if _, exists := g.params[id]; exists {
		return false
	}
	record := make([]byte, g.dataLen)
	copy(record, data)
	g.params[id] = record
	return true
}

// TxPacket flushes all accumulated records as one packet. With nothing
// accumulated it succeeds without touching the bus.
func (g *GroupSyncWrite) TxPacket() CommStatus {
	defer g.ClearParam()
	if len(g.params) == 0 {
		return CommSuccess
	}
	return g.bus.SyncWrite(g.address, g.dataLen, g.params)
}

// ClearParam drops all accumulated records.
func (g *GroupSyncWrite) ClearParam() {
	g.params = make(map[int][]byte)
}

// GroupSyncRead reads one register window from many servos in a single bus
// transaction. IDs are registered with AddParam, the transaction runs with
// TxRxPacket, and per-servo data is then pulled out with IsAvailable and
// GetData. The ID list is cleared by the flush; the decoded results stay
// readable until the next flush or ClearParam.
type GroupSyncRead struct {
	bus     Syncer
	address int
	dataLen int
	ids     []int
	results map[int][]byte
}

// NewGroupSyncRead creates a group read for a register window of dataLen
// bytes starting at address.
func NewGroupSyncRead(bus Syncer, address, dataLen int) *GroupSyncRead {
	return &GroupSyncRead{
		bus:     bus,
		address: address,
		dataLen: dataLen,
	}
}

// AddParam registers a servo ID for the next transaction. It reports false
// when the ID is out of range or already registered.
func (g *GroupSyncRead) AddParam(id int) bool {
	if !validID(id) {
		return false
	}
	for _, existing := range g.ids {
		if existing == id {
			return false
		}
	}
	g.ids = append(g.ids, id)
	return true
}

// TxRxPacket runs the transaction for all registered IDs. A non-success
// status means the whole transaction failed and no data is available for
// any servo.
func (g *GroupSyncRead) TxRxPacket() CommStatus {
	ids := g.ids
	g.ids = nil
	g.results = nil

	if len(ids) == 0 {
		return CommSuccess
	}

	results, st := g.bus.SyncRead(g.address, g.dataLen, ids)
	if !st.OK() {
		return st
	}
	g.results = results
	return CommSuccess
}

// IsAvailable reports whether the last transaction produced data for the
// given servo.
func (g *GroupSyncRead) IsAvailable(id int) bool {
	_, ok := g.results[id]
	return ok
}

// GetData returns the decoded value for the given servo from the last
// transaction: the raw byte for 1-byte windows, the little-endian word for
// 2-byte windows. Call IsAvailable first.
func (g *GroupSyncRead) GetData(id int) int {
	data, ok := g.results[id]
	if !ok {
		return 0
	}
	if g.dataLen == 1 {
		return int(data[0])
	}
	return int(DecodeWord(data))
}

// ClearParam drops registered IDs and any decoded results.
func (g *GroupSyncRead) ClearParam() {
	g.ids = nil
	g.results = nil
}
