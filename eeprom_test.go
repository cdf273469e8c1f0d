package servo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vassar-robotics/feetech-servo-sdk/scs"
)

func TestSetDeviceIDValidation(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	_, err := c.SetDeviceID(1, 1, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.SetDeviceID(1, 300, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.SetDeviceID(-1, 2, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, bus.calls, "validation failures must not touch the bus")
}

func TestSetDeviceIDDeclined(t *testing.T) {
	bus := newFakeBus(1)
	c, err := New(Config{ServoIDs: []int{1}},
		WithBus(bus),
		WithLogger(testLogger()),
		WithConfirm(func(string) bool { return false }))
	require.NoError(t, err)
	require.NoError(t, c.Connect())

	changed, err := c.SetDeviceID(1, 2, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, bus.calls, "a declined change must not touch the bus")
}

func TestSetDeviceIDWithoutConfirmHook(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	changed, err := c.SetDeviceID(1, 2, true)
	require.NoError(t, err)
	assert.False(t, changed, "no hook means no consent")
	assert.Empty(t, bus.calls)
}

func TestSetDeviceID(t *testing.T) {
	bus := newFakeBus(1)
	c, err := New(Config{ServoIDs: []int{1}},
		WithBus(bus),
		WithLogger(testLogger()),
		WithConfirm(func(string) bool { return true }))
	require.NoError(t, err)
	require.NoError(t, c.Connect())

	changed, err := c.SetDeviceID(1, 7, true)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, 7, bus.byteAt(1, scs.RegID))
	assert.Equal(t, scs.EEPROMLocked, bus.byteAt(1, scs.RegLock))

	// Probe, unlock, write, relock, in that order.
	require.Len(t, bus.calls, 4)
	assert.Equal(t, "ping", bus.calls[0].op)
	assert.Equal(t, scs.RegLock.Address, bus.calls[1].address)
	assert.Equal(t, []byte{scs.EEPROMUnlocked}, bus.calls[1].data)
	assert.Equal(t, scs.RegID.Address, bus.calls[2].address)
	assert.Equal(t, scs.RegLock.Address, bus.calls[3].address)
	assert.Equal(t, []byte{scs.EEPROMLocked}, bus.calls[3].data)
}

func TestSetDeviceIDSkipsPromptWhenNotRequested(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	changed, err := c.SetDeviceID(1, 7, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 7, bus.byteAt(1, scs.RegID))
}

func TestSetDeviceIDDeadServo(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	_, err := c.SetDeviceID(9, 10, false)
	var commErr *CommError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, "ping", commErr.Op)
	assert.Equal(t, 9, commErr.ID)
	require.Len(t, bus.calls, 1, "a failed probe must stop the sequence before the unlock")
}

func TestMutateEEPROMRelocksAfterFailedWrite(t *testing.T) {
	bus := newFakeBus(1)
	bus.writeErr[[2]int{1, scs.RegID.Address}] = scs.CommRxFail
	c := newTestController(t, VariantSTS, bus, 1)

	_, err := c.SetDeviceID(1, 7, false)
	var commErr *CommError
	require.ErrorAs(t, err, &commErr)
	assert.False(t, commErr.RelockFailed)

	last := bus.calls[len(bus.calls)-1]
	assert.Equal(t, scs.RegLock.Address, last.address)
	assert.Equal(t, []byte{scs.EEPROMLocked}, last.data)
	assert.Equal(t, scs.EEPROMLocked, bus.byteAt(1, scs.RegLock))
}

func TestMutateEEPROMRecordsFailedRelock(t *testing.T) {
	bus := newFakeBus(1)
	bus.writeErr[[2]int{1, scs.RegID.Address}] = scs.CommRxFail
	bus.failRelock = true
	c := newTestController(t, VariantSTS, bus, 1)

	_, err := c.SetDeviceID(1, 7, false)
	var commErr *CommError
	require.ErrorAs(t, err, &commErr)
	assert.True(t, commErr.RelockFailed, "servo may be left unlocked; callers must know")
	assert.Equal(t, scs.CommRxFail, commErr.Status)
}

func TestSetOperatingMode(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	require.NoError(t, c.SetOperatingMode(1, ModeSpeed))
	assert.Equal(t, int(ModeSpeed), bus.byteAt(1, scs.RegOperatingMode))
	assert.Equal(t, scs.EEPROMLocked, bus.byteAt(1, scs.RegLock))
}

func TestSetOperatingModeValidation(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	assert.ErrorIs(t, c.SetOperatingMode(1, OperatingMode(7)), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetOperatingMode(300, ModePosition), ErrInvalidArgument)
	assert.Empty(t, bus.calls)
}
