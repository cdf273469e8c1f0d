package servo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vassar-robotics/feetech-servo-sdk/scs"
)

func TestStreamPositions(t *testing.T) {
	bus := newFakeBus(1, 2)
	bus.setWord(1, scs.RegPresentPosition, 100)
	bus.setWord(2, scs.RegPresentPosition, 200)
	c := newTestController(t, VariantSTS, bus, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	var snapshots []map[int]int
	err := c.StreamPositions(ctx, time.Millisecond, func(positions map[int]int) {
		snapshots = append(snapshots, positions)
		if len(snapshots) == 3 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, snapshots, 3)
	assert.Equal(t, map[int]int{1: 100, 2: 200}, snapshots[0])
}

func TestStreamPositionsStopsOnReadFailure(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	var cycles int
	err := c.StreamPositions(context.Background(), time.Millisecond, func(map[int]int) {
		cycles++
		// The whole transaction fails on the next cycle.
		bus.syncReadStatus = scs.CommRxTimeout
	})

	var commErr *CommError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, 1, cycles)
}

func TestStreamPositionsValidation(t *testing.T) {
	bus := newFakeBus(1)
	c := newTestController(t, VariantSTS, bus, 1)

	err := c.StreamPositions(context.Background(), 0, func(map[int]int) {})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	disconnected, err2 := New(Config{ServoIDs: []int{1}}, WithBus(newFakeBus(1)), WithLogger(testLogger()))
	require.NoError(t, err2)
	err = disconnected.StreamPositions(context.Background(), time.Millisecond, func(map[int]int) {})
	assert.ErrorIs(t, err, ErrNotConnected)
}
