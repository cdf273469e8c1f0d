package servo

import (
	"context"
	"fmt"
	"time"
)

// StreamPositions reads the array's positions repeatedly, handing each
// snapshot to fn, and paces iterations to the given period by sleeping the
// remainder of each cycle. A cycle that overruns the period is simply late;
// there is no catch-up. The loop runs until ctx is cancelled or a read
// fails; cancellation is only observed between cycles, never mid-exchange.
func (c *Controller) StreamPositions(ctx context.Context, period time.Duration, fn func(map[int]int)) error {
	if !c.connected {
		return ErrNotConnected
	}
	if period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %v", ErrInvalidArgument, period)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		positions, err := c.ReadPositions()
		if err != nil {
			return err
		}
		fn(positions)

		if remaining := period - time.Since(start); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
}
