package servo

import (
	"fmt"
	"time"

	"github.com/vassar-robotics/feetech-servo-sdk/scs"
)

const (
	// referencePosition is the calibration target: the midpoint of the
	// 0-4095 position range.
	referencePosition = 2048

	// referenceTolerance is the accepted drift after calibration, in raw
	// position units.
	referenceTolerance = 10

	// calibrationSettle is how long servos get to process a calibration
	// command before verification.
	calibrationSettle = 200 * time.Millisecond
)

// SetReferencePosition calibrates servos so their present position reads as
// the reference value (2048). STS servos take a sentinel written to the
// torque-enable register in one group write; HLS servos take an individual
// offset-calibration call each, and any per-servo failure there is a hard
// error since nothing batches or masks it. After a settling interval the
// positions are read back in one group read; the result is true only if
// every servo is within tolerance of the reference. Minor drift is not an
// error: callers get the boolean and can re-read positions for diagnostics.
func (c *Controller) SetReferencePosition(ids ...int) (bool, error) {
	if !c.connected {
		return false, ErrNotConnected
	}
	if len(ids) == 0 {
		ids = c.cfg.ServoIDs
	}
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return false, err
		}
	}

	if err := c.cfg.Variant.ops().calibrate(c, ids); err != nil {
		return false, err
	}

	time.Sleep(calibrationSettle)

	positions, err := c.ReadPositions(ids...)
	if err != nil {
		return false, err
	}

	allGood := true
	for _, id := range ids {
		position, ok := positions[id]
		if !ok {
			c.log.Warn("no position reading after calibration", "id", id)
			allGood = false
			continue
		}
		if diff := position - referencePosition; diff < -referenceTolerance || diff > referenceTolerance {
			c.log.Warn("servo off reference after calibration", "id", id, "position", position, "offset", diff)
			allGood = false
		}
	}
	return allGood, nil
}

// calibrate for the STS series: one group write of the calibration sentinel
// to every torque-enable register. A servo that fails to register aborts
// the batch, as does a failed flush.
func (stsOps) calibrate(c *Controller, ids []int) error {
	group := scs.NewGroupSyncWrite(c.bus, scs.RegTorqueEnable.Address, scs.RegTorqueEnable.Size)
	for _, id := range ids {
		if !group.AddParam(id, []byte{scs.TorqueCalibrate}) {
			group.ClearParam()
			return &CommError{Op: "calibrate", ID: id, Err: fmt.Errorf("failed to add servo to group write")}
		}
	}
	if status := group.TxPacket(); !status.OK() {
		return &CommError{Op: "calibrate group write", ID: -1, Status: status}
	}
	return nil
}

// calibrate for the HLS series: an offset-calibration instruction per
// servo. Each call is individually addressed, so any non-success outcome is
// unambiguous and fails the whole operation.
func (hlsOps) calibrate(c *Controller, ids []int) error {
	var failed []int
	for _, id := range ids {
		status, fault := c.bus.OfsCal(id, referencePosition)
		if err := commResult("offset calibration", id, status, fault); err != nil {
			c.log.Warn("offset calibration failed", "id", id, "error", err)
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return &CommError{Op: "offset calibration", ID: -1, Err: fmt.Errorf("servos %v failed to calibrate", failed)}
	}
	return nil
}
