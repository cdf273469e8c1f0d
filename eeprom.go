package servo

import (
	"fmt"
	"time"

	"github.com/vassar-robotics/feetech-servo-sdk/scs"
)

// SetDeviceID permanently reassigns a servo's bus ID in EEPROM. The servo
// must be power cycled for the change to take effect, and the change is
// irreversible without knowing the new ID, so when confirm is true the
// confirmation hook is consulted first; a declined or missing hook cancels
// the change and returns (false, nil). Both IDs must lie in 0-253 and
// differ, checked before any bus traffic.
func (c *Controller) SetDeviceID(currentID, newID int, confirm bool) (bool, error) {
	if !c.connected {
		return false, ErrNotConnected
	}
	if err := validateID(currentID); err != nil {
		return false, err
	}
	if err := validateID(newID); err != nil {
		return false, err
	}
	if currentID == newID {
		return false, fmt.Errorf("%w: current and new servo ID are both %d", ErrInvalidArgument, currentID)
	}

	if confirm {
		prompt := fmt.Sprintf("Permanently change servo ID %d to %d? The servo must be power cycled afterwards.", currentID, newID)
		if c.confirm == nil || !c.confirm(prompt) {
			c.log.Info("servo ID change cancelled", "current_id", currentID, "new_id", newID)
			return false, nil
		}
	}

	if err := c.mutateEEPROM(currentID, scs.RegID, newID, "write servo ID"); err != nil {
		return false, err
	}

	// Give the servo time to commit before anything else hits the bus.
	time.Sleep(100 * time.Millisecond)
	c.log.Info("servo ID changed, power cycle required", "old_id", currentID, "new_id", newID)
	return true, nil
}

// SetOperatingMode persists a servo's operating mode in EEPROM through the
// protected mutation sequence.
func (c *Controller) SetOperatingMode(id int, mode OperatingMode) error {
	if !c.connected {
		return ErrNotConnected
	}
	if err := validateID(id); err != nil {
		return err
	}
	if mode < ModePosition || mode > ModeStep {
		return fmt.Errorf("%w: invalid operating mode %d", ErrInvalidArgument, int(mode))
	}

	if err := c.mutateEEPROM(id, scs.RegOperatingMode, int(mode), "write operating mode"); err != nil {
		return err
	}

	time.Sleep(50 * time.Millisecond)
	return nil
}

// mutateEEPROM runs the protected single-register write sequence: liveness
// probe, unlock, write, relock. Every unlock is paired with a relock
// attempt on all exit paths. A relock failure after a successful write is
// only a warning; after a failed write it is recorded on the returned error
// (RelockFailed), since the servo may be left unlocked.
func (c *Controller) mutateEEPROM(id int, reg scs.Register, value int, op string) error {
	status, fault := c.bus.Ping(id)
	if err := commResult("ping", id, status, fault); err != nil {
		return err
	}

	if err := c.writeByte(id, scs.RegLock, scs.EEPROMUnlocked, "unlock EEPROM"); err != nil {
		return err
	}

	var data []byte
	if reg.Size == 1 {
		data = []byte{byte(value)}
	} else {
		data = scs.EncodeWord(uint16(value))
	}

	status, fault = c.bus.WriteBytes(id, reg.Address, data)
	if writeErr := commResult(op, id, status, fault); writeErr != nil {
		// Best effort: never leave the servo unlocked because the
		// mutation failed.
		commErr := writeErr.(*CommError)
		if !c.relock(id) {
			commErr.RelockFailed = true
			c.log.Warn("failed to re-lock EEPROM after failed write", "id", id)
		}
		return commErr
	}

	if !c.relock(id) {
		c.log.Warn("failed to re-lock EEPROM", "id", id)
	}
	return nil
}

// relock attempts to close the EEPROM lock, reporting success. Errors are
// swallowed; callers decide whether a failure is a warning or worth
// surfacing.
func (c *Controller) relock(id int) bool {
	status, fault := c.bus.WriteBytes(id, scs.RegLock.Address, []byte{scs.EEPROMLocked})
	return status.OK() && !fault.HasError()
}
