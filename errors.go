// Package servo orchestrates an array of daisy-chained Feetech STS/HLS
// servos sharing one half-duplex serial bus: connection lifecycle, batched
// multi-servo register access, mode and torque state transitions,
// EEPROM-protected configuration changes, and reference-position
// calibration.
package servo

import (
	"errors"
	"fmt"

	"github.com/vassar-robotics/feetech-servo-sdk/scs"
)

// Sentinel errors for common failure modes.
var (
	// ErrNotConnected is returned when an operation runs before Connect.
	ErrNotConnected = errors.New("not connected: call Connect first")

	// ErrInvalidArgument is returned for caller-supplied IDs or values
	// outside their domain.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported is returned when an operation is requested on a servo
	// variant that has no registers for it.
	ErrUnsupported = errors.New("operation not supported by servo variant")
)

// ConnectionError reports a failure to open the transport or configure the
// line speed.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommError reports a failed bus exchange: either the transport round trip
// did not succeed (Status) or the packet arrived and the servo reported a
// fault (Device). ID is the servo involved, or -1 for a whole-bus
// transaction such as a group flush.
type CommError struct {
	Op     string
	ID     int
	Status scs.CommStatus
	Device scs.StatusError
	Err    error

	// RelockFailed is set when a protected mutation failed and the
	// best-effort EEPROM relock afterwards failed too, meaning the servo
	// may be left with its protected registers unlocked.
	RelockFailed bool
}

func (e *CommError) Error() string {
	target := "bus"
	if e.ID >= 0 {
		target = fmt.Sprintf("servo %d", e.ID)
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, target, e.Err)
	case e.Device.HasError():
		return fmt.Sprintf("%s: %s: %v", e.Op, target, e.Device)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, target, e.Status)
	}
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// commResult converts a (status, fault) pair from the bus into a *CommError,
// or nil when both report success.
func commResult(op string, id int, status scs.CommStatus, device scs.StatusError) error {
	if !status.OK() {
		return &CommError{Op: op, ID: id, Status: status}
	}
	if device.HasError() {
		return &CommError{Op: op, ID: id, Device: device}
	}
	return nil
}
