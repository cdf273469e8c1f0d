package servo

import (
	"fmt"

	"github.com/vassar-robotics/feetech-servo-sdk/scs"
)

// OperatingMode is the control mode a servo runs in. A servo is always in
// exactly one mode; mode-dependent goal writes check and switch it first.
type OperatingMode int

const (
	ModePosition OperatingMode = iota
	ModeSpeed
	ModeTorque
	ModeStep
)

func (m OperatingMode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeSpeed:
		return "speed"
	case ModeTorque:
		return "torque"
	case ModeStep:
		return "step"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Variant identifies a servo firmware family. The two families share the
// register protocol but differ in torque support and calibration method.
type Variant int

const (
	// VariantSTS is the position-only STS series.
	VariantSTS Variant = iota
	// VariantHLS is the HLS series with closed-loop torque control and
	// dynamic torque limits.
	VariantHLS
)

func (v Variant) String() string {
	switch v {
	case VariantSTS:
		return "sts"
	case VariantHLS:
		return "hls"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant converts a config string into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "sts":
		return VariantSTS, nil
	case "hls":
		return VariantHLS, nil
	default:
		return 0, fmt.Errorf("%w: unknown servo variant %q", ErrInvalidArgument, s)
	}
}

// UnmarshalYAML decodes a variant from its config string.
func (v *Variant) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// variantOps is the per-family behavior: torque capabilities, the layout of
// the goal record flushed by group position writes, and the calibration
// strategy.
type variantOps interface {
	torqueControl() bool
	torqueLimit() bool

	// positionRecord builds the goal record written at RegAcceleration:
	// acceleration, goal position, and the family-specific middle window
	// (time for STS, torque limit for HLS), then goal speed.
	positionRecord(position, speed, accel, limit int) []byte

	// calibrate drives the present position of all listed servos to the
	// reference value.
	calibrate(c *Controller, ids []int) error
}

func (v Variant) ops() variantOps {
	if v == VariantHLS {
		return hlsOps{}
	}
	return stsOps{}
}

// positionRecordLen is the width of the goal record for both families:
// accel(1) + position(2) + time-or-torque(2) + speed(2).
const positionRecordLen = 7

type stsOps struct{}

func (stsOps) torqueControl() bool { return false }
func (stsOps) torqueLimit() bool   { return false }

func (stsOps) positionRecord(position, speed, accel, limit int) []byte {
	record := make([]byte, 0, positionRecordLen)
	record = append(record, byte(accel))
	record = append(record, scs.EncodeWord(uint16(position))...)
	record = append(record, scs.EncodeWord(0)...) // goal time unused
	record = append(record, scs.EncodeWord(uint16(speed))...)
	return record
}

type hlsOps struct{}

func (hlsOps) torqueControl() bool { return true }
func (hlsOps) torqueLimit() bool   { return true }

func (hlsOps) positionRecord(position, speed, accel, limit int) []byte {
	record := make([]byte, 0, positionRecordLen)
	record = append(record, byte(accel))
	record = append(record, scs.EncodeWord(uint16(position))...)
	record = append(record, scs.EncodeWord(uint16(limit))...)
	record = append(record, scs.EncodeWord(uint16(speed))...)
	return record
}
