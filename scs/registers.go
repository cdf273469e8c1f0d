package scs

// Register describes one control-table entry: its address and byte width.
type Register struct {
	Address int
	Size    int
}

// Control-table registers shared by the STS and HLS series. EEPROM entries
// (ID, operating mode) are guarded by RegLock; RAM entries are not.
var (
	RegFirmwareVersion = Register{Address: 0, Size: 1}
	RegModelNumber     = Register{Address: 3, Size: 2}
	RegID              = Register{Address: 5, Size: 1}
	RegBaudRate        = Register{Address: 6, Size: 1}
	RegMinAngleLimit   = Register{Address: 9, Size: 2}
	RegMaxAngleLimit   = Register{Address: 11, Size: 2}
	RegOperatingMode   = Register{Address: 33, Size: 1}

	RegTorqueEnable = Register{Address: 40, Size: 1}
	RegAcceleration = Register{Address: 41, Size: 1}
	RegGoalPosition = Register{Address: 42, Size: 2}
	RegGoalTime     = Register{Address: 44, Size: 2}
	// RegGoalTorque occupies the goal-time window on the HLS series, which
	// repurposes it for closed-loop torque targets.
	RegGoalTorque  = Register{Address: 44, Size: 2}
	RegGoalSpeed   = Register{Address: 46, Size: 2}
	RegTorqueLimit = Register{Address: 48, Size: 2}
	RegLock        = Register{Address: 55, Size: 1}

	RegPresentPosition = Register{Address: 56, Size: 2}
	RegPresentSpeed    = Register{Address: 58, Size: 2}
	RegPresentLoad     = Register{Address: 60, Size: 2}
	RegPresentVoltage  = Register{Address: 62, Size: 1}
	RegPresentTemp     = Register{Address: 63, Size: 1}
	RegMoving          = Register{Address: 66, Size: 1}
)

// Torque-enable register values.
const (
	TorqueDisabled = 0
	TorqueEnabled  = 1
	// TorqueCalibrate is the STS-series sentinel: writing it to the
	// torque-enable register recalibrates the present position to the
	// middle of the range (2048).
	TorqueCalibrate = 128
)

// EEPROM lock register values. Writing EEPROMUnlocked opens the protected
// registers for mutation; EEPROMLocked closes them again.
const (
	EEPROMUnlocked = 0
	EEPROMLocked   = 1
)
