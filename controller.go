package servo

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/vassar-robotics/feetech-servo-sdk/discovery"
	"github.com/vassar-robotics/feetech-servo-sdk/scs"
	"github.com/vassar-robotics/feetech-servo-sdk/transports"
)

// PacketBus is the packet-transport collaborator the controller drives. It
// is satisfied by *scs.Bus and by test doubles.
type PacketBus interface {
	scs.Syncer

	SetBaud(rate int) error
	Close() error
	Ping(id int) (scs.CommStatus, scs.StatusError)
	ReadBytes(id, address, length int) ([]byte, scs.CommStatus, scs.StatusError)
	WriteBytes(id, address int, data []byte) (scs.CommStatus, scs.StatusError)
	OfsCal(id, position int) (scs.CommStatus, scs.StatusError)
}

// ConfirmFunc asks for confirmation of a destructive action. It returns
// true to proceed.
type ConfirmFunc func(prompt string) bool

// Controller manages a servo array over one shared bus. It is not safe for
// concurrent use: the bus is half-duplex and carries one request at a time,
// so callers sharing a Controller across goroutines must serialize access.
type Controller struct {
	cfg       Config
	bus       PacketBus
	connected bool
	log       *slog.Logger
	confirm   ConfirmFunc
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for warnings and progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.log = logger }
}

// WithBus injects an already-open bus instead of opening a serial port on
// Connect. Connect still runs the baud step against it.
func WithBus(bus PacketBus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithConfirm installs the confirmation hook consulted before a servo ID
// change. Without one, confirmation requests are declined.
func WithConfirm(fn ConfirmFunc) Option {
	return func(c *Controller) { c.confirm = fn }
}

// New creates a controller for the configured servo array.
func New(cfg Config, opts ...Option) (*Controller, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg: cfg,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect opens the transport and configures the line speed. Calling it
// while already connected is a no-op. On a baud failure the transport is
// closed before the error is reported.
func (c *Controller) Connect() error {
	if c.connected {
		return nil
	}

	bus := c.bus
	port := c.cfg.Port
	if bus == nil {
		if port == "" {
			found, err := discovery.FindPort()
			if err != nil {
				return &ConnectionError{Port: "auto", Err: err}
			}
			port = found
		}

		transport, err := transports.OpenSerial(transports.SerialConfig{
			Port:     port,
			BaudRate: c.cfg.Baud,
		})
		if err != nil {
			return &ConnectionError{Port: port, Err: err}
		}
		bus, err = scs.NewBus(scs.BusConfig{Transport: transport})
		if err != nil {
			transport.Close()
			return &ConnectionError{Port: port, Err: err}
		}
	}

	if err := bus.SetBaud(c.cfg.Baud); err != nil {
		bus.Close()
		return &ConnectionError{Port: port, Err: fmt.Errorf("failed to set baud rate to %d: %w", c.cfg.Baud, err)}
	}

	c.bus = bus
	c.connected = true
	return nil
}

// Connected reports whether the session is established.
func (c *Controller) Connected() bool {
	return c.connected
}

// Disconnect drives all managed servos to zero output, then releases the
// transport. It never fails: per-servo disable errors and transport close
// errors are logged and swallowed, so it is unconditionally safe to call
// from cleanup paths, repeatedly, or without a prior Connect.
func (c *Controller) Disconnect() {
	if !c.connected {
		return
	}

	c.DisableAll()
	if err := c.bus.Close(); err != nil {
		c.log.Warn("failed to close transport", "error", err)
	}
	c.connected = false
}

// DisableAll disables torque on every managed servo, best effort. Failures
// are logged, not returned: the goal is a safe zero-output state, not
// correctness reporting.
func (c *Controller) DisableAll() {
	if !c.connected {
		return
	}

	for _, id := range c.cfg.ServoIDs {
		if err := c.writeByte(id, scs.RegTorqueEnable, scs.TorqueDisabled, "disable torque"); err != nil {
			c.log.Warn("failed to disable servo", "id", id, "error", err)
		}
	}
	// Give the servos time to act before power is cut.
	time.Sleep(100 * time.Millisecond)
}

// ReadPosition reads the present position of one servo.
func (c *Controller) ReadPosition(id int) (int, error) {
	if !c.connected {
		return 0, ErrNotConnected
	}
	if err := validateID(id); err != nil {
		return 0, err
	}

	data, status, fault := c.bus.ReadBytes(id, scs.RegPresentPosition.Address, scs.RegPresentPosition.Size)
	if err := commResult("read position", id, status, fault); err != nil {
		return 0, err
	}
	return int(scs.DecodeWord(data)), nil
}

// ReadPositions reads present positions from many servos in one bus
// transaction. With no IDs given it reads the whole configured array.
// Servos that fail to register or return no data are skipped with a logged
// warning; an error is returned only when the transaction itself fails, in
// which case no positions are returned at all.
func (c *Controller) ReadPositions(ids ...int) (map[int]int, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	if len(ids) == 0 {
		ids = c.cfg.ServoIDs
	}

	group := scs.NewGroupSyncRead(c.bus, scs.RegPresentPosition.Address, scs.RegPresentPosition.Size)
	registered := make([]int, 0, len(ids))
	for _, id := range ids {
		if !group.AddParam(id) {
			c.log.Warn("failed to add servo to group read", "id", id)
			continue
		}
		registered = append(registered, id)
	}

	if status := group.TxRxPacket(); !status.OK() {
		return nil, &CommError{Op: "group read positions", ID: -1, Status: status}
	}

	positions := make(map[int]int, len(registered))
	for _, id := range registered {
		if !group.IsAvailable(id) {
			c.log.Warn("no position data from servo", "id", id)
			continue
		}
		positions[id] = group.GetData(id)
	}
	return positions, nil
}

// WriteOptions tunes a group position write.
type WriteOptions struct {
	// Speed is the goal speed for all servos, 0-100. Zero means no
	// movement.
	Speed int

	// Acceleration is the goal acceleration for all servos, 0-254. Zero
	// selects the servo's maximum.
	Acceleration int

	// TorqueLimits optionally caps output torque per servo, 0.0-1.0.
	// Only supported on variants with dynamic torque-limit control.
	TorqueLimits map[int]float64
}

// WritePositions commands goal positions, 0-4095 per servo, in two passes:
// pass one ensures each servo is in position mode with torque enabled,
// pass two flushes one group write for every servo that passed. The result
// maps each servo to its outcome; per-servo failures never abort the batch.
// An error is returned alongside the partial results when the group flush
// itself fails, and every servo without a recorded outcome at that point is
// marked failed, whether or not its record made it into the packet.
func (c *Controller) WritePositions(positions map[int]int, opts WriteOptions) (map[int]bool, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	ops := c.cfg.Variant.ops()
	if len(opts.TorqueLimits) > 0 && !ops.torqueLimit() {
		return nil, fmt.Errorf("%w: dynamic torque limits are not supported by the %s variant", ErrInvalidArgument, c.cfg.Variant)
	}

	speed := c.clampInt("speed", -1, opts.Speed, 0, 100)
	accel := c.clampInt("acceleration", -1, opts.Acceleration, 0, 254)

	results := make(map[int]bool, len(positions))
	ready := make([]int, 0, len(positions))
	for _, id := range sortedIDs(positions) {
		if err := c.prepare(id, ModePosition); err != nil {
			c.log.Warn("servo not ready for position write", "id", id, "error", err)
			results[id] = false
			continue
		}
		ready = append(ready, id)
	}

	group := scs.NewGroupSyncWrite(c.bus, scs.RegAcceleration.Address, positionRecordLen)
	for _, id := range ready {
		position := c.clampInt("position", id, positions[id], 0, 4095)

		limit := 1000 // full torque in 0.1% units
		if tl, ok := opts.TorqueLimits[id]; ok {
			limit = int(c.clampFloat("torque limit", id, tl, 0, 1) * 1000)
		}

		if !group.AddParam(id, ops.positionRecord(position, speed, accel, limit)) {
			c.log.Warn("failed to add servo to group write", "id", id)
			results[id] = false
			continue
		}
		results[id] = true
	}

	if status := group.TxPacket(); !status.OK() {
		// Anything without an outcome by now is failed; whether its record
		// was ever attempted is not distinguished.
		for id := range positions {
			if _, ok := results[id]; !ok {
				results[id] = false
			}
		}
		return results, &CommError{Op: "group write positions", ID: -1, Status: status}
	}
	return results, nil
}

// WriteTorques commands normalized torque targets, -1.0 to 1.0 per servo,
// using the same two-pass shape as WritePositions: mode and enable
// preconditions per servo, then one group write of encoded targets. Values
// outside the range are clamped with a logged warning. Fails with
// ErrUnsupported, before any bus traffic, on variants without torque
// control.
func (c *Controller) WriteTorques(torques map[int]float64) (map[int]bool, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	if !c.cfg.Variant.ops().torqueControl() {
		return nil, fmt.Errorf("%w: %s servos have no torque-control registers", ErrUnsupported, c.cfg.Variant)
	}

	results := make(map[int]bool, len(torques))
	ready := make([]int, 0, len(torques))
	for _, id := range sortedIDs(torques) {
		if err := c.prepare(id, ModeTorque); err != nil {
			c.log.Warn("servo not ready for torque write", "id", id, "error", err)
			results[id] = false
			continue
		}
		ready = append(ready, id)
	}

	group := scs.NewGroupSyncWrite(c.bus, scs.RegGoalTorque.Address, scs.RegGoalTorque.Size)
	for _, id := range ready {
		target := c.clampFloat("torque", id, torques[id], -1, 1)
		if !group.AddParam(id, scs.EncodeWord(encodeTorque(target))) {
			c.log.Warn("failed to add servo to group write", "id", id)
			results[id] = false
			continue
		}
		results[id] = true
	}

	if status := group.TxPacket(); !status.OK() {
		for id := range torques {
			if _, ok := results[id]; !ok {
				results[id] = false
			}
		}
		return results, &CommError{Op: "group write torques", ID: -1, Status: status}
	}
	return results, nil
}

// prepare ensures one servo satisfies the preconditions for a goal write in
// the given mode: operating mode matches (switched through the protected
// mutation protocol when it does not) and torque is enabled. A failed
// torque-enable write is only a warning; the goal write itself will reveal
// whether the servo is usable.
func (c *Controller) prepare(id int, mode OperatingMode) error {
	if err := validateID(id); err != nil {
		return err
	}

	current, err := c.readByte(id, scs.RegOperatingMode, "read operating mode")
	if err != nil {
		return err
	}
	if OperatingMode(current) != mode {
		c.log.Info("switching operating mode", "id", id, "from", OperatingMode(current), "to", mode)
		if err := c.SetOperatingMode(id, mode); err != nil {
			return err
		}
	}

	enabled, err := c.readByte(id, scs.RegTorqueEnable, "read torque enable")
	if err == nil && enabled != scs.TorqueEnabled {
		if err := c.writeByte(id, scs.RegTorqueEnable, scs.TorqueEnabled, "enable torque"); err != nil {
			c.log.Warn("failed to enable torque", "id", id, "error", err)
		}
	}
	return nil
}

// encodeTorque converts a normalized torque in [-1, 1] to the wire value:
// an 11-bit magnitude with 5% headroom and the direction in bit 15.
func encodeTorque(normalized float64) uint16 {
	magnitude := uint16(math.Round(math.Abs(normalized) * 2047 * 0.95))
	if normalized < 0 {
		return magnitude | 0x8000
	}
	return magnitude
}

func (c *Controller) readByte(id int, reg scs.Register, op string) (int, error) {
	data, status, fault := c.bus.ReadBytes(id, reg.Address, 1)
	if err := commResult(op, id, status, fault); err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

func (c *Controller) writeByte(id int, reg scs.Register, value int, op string) error {
	status, fault := c.bus.WriteBytes(id, reg.Address, []byte{byte(value)})
	return commResult(op, id, status, fault)
}

// clampInt bounds a value to its legal range, logging a warning instead of
// rejecting out-of-range input. id -1 marks a batch-wide value.
func (c *Controller) clampInt(name string, id, value, lo, hi int) int {
	if value < lo || value > hi {
		clamped := min(max(value, lo), hi)
		c.log.Warn("value out of range, clamping", "name", name, "id", id, "value", value, "clamped", clamped)
		return clamped
	}
	return value
}

func (c *Controller) clampFloat(name string, id int, value, lo, hi float64) float64 {
	if value < lo || value > hi {
		clamped := math.Min(math.Max(value, lo), hi)
		c.log.Warn("value out of range, clamping", "name", name, "id", id, "value", value, "clamped", clamped)
		return clamped
	}
	return value
}

func validateID(id int) error {
	if id < 0 || id > scs.MaxID {
		return fmt.Errorf("%w: servo ID %d out of range (0-%d)", ErrInvalidArgument, id, scs.MaxID)
	}
	return nil
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
