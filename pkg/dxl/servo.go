package dxl

import (
	"github.com/pkg/errors"
)

// Bus is the register access a Servo needs. *Client implements it.
type Bus interface {
	Read(id, addr byte, n int) ([]byte, error)
	Write(id, addr byte, data []byte) error
	RegWrite(id, addr byte, data []byte) error
	Action(id byte) error
}

// Unassigned marks a servo slot without a hardware ID.
const Unassigned = -1

// Servo is a typed proxy for one AX-12 on a bus.
//
// In deferred mode setters stage their writes with REG_WRITE and nothing
// moves until Flush sends ACTION.
type Servo struct {
	bus      Bus
	id       int
	deferred bool
	pending  bool
}

// NewServo creates a proxy for servo id. Pass Unassigned for an empty slot.
func NewServo(bus Bus, id int) *Servo {
	return &Servo{bus: bus, id: id}
}

// ID returns the hardware ID, or Unassigned.
func (s *Servo) ID() int { return s.id }

// Assign binds the proxy to another hardware ID without touching the servo.
func (s *Servo) Assign(id int) {
	s.id = id
	s.pending = false
}

// Assigned reports whether the proxy has a hardware ID.
func (s *Servo) Assigned() bool {
	return s.id >= 0 && s.id <= MaxID
}

// SetDeferred selects between immediate and deferred writes.
func (s *Servo) SetDeferred(deferred bool) { s.deferred = deferred }

// Deferred reports whether writes are staged until Flush.
func (s *Servo) Deferred() bool { return s.deferred }

// Pending reports whether staged writes await Flush.
func (s *Servo) Pending() bool { return s.pending }

// ReadRegister reads r and applies its scale.
func (s *Servo) ReadRegister(r Register) (float64, error) {
	raw, err := s.readRaw(r)
	if err != nil {
		return 0, err
	}
	return float64(raw) * r.Scale, nil
}

func (s *Servo) readRaw(r Register) (uint16, error) {
	if !s.Assigned() {
		return 0, ErrUnassigned
	}
	b, err := s.bus.Read(byte(s.id), r.Address, r.Width)
	if err != nil {
		return 0, err
	}
	return r.DecodeRaw(b)
}

// WriteRegister writes value to r, converting with r's scale.
func (s *Servo) WriteRegister(r Register, value float64) error {
	return s.writeRaw(r, r.Raw(value))
}

func (s *Servo) writeRaw(r Register, raw uint16) error {
	if !s.Assigned() {
		return ErrUnassigned
	}
	if r.ReadOnly {
		return errors.Errorf("%s is read-only", r.Name)
	}
	if raw > r.Max {
		raw = r.Max
	}
	data := r.EncodeRaw(raw)
	if s.deferred {
		if err := s.bus.RegWrite(byte(s.id), r.Address, data); err != nil {
			return err
		}
		s.pending = true
		return nil
	}
	return s.bus.Write(byte(s.id), r.Address, data)
}

// Flush applies staged writes. It is a no-op when nothing is staged.
func (s *Servo) Flush() error {
	if !s.pending {
		return nil
	}
	if err := s.bus.Action(byte(s.id)); err != nil {
		return err
	}
	s.pending = false
	return nil
}

// Position returns the present position in degrees.
func (s *Servo) Position() (float64, error) {
	raw, err := s.readRaw(PresentPosition)
	if err != nil {
		return 0, err
	}
	return TicksToDegrees(raw), nil
}

// Load returns the present load in percent, negative when clockwise.
func (s *Servo) Load() (float64, error) {
	raw, err := s.readRaw(PresentLoad)
	if err != nil {
		return 0, err
	}
	return LoadPercent(raw), nil
}

// Speed returns the present speed in rpm.
func (s *Servo) Speed() (float64, error) {
	raw, err := s.readRaw(PresentSpeed)
	if err != nil {
		return 0, err
	}
	rpm := float64(raw&MaxTicks) * RPMPerTick
	if raw&loadDirection != 0 {
		rpm = -rpm
	}
	return rpm, nil
}

// Voltage returns the supply voltage in volts.
func (s *Servo) Voltage() (float64, error) {
	return s.ReadRegister(PresentVoltage)
}

// Temperature returns the internal temperature in degrees Celsius.
func (s *Servo) Temperature() (float64, error) {
	return s.ReadRegister(PresentTemperature)
}

// Moving reports whether the servo is still travelling to its goal.
func (s *Servo) Moving() (bool, error) {
	raw, err := s.readRaw(Moving)
	return raw != 0, err
}

// SetID writes a new hardware ID to the servo and rebinds the proxy to it.
// The write is never deferred.
func (s *Servo) SetID(id int) error {
	if id < 0 || id > MaxID {
		return errors.Errorf("servo id %d out of range", id)
	}
	if !s.Assigned() {
		return ErrUnassigned
	}
	if err := s.bus.Write(byte(s.id), ID.Address, ID.EncodeRaw(uint16(id))); err != nil {
		return err
	}
	s.id = id
	return nil
}

// SetJointMode switches between joint (position) mode and wheel mode.
func (s *Servo) SetJointMode(joint bool) error {
	var ccw uint16
	if joint {
		ccw = MaxTicks
	}
	if err := s.writeRaw(CWAngleLimit, 0); err != nil {
		return err
	}
	return s.writeRaw(CCWAngleLimit, ccw)
}

// SetAngleLimits restricts goal positions to [lo, hi] degrees.
func (s *Servo) SetAngleLimits(lo, hi float64) error {
	if lo > hi {
		return errors.Errorf("angle limits inverted: %g > %g", lo, hi)
	}
	if err := s.writeRaw(CWAngleLimit, DegreesToTicks(lo)); err != nil {
		return err
	}
	return s.writeRaw(CCWAngleLimit, DegreesToTicks(hi))
}

// SetSpeed sets the moving speed in rpm.
func (s *Servo) SetSpeed(rpm float64) error {
	return s.writeRaw(MovingSpeed, RPMToTicks(rpm))
}

// SetCompliance sets both compliance margins and both slopes.
func (s *Servo) SetCompliance(margin, slope byte) error {
	for _, w := range []struct {
		reg Register
		val byte
	}{
		{CWComplianceMargin, margin},
		{CCWComplianceMargin, margin},
		{CWComplianceSlope, slope},
		{CCWComplianceSlope, slope},
	} {
		if err := s.writeRaw(w.reg, uint16(w.val)); err != nil {
			return err
		}
	}
	return nil
}

// SetTorque enables or disables the motor.
func (s *Servo) SetTorque(on bool) error {
	return s.writeRaw(TorqueEnable, boolRaw(on))
}

// SetLED switches the status LED.
func (s *Servo) SetLED(on bool) error {
	return s.writeRaw(LED, boolRaw(on))
}

// SetGoal commands a goal position in degrees.
func (s *Servo) SetGoal(deg float64) error {
	return s.writeRaw(GoalPosition, DegreesToTicks(deg))
}

func boolRaw(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
