package dxl

import (
	"math"

	"github.com/pkg/errors"
)

// Register describes one field of the AX-12 control table.
// Values are converted as raw*Scale on read and value/Scale on write.
type Register struct {
	Name     string
	Address  byte
	Width    int
	Scale    float64
	Max      uint16
	ReadOnly bool
}

const degreesPerTick = FullScale / MaxTicks

// EEPROM area.
var (
	ModelNumber     = Register{"model_number", 0, 2, 1, 0xFFFF, true}
	FirmwareVersion = Register{"firmware_version", 2, 1, 1, 0xFF, true}
	ID              = Register{"id", 3, 1, 1, MaxID, false}
	BaudRate        = Register{"baud_rate", 4, 1, 1, 0xFE, false}
	ReturnDelay     = Register{"return_delay", 5, 1, 2, 0xFE, false} // microseconds
	CWAngleLimit    = Register{"cw_angle_limit", 6, 2, degreesPerTick, MaxTicks, false}
	CCWAngleLimit   = Register{"ccw_angle_limit", 8, 2, degreesPerTick, MaxTicks, false}
	MaxTorque       = Register{"max_torque", 14, 2, 1, MaxTicks, false}
	StatusReturn    = Register{"status_return_level", 16, 1, 1, 2, false}
)

// RAM area.
var (
	TorqueEnable        = Register{"torque_enable", 24, 1, 1, 1, false}
	LED                 = Register{"led", 25, 1, 1, 1, false}
	CWComplianceMargin  = Register{"cw_compliance_margin", 26, 1, 1, 0xFF, false}
	CCWComplianceMargin = Register{"ccw_compliance_margin", 27, 1, 1, 0xFF, false}
	CWComplianceSlope   = Register{"cw_compliance_slope", 28, 1, 1, 0xFE, false}
	CCWComplianceSlope  = Register{"ccw_compliance_slope", 29, 1, 1, 0xFE, false}
	GoalPosition        = Register{"goal_position", 30, 2, degreesPerTick, MaxTicks, false}
	MovingSpeed         = Register{"moving_speed", 32, 2, RPMPerTick, MaxTicks, false}
	TorqueLimit         = Register{"torque_limit", 34, 2, 1, MaxTicks, false}
	PresentPosition     = Register{"present_position", 36, 2, degreesPerTick, MaxTicks, true}
	PresentSpeed        = Register{"present_speed", 38, 2, RPMPerTick, 0x7FF, true}
	PresentLoad         = Register{"present_load", 40, 2, 1, 0x7FF, true}
	PresentVoltage      = Register{"present_voltage", 42, 1, 0.1, 0xFF, true}
	PresentTemperature  = Register{"present_temperature", 43, 1, 1, 0xFF, true}
	Registered          = Register{"registered", 44, 1, 1, 1, true}
	Moving              = Register{"moving", 46, 1, 1, 1, true}
	Lock                = Register{"lock", 47, 1, 1, 1, false}
	Punch               = Register{"punch", 48, 2, 1, MaxTicks, false}
)

// Registers lists the control table in address order.
func Registers() []Register {
	return []Register{
		ModelNumber, FirmwareVersion, ID, BaudRate, ReturnDelay, CWAngleLimit,
		CCWAngleLimit, MaxTorque, StatusReturn, TorqueEnable, LED,
		CWComplianceMargin, CCWComplianceMargin, CWComplianceSlope,
		CCWComplianceSlope, GoalPosition, MovingSpeed, TorqueLimit,
		PresentPosition, PresentSpeed, PresentLoad, PresentVoltage,
		PresentTemperature, Registered, Moving, Lock, Punch,
	}
}

// RegisterByName looks a register up by its Name.
func RegisterByName(name string) (Register, bool) {
	for _, r := range Registers() {
		if r.Name == name {
			return r, true
		}
	}
	return Register{}, false
}

// Raw converts an engineering value to the register value, clamped to Max.
func (r Register) Raw(value float64) uint16 {
	t := math.Round(value / r.Scale)
	switch {
	case math.IsNaN(t) || t < 0:
		return 0
	case t > float64(r.Max):
		return r.Max
	}
	return uint16(t)
}

// Encode returns the little-endian bytes for value.
func (r Register) Encode(value float64) []byte {
	return r.EncodeRaw(r.Raw(value))
}

// EncodeRaw returns the little-endian bytes for a raw register value.
func (r Register) EncodeRaw(raw uint16) []byte {
	if r.Width == 1 {
		return []byte{byte(raw)}
	}
	return []byte{byte(raw), byte(raw >> 8)}
}

// DecodeRaw assembles a little-endian register value.
func (r Register) DecodeRaw(b []byte) (uint16, error) {
	if len(b) != r.Width {
		return 0, errors.Errorf("%s: got %d bytes, want %d", r.Name, len(b), r.Width)
	}
	if r.Width == 1 {
		return uint16(b[0]), nil
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// Decode converts register bytes to an engineering value.
func (r Register) Decode(b []byte) (float64, error) {
	raw, err := r.DecodeRaw(b)
	if err != nil {
		return 0, err
	}
	return float64(raw) * r.Scale, nil
}
