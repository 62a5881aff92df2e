package dxl

import "math"

const (
	// MaxTicks is the largest 10-bit register value.
	MaxTicks = 1023
	// FullScale is the angle covered by the position registers, in degrees.
	FullScale = 300.0
	// RPMPerTick is the AX-12 moving-speed unit.
	RPMPerTick = 0.111

	loadDirection = 1 << 10
)

// DegreesToTicks converts an angle to a goal position, clamped to the
// 10-bit range.
func DegreesToTicks(deg float64) uint16 {
	t := math.Round(deg / FullScale * MaxTicks)
	switch {
	case math.IsNaN(t) || t < 0:
		return 0
	case t > MaxTicks:
		return MaxTicks
	}
	return uint16(t)
}

// TicksToDegrees converts a position register value to degrees.
func TicksToDegrees(t uint16) float64 {
	return float64(t) * FullScale / MaxTicks
}

// LoadPercent decodes the present-load register: bit 10 is the direction,
// bits 0-9 the magnitude. Clockwise load is negative.
func LoadPercent(raw uint16) float64 {
	pct := float64(raw&MaxTicks) / MaxTicks * 100
	if raw&loadDirection != 0 {
		return -pct
	}
	return pct
}

// RPMToTicks converts a speed to the moving-speed register. Zero means
// "no speed control" on the AX-12, so the result is never below 1.
func RPMToTicks(rpm float64) uint16 {
	t := math.Round(rpm / RPMPerTick)
	switch {
	case math.IsNaN(t) || t < 1:
		return 1
	case t > MaxTicks:
		return MaxTicks
	}
	return uint16(t)
}
