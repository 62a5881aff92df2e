// Package kinematics converts between Cartesian end-effector poses and
// servo angles for a three-arm delta robot, and decides which poses the
// robot may be commanded to.
package kinematics

import (
	"math"

	"github.com/pkg/errors"
)

// Geometry holds the mechanical constants of the delta robot, in centimeters.
// AngleOffset is the servo reading (degrees) at which an upper arm is
// horizontal; it depends on how the horns are mounted and is shared by all
// three arms.
type Geometry struct {
	L1          float64 `yaml:"l1"` // base center to shoulder axis
	L2          float64 `yaml:"l2"` // effector center to forearm joint
	A           float64 `yaml:"a"`  // upper arm
	B           float64 `yaml:"b"`  // forearm
	AngleOffset float64 `yaml:"angle_offset"`
}

// DefaultGeometry returns the dimensions of the reference build.
func DefaultGeometry() Geometry {
	return Geometry{
		L1:          8,
		L2:          3,
		A:           10,
		B:           25,
		AngleOffset: 150,
	}
}

// Validate reports whether the geometry describes a buildable robot.
func (g Geometry) Validate() error {
	switch {
	case g.L1 <= 0 || g.L2 <= 0:
		return errors.Errorf("geometry: offsets must be positive (l1=%g, l2=%g)", g.L1, g.L2)
	case g.A <= 0 || g.B <= 0:
		return errors.Errorf("geometry: arm lengths must be positive (a=%g, b=%g)", g.A, g.B)
	case g.B <= g.A:
		return errors.Errorf("geometry: forearm %g must be longer than upper arm %g", g.B, g.A)
	case g.AngleOffset < 0 || g.AngleOffset > 300:
		return errors.Errorf("geometry: angle offset %g outside servo range", g.AngleOffset)
	}
	return nil
}

var (
	sin60 = math.Sin(math.Pi / 3)
	cos60 = math.Cos(math.Pi / 3)
)
