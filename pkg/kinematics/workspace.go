package kinematics

import (
	"fmt"
	"math"
)

// readyEpsilon absorbs round-off when comparing against a zero tolerance.
const readyEpsilon = 1e-6

// Limits describes the usable workspace envelope.
type Limits struct {
	MaxRadius       float64 `yaml:"max_radius"`
	MaxHeight       float64 `yaml:"max_height"`
	HeightTolerance float64 `yaml:"height_tolerance"`
	MinAngle        float64 `yaml:"min_angle"`
	MaxAngle        float64 `yaml:"max_angle"`
}

// DefaultLimits returns the envelope measured on the reference build.
func DefaultLimits() Limits {
	return Limits{
		MaxRadius:       14,
		MaxHeight:       -16,
		HeightTolerance: 0.5,
		MinAngle:        60,
		MaxAngle:        255,
	}
}

// Reason names the check that rejected a pose.
type Reason int

const (
	ReasonRadius Reason = iota
	ReasonHeight
	ReasonDomain
	ReasonAngle
)

func (r Reason) String() string {
	switch r {
	case ReasonRadius:
		return "radius"
	case ReasonHeight:
		return "height"
	case ReasonDomain:
		return "unreachable"
	case ReasonAngle:
		return "angle"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// UnreachableError is returned for poses outside the workspace.
type UnreachableError struct {
	Pose   Pose
	Reason Reason
	Arm    int // offending arm for ReasonDomain and ReasonAngle
}

func (err *UnreachableError) Error() string {
	switch err.Reason {
	case ReasonDomain, ReasonAngle:
		return fmt.Sprintf("pose %v rejected: %s limit on arm %d", err.Pose, err.Reason, err.Arm)
	default:
		return fmt.Sprintf("pose %v rejected: %s limit", err.Pose, err.Reason)
	}
}

// Validator checks poses against the workspace envelope.
type Validator struct {
	solver *Solver
	limits Limits
}

// NewValidator creates a validator using solver for the angle checks.
func NewValidator(solver *Solver, limits Limits) *Validator {
	return &Validator{solver: solver, limits: limits}
}

// Limits returns the configured envelope.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Check returns nil if p may be commanded, or an *UnreachableError naming
// the first failed check.
func (v *Validator) Check(p Pose) error {
	if p.Radius() > v.limits.MaxRadius {
		return &UnreachableError{Pose: p, Reason: ReasonRadius}
	}
	if p.Z() > v.limits.MaxHeight+v.limits.HeightTolerance {
		return &UnreachableError{Pose: p, Reason: ReasonHeight}
	}

	angles := v.solver.Angles(p)
	for i := 0; i < ArmCount; i++ {
		if math.IsNaN(angles[i]) {
			return &UnreachableError{Pose: p, Reason: ReasonDomain, Arm: i}
		}
		if angles[i] < v.limits.MinAngle || angles[i] > v.limits.MaxAngle {
			return &UnreachableError{Pose: p, Reason: ReasonAngle, Arm: i}
		}
	}
	return nil
}

// IsAvailable reports whether p lies inside the workspace.
func (v *Validator) IsAvailable(p Pose) bool {
	return v.Check(p) == nil
}

// IsReady reports whether every arm position in current is within tolerance
// degrees of the angle target implies.
func (v *Validator) IsReady(current []float64, target Pose, tolerance float64) bool {
	if len(current) < ArmCount {
		return false
	}
	angles := v.solver.Angles(target)
	for i := 0; i < ArmCount; i++ {
		if math.IsNaN(angles[i]) {
			return false
		}
		if math.Abs(current[i]-angles[i]) > tolerance+readyEpsilon {
			return false
		}
	}
	return true
}
