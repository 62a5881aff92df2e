package kinematics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ArmCount is the number of parallel arms.
const ArmCount = 3

// Wrist is the index of the end-effector rotation in ArmAngles.
const Wrist = ArmCount

// Pose is an end-effector position in centimeters (origin at the robot
// center, z pointing up, so working poses have negative z) plus the
// end-effector rotation in degrees.
type Pose struct {
	Position mgl64.Vec3
	Rotation float64
}

// NewPose builds a pose from its components.
func NewPose(x, y, z, rotation float64) Pose {
	return Pose{Position: mgl64.Vec3{x, y, z}, Rotation: rotation}
}

func (p Pose) X() float64 { return p.Position.X() }
func (p Pose) Y() float64 { return p.Position.Y() }
func (p Pose) Z() float64 { return p.Position.Z() }

// Radius is the horizontal distance from the robot axis.
func (p Pose) Radius() float64 {
	return math.Hypot(p.Position.X(), p.Position.Y())
}

// Translate returns the pose moved by d, keeping the rotation.
func (p Pose) Translate(d mgl64.Vec3) Pose {
	return Pose{Position: p.Position.Add(d), Rotation: p.Rotation}
}

// WithZ returns the pose at height z.
func (p Pose) WithZ(z float64) Pose {
	p.Position[2] = z
	return p
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f) rot %.1f", p.X(), p.Y(), p.Z(), p.Rotation)
}

// ArmAngles holds servo angles in degrees: one per arm, then the wrist.
type ArmAngles [ArmCount + 1]float64

// Reachable reports whether every arm angle is a number.
func (a ArmAngles) Reachable() bool {
	for i := 0; i < ArmCount; i++ {
		if math.IsNaN(a[i]) {
			return false
		}
	}
	return true
}

// Solver maps poses to servo angles for a fixed geometry.
// It holds no mutable state and is safe for concurrent use.
type Solver struct {
	geo   Geometry
	units [ArmCount]mgl64.Vec3
}

// NewSolver creates a solver for the given geometry.
func NewSolver(g Geometry) *Solver {
	return &Solver{
		geo: g,
		units: [ArmCount]mgl64.Vec3{
			{1, 0, 0},
			{-cos60, sin60, 0},
			{-cos60, -sin60, 0},
		},
	}
}

// Geometry returns the geometry the solver was built with.
func (s *Solver) Geometry() Geometry {
	return s.geo
}

// Angles returns the servo angles that place the end-effector at p.
// Arms that cannot reach p get NaN. The wrist angle is p.Rotation.
func (s *Solver) Angles(p Pose) ArmAngles {
	x, y, z := p.X(), p.Y(), p.Z()
	shift := s.geo.L2 - s.geo.L1

	var out ArmAngles
	out[0] = s.servo(s.single(x+shift, z, y))
	out[1] = s.servo(s.single(y*sin60-x*cos60+shift, z, -y*cos60-x*sin60))
	out[2] = s.servo(s.single(-y*sin60-x*cos60+shift, z, -y*cos60+x*sin60))
	out[Wrist] = p.Rotation
	return out
}

// single solves one arm in its own frame: x0 radial, y0 vertical, z0
// lateral. The result is the upper-arm elevation in radians.
func (s *Solver) single(x0, y0, z0 float64) float64 {
	a, b := s.geo.A, s.geo.B

	n := b*b - a*a - x0*x0 - y0*y0 - z0*z0
	disc := n*n*y0*y0 - 4*(x0*x0+y0*y0)*(n*n/4-x0*x0*a*a)
	if disc < 0 {
		return math.NaN()
	}

	root := math.Sqrt(disc)
	if x0 < 0 {
		root = -root
	}
	y := (-n*y0 + root) / (2 * (x0*x0 + y0*y0))

	x := math.Sqrt(a*a - y*y)
	if b*b-(y0+a)*(y0+a) < x0*x0+z0*z0 && x0 < 0 {
		x = -x
	}
	return math.Atan2(y, x)
}

func (s *Solver) servo(raw float64) float64 {
	return s.geo.AngleOffset - mgl64.RadToDeg(raw)
}

// Pose computes the end-effector pose for the given arm angles. It returns
// false when the forearms cannot meet.
func (s *Solver) Pose(a ArmAngles) (Pose, bool) {
	if !a.Reachable() {
		return Pose{}, false
	}

	var elbows [ArmCount]mgl64.Vec3
	for i, u := range s.units {
		theta := mgl64.DegToRad(s.geo.AngleOffset - a[i])
		reach := s.geo.L1 - s.geo.L2 + s.geo.A*math.Cos(theta)
		elbows[i] = u.Mul(reach).Add(mgl64.Vec3{0, 0, s.geo.A * math.Sin(theta)})
	}

	// Intersect three spheres of radius B centered on the elbows.
	c1, c2, c3 := elbows[0], elbows[1], elbows[2]
	d := c2.Sub(c1).Len()
	if d == 0 {
		return Pose{}, false
	}
	ex := c2.Sub(c1).Mul(1 / d)
	i := ex.Dot(c3.Sub(c1))
	ey := c3.Sub(c1).Sub(ex.Mul(i))
	if ey.Len() == 0 {
		return Pose{}, false
	}
	ey = ey.Normalize()
	ez := ex.Cross(ey)
	j := ey.Dot(c3.Sub(c1))

	px := d / 2
	py := (i*i+j*j)/(2*j) - i*px/j
	h := s.geo.B*s.geo.B - px*px - py*py
	if h < 0 {
		return Pose{}, false
	}
	h = math.Sqrt(h)

	base := c1.Add(ex.Mul(px)).Add(ey.Mul(py))
	p1 := base.Add(ez.Mul(h))
	p2 := base.Sub(ez.Mul(h))
	if p2.Z() < p1.Z() {
		p1 = p2
	}
	return Pose{Position: p1, Rotation: a[Wrist]}, true
}
