package path

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/gwillem/dominobot/pkg/kinematics"
)

// Checker decides whether a pose may be commanded.
// *kinematics.Validator implements it.
type Checker interface {
	Check(p kinematics.Pose) error
}

// Path is the waypoint sequence leading to one target. Every waypoint
// carries the remapped target orientation; the last one is the target.
type Path struct {
	Target    Dominoe
	Waypoints []Dominoe
}

// Skip records a target left out of the plan.
type Skip struct {
	Index  int
	Target Dominoe
	Err    error
}

func (s Skip) Error() string {
	return fmt.Sprintf("target %d %v skipped: %v", s.Index+1, s.Target, s.Err)
}

func (s Skip) Unwrap() error { return s.Err }

// Planner expands placement targets into waypoint paths.
type Planner struct {
	Separation        float64 `yaml:"separation"`         // maximum waypoint spacing
	Height            float64 `yaml:"height"`             // z used to validate targets
	OrientationOffset float64 `yaml:"orientation_offset"` // added to every orientation
	OrientationPeriod float64 `yaml:"orientation_period"` // end-effector symmetry, 0 disables wrapping

	Checker Checker `yaml:"-"`
}

// DefaultPlanner returns the reference planner settings without a checker.
func DefaultPlanner() Planner {
	return Planner{
		Separation:        0.6,
		Height:            -22,
		OrientationOffset: 60,
		OrientationPeriod: 180,
	}
}

// Plan builds one path per accepted target, chaining from origin.
// Rejected targets are returned as skips and do not move the cursor.
func (p Planner) Plan(origin r2.Point, targets []Dominoe) ([]Path, []Skip) {
	var (
		paths  []Path
		skips  []Skip
		cursor = origin
	)
	for i, t := range targets {
		ori := p.Orientation(t.Orientation)
		if p.Checker != nil {
			if err := p.Checker.Check(kinematics.NewPose(t.X, t.Y, p.Height, ori)); err != nil {
				skips = append(skips, Skip{Index: i, Target: t, Err: err})
				continue
			}
		}

		end := t.Point()
		points := p.Interpolate(cursor, end)
		wps := make([]Dominoe, len(points))
		for k, pt := range points {
			wps[k] = Dominoe{X: pt.X, Y: pt.Y, Orientation: ori}
		}
		paths = append(paths, Path{Target: t, Waypoints: wps})
		cursor = end
	}
	return paths, skips
}

// Interpolate returns points from (excluding) from to (including) to,
// spaced no farther apart than the separation. A distance shorter than
// the separation yields just the end point.
func (p Planner) Interpolate(from, to r2.Point) []r2.Point {
	d := to.Sub(from).Norm()
	n := 1
	if p.Separation > 0 && d > p.Separation {
		n = int(math.Ceil(d / p.Separation))
	}

	points := make([]r2.Point, n)
	step := to.Sub(from).Mul(1 / float64(n))
	for k := 1; k < n; k++ {
		points[k-1] = from.Add(step.Mul(float64(k)))
	}
	points[n-1] = to
	return points
}

// Orientation applies the fixed offset and wraps into [0, period).
func (p Planner) Orientation(deg float64) float64 {
	o := deg + p.OrientationOffset
	if p.OrientationPeriod <= 0 {
		return o
	}
	o = math.Mod(o, p.OrientationPeriod)
	if o < 0 {
		o += p.OrientationPeriod
	}
	return o
}
