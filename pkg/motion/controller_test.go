package motion

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/path"
)

// arm stands in for the servos: positions follow commanded goals when
// asked to.
type arm struct {
	positions []float64
}

func newArm(goal kinematics.ArmAngles) *arm {
	return &arm{positions: append([]float64(nil), goal[:]...)}
}

func (a *arm) follow(out Output) {
	if out.Move {
		copy(a.positions, out.Goal[:])
	}
}

func (a *arm) input(buttons ...bool) Input {
	return Input{Positions: append([]float64(nil), a.positions...), Buttons: buttons}
}

func newTestController(t *testing.T) (*Controller, path.Planner) {
	solver := kinematics.NewSolver(kinematics.DefaultGeometry())
	validator := kinematics.NewValidator(solver, kinematics.DefaultLimits())
	params := DefaultParams()
	params.Start.Rotation = 0
	c := NewController(solver, validator, params, zaptest.NewLogger(t))
	c.SetCruiseSpeed(30)

	planner := path.DefaultPlanner()
	planner.Checker = validator
	return c, planner
}

func TestPlacementCycle(t *testing.T) {
	Convey("a single target at (10, 0) planned from (12, 0)", t, func() {
		c, planner := newTestController(t)
		paths, skips := planner.Plan(r2.Point{X: 12, Y: 0}, []path.Dominoe{{X: 10, Y: 0, Orientation: 0}})
		So(skips, ShouldBeEmpty)
		c.SetPaths(paths)
		c.SetMode(Controlled)
		a := newArm(c.Goal())

		step := func(in Input) Output {
			out := c.Step(in)
			a.follow(out)
			return out
		}

		Convey("Begin slows down and heads for the start pose", func() {
			out := step(a.input())
			So(c.State(), ShouldEqual, Begin)
			So(out.Move, ShouldBeTrue)
			So(out.Speed, ShouldEqual, 15)
			So(c.Pose().X(), ShouldEqual, 12)
			So(c.Pose().Z(), ShouldEqual, -22)

			step(a.input())
			So(c.State(), ShouldEqual, Take)

			out = step(a.input())
			So(c.Pose().Z(), ShouldEqual, -26)

			step(a.input())
			So(c.State(), ShouldEqual, Waiting)

			out = step(a.input())
			So(out.Messages, ShouldResemble, []Message{{Text: "Awaiting piece", Duration: Persist}})

			Convey("Waiting holds until the trigger is pressed", func() {
				for i := 0; i < 5; i++ {
					out = step(a.input(false))
					So(c.State(), ShouldEqual, Waiting)
					So(out.Move, ShouldBeFalse)
				}
				step(a.input(true))
				So(c.State(), ShouldEqual, Rotate)

				out = step(a.input())
				So(out.Speed, ShouldEqual, 7.5)
				So(out.Goal[kinematics.Wrist], ShouldEqual, 60)

				Convey("Rotate waits for the wrist to reach the remapped orientation", func() {
					a.positions[kinematics.Wrist] = 20
					step(a.input())
					So(c.State(), ShouldEqual, Rotate)

					a.positions[kinematics.Wrist] = 58.5
					step(a.input())
					So(c.State(), ShouldEqual, Rotate)

					a.positions[kinematics.Wrist] = 59.5
					step(a.input())
					So(c.State(), ShouldEqual, Going)

					Convey("Going walks the waypoints toward the target, then Ending descends", func() {
						var xs []float64
						for i := 0; i < 20 && c.State() == Going; i++ {
							out := step(a.input())
							if out.Move {
								xs = append(xs, c.Pose().X())
								So(c.Pose().Z(), ShouldEqual, -22)
								So(c.Pose().Rotation, ShouldEqual, 60)
							}
						}
						So(xs, ShouldResemble, []float64{11.5, 11, 10.5, 10})
						So(c.State(), ShouldEqual, Ending)

						out := step(a.input())
						So(c.Pose().Z(), ShouldEqual, -24)

						descents := 0
						for i := 0; i < 10 && c.State() == Ending; i++ {
							out = step(a.input())
							descents++
						}
						So(descents, ShouldEqual, len(DefaultParams().Descent))
						So(out.Speed, ShouldEqual, 30)
						So(out.Messages[0].Text, ShouldEqual, "Placed")
						So(c.Pose().Z(), ShouldEqual, -27)
						So(c.State(), ShouldEqual, Begin)
						So(c.Mode(), ShouldEqual, Reset)

						Convey("the next pass resets to the idle pose in Manual mode", func() {
							out := step(a.input())
							So(c.Mode(), ShouldEqual, Manual)
							So(c.Target(), ShouldEqual, 0)
							So(out.Goal[0], ShouldAlmostEqual, 150, 1e-9)
							So(c.Pose().Z(), ShouldEqual, -20)
						})
					})
				})
			})
		})

		Convey("Begin waits while the arm lags behind", func() {
			step(a.input())
			lagging := a.input()
			lagging.Positions[1] += 3
			c.Step(lagging)
			So(c.State(), ShouldEqual, Begin)
		})
	})

	Convey("without targets Controlled falls back to Reset", t, func() {
		c, _ := newTestController(t)
		c.SetMode(Controlled)
		c.Step(Input{})
		So(c.Mode(), ShouldEqual, Reset)
		c.Step(Input{})
		So(c.Mode(), ShouldEqual, Manual)
	})
}

func TestManualJog(t *testing.T) {
	Convey("manual mode", t, func() {
		c, _ := newTestController(t)
		a := newArm(c.Goal())
		start := c.Pose()

		Convey("moves the pose along the axis when the arm has caught up", func() {
			in := a.input()
			in.Axis = mgl64.Vec3{1, 0, 0}
			out := c.Step(in)
			So(out.Move, ShouldBeTrue)
			So(c.Pose().X(), ShouldAlmostEqual, start.X()+DefaultParams().JogStep, 1e-9)
		})

		Convey("ignores a zero axis", func() {
			out := c.Step(a.input())
			So(out.Move, ShouldBeFalse)
		})

		Convey("rejects a jump while the arm is not ready", func() {
			in := a.input()
			in.Positions[0] += 5
			in.Axis = mgl64.Vec3{0, 1, 0}
			out := c.Step(in)
			So(out.Move, ShouldBeFalse)
			So(c.Pose(), ShouldResemble, start)
		})

		Convey("rejects moves out of the workspace", func() {
			in := a.input()
			in.Axis = mgl64.Vec3{0, 0, 1}
			for i := 0; i < 40; i++ {
				out := c.Step(in)
				a.follow(out)
				in = a.input()
				in.Axis = mgl64.Vec3{0, 0, 1}
			}
			limits := kinematics.DefaultLimits()
			So(c.Pose().Z(), ShouldBeLessThanOrEqualTo, limits.MaxHeight+limits.HeightTolerance)
		})
	})
}

func TestModeStrings(t *testing.T) {
	Convey("modes parse back from their names", t, func() {
		for _, m := range Modes() {
			got, err := ParseMode(m.String())
			So(err, ShouldBeNil)
			So(got, ShouldEqual, m)
		}
		_, err := ParseMode("turbo")
		So(err, ShouldNotBeNil)
		So(Ending.String(), ShouldEqual, "ending")
		So(State(42).String(), ShouldEqual, "State(42)")
	})
}
