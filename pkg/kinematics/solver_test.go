package kinematics

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSolverAngles(t *testing.T) {
	Convey("solver with the reference geometry", t, func() {
		s := NewSolver(DefaultGeometry())

		Convey("the neutral pose puts every arm at the offset", func() {
			a := s.Angles(NewPose(0, 0, -20, 0))
			for i := 0; i < ArmCount; i++ {
				So(a[i], ShouldAlmostEqual, 150, 1e-9)
			}
		})

		Convey("known poses match hand-checked angles", func() {
			cases := []struct {
				pose Pose
				want [3]float64
			}{
				{NewPose(12, 0, -22, 0), [3]float64{133.3426277, 199.0328630, 199.0328630}},
				{NewPose(12, 0, -26, 0), [3]float64{156.7329213, 215.2322566, 215.2322566}},
				{NewPose(10, 0, -27, 0), [3]float64{164.1528693, 211.4828849, 211.4828849}},
				{NewPose(0, 12, -22, 0), [3]float64{179.2839, 139.2746, 210.5659}},
				{NewPose(0, 0, -15, 0), [3]float64{108.0197001, 108.0197001, 108.0197001}},
			}
			for _, c := range cases {
				a := s.Angles(c.pose)
				for i := 0; i < ArmCount; i++ {
					So(a[i], ShouldAlmostEqual, c.want[i], 1e-3)
				}
			}
		})

		Convey("the wrist angle passes through", func() {
			a := s.Angles(NewPose(12, 0, -22, 73.5))
			So(a[Wrist], ShouldEqual, 73.5)
		})

		Convey("a pose beyond the arm reach yields NaN instead of panicking", func() {
			a := s.Angles(NewPose(0, 0, -40, 0))
			So(a.Reachable(), ShouldBeFalse)
			So(math.IsNaN(a[0]), ShouldBeTrue)
		})

		Convey("a different offset shifts every arm by the same amount", func() {
			g := DefaultGeometry()
			g.AngleOffset = 240
			shifted := NewSolver(g).Angles(NewPose(5, -3, -24, 0))
			base := s.Angles(NewPose(5, -3, -24, 0))
			for i := 0; i < ArmCount; i++ {
				So(shifted[i]-base[i], ShouldAlmostEqual, 90, 1e-9)
			}
		})
	})
}

func TestSolverPose(t *testing.T) {
	Convey("forward kinematics inverts the solver", t, func() {
		s := NewSolver(DefaultGeometry())

		for _, p := range []Pose{
			NewPose(0, 0, -20, 0),
			NewPose(12, 0, -22, 10),
			NewPose(10, 0, -27, 0),
			NewPose(-5, 7, -24, 45),
			NewPose(3, -9, -18, 0),
		} {
			back, ok := s.Pose(s.Angles(p))
			So(ok, ShouldBeTrue)
			So(back.X(), ShouldAlmostEqual, p.X(), 1e-6)
			So(back.Y(), ShouldAlmostEqual, p.Y(), 1e-6)
			So(back.Z(), ShouldAlmostEqual, p.Z(), 1e-6)
			So(back.Rotation, ShouldEqual, p.Rotation)
		}

		Convey("NaN angles have no pose", func() {
			_, ok := s.Pose(ArmAngles{math.NaN(), 150, 150, 0})
			So(ok, ShouldBeFalse)
		})
	})
}

func TestGeometryValidate(t *testing.T) {
	Convey("geometry validation", t, func() {
		So(DefaultGeometry().Validate(), ShouldBeNil)

		g := DefaultGeometry()
		g.B = g.A
		So(g.Validate(), ShouldNotBeNil)

		g = DefaultGeometry()
		g.L1 = 0
		So(g.Validate(), ShouldNotBeNil)

		g = DefaultGeometry()
		g.AngleOffset = 320
		So(g.Validate(), ShouldNotBeNil)
	})
}
