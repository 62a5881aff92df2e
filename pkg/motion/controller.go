package motion

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/path"
)

// Input is what the control loop feeds the controller each pass.
type Input struct {
	// Positions holds the last-read servo angles: three arms, then the
	// wrist if one is fitted.
	Positions []float64
	Axis      mgl64.Vec3
	Buttons   []bool
}

// Output is what the controller wants done this pass.
type Output struct {
	Goal     kinematics.ArmAngles
	Move     bool    // Goal must be sent to the servos
	Speed    float64 // when positive, new moving speed for every servo
	Messages []Message
}

func (o *Output) say(text string, d time.Duration) {
	o.Messages = append(o.Messages, Message{Text: text, Duration: d})
}

// Controller owns the commanded pose and the placement cycle. It does no
// I/O; the control loop applies its outputs. It is not safe for concurrent
// use.
type Controller struct {
	solver    *kinematics.Solver
	validator *kinematics.Validator
	params    Params
	logger    *zap.Logger

	mode    Mode
	state   State
	entered bool

	pose   kinematics.Pose
	goal   kinematics.ArmAngles
	cruise float64

	paths    []path.Path
	target   int
	waypoint int
	descent  int
}

// NewController creates a controller in Manual mode at the idle pose.
func NewController(solver *kinematics.Solver, validator *kinematics.Validator, params Params, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		solver:    solver,
		validator: validator,
		params:    params,
		logger:    logger,
		mode:      Manual,
		state:     Begin,
		pose:      params.Idle.Pose(),
	}
	c.goal = solver.Angles(c.pose)
	return c
}

func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) State() State { return c.state }

// Pose returns the last commanded pose.
func (c *Controller) Pose() kinematics.Pose { return c.pose }

// Goal returns the servo angles of the last commanded pose.
func (c *Controller) Goal() kinematics.ArmAngles { return c.goal }

func (c *Controller) Params() Params { return c.params }

// Target returns the index of the placement target being worked on.
func (c *Controller) Target() int { return c.target }

// Remaining returns how many targets are left, the current one included.
func (c *Controller) Remaining() int {
	if c.target >= len(c.paths) {
		return 0
	}
	return len(c.paths) - c.target
}

// SetMode switches the operating mode. Entering Controlled restarts the
// cycle at Begin for the current target.
func (c *Controller) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.logger.Info("mode changed", zap.Stringer("from", c.mode), zap.Stringer("to", m))
	c.mode = m
	if m == Controlled {
		c.enter(Begin)
	}
}

// SetPaths replaces the placement plan and rewinds to its first target.
func (c *Controller) SetPaths(paths []path.Path) {
	c.paths = paths
	c.target = 0
	c.enter(Begin)
}

// SetCruiseSpeed sets the speed restored after each placement.
func (c *Controller) SetCruiseSpeed(rpm float64) {
	c.cruise = rpm
}

// Step advances the controller by one control-loop pass.
func (c *Controller) Step(in Input) Output {
	var out Output
	switch c.mode {
	case Manual:
		c.jog(in, &out)
	case Controlled:
		c.sequence(in, &out)
	case Reset:
		c.reset(&out)
	}
	return out
}

func (c *Controller) jog(in Input, out *Output) {
	if in.Axis.Len() == 0 {
		return
	}
	if !c.validator.IsReady(in.Positions, c.pose, c.params.ReadyTolerance) {
		return
	}
	c.command(c.pose.Translate(in.Axis.Mul(c.params.JogStep)), out)
}

func (c *Controller) reset(out *Output) {
	c.target = 0
	c.enter(Begin)
	c.mode = Manual
	c.command(c.params.Idle.Pose(), out)
	if c.cruise > 0 {
		out.Speed = c.cruise
	}
	out.say("Reset", DefaultMessageDuration)
	c.logger.Info("reset to idle pose", zap.Stringer("pose", c.pose))
}

func (c *Controller) sequence(in Input, out *Output) {
	first := !c.entered
	c.entered = true

	switch c.state {
	case Begin:
		if c.target >= len(c.paths) {
			c.logger.Info("no placement targets left")
			c.mode = Reset
			return
		}
		if first {
			c.setSpeed(c.params.ApproachSpeed, out)
			c.command(c.params.Start.Pose(), out)
			return
		}
		if c.ready(in, c.params.ReadyTolerance) {
			c.enter(Take)
		}

	case Take:
		if first {
			c.command(c.pose.WithZ(c.params.PickupHeight), out)
			return
		}
		if c.ready(in, c.params.ReadyTolerance) {
			c.enter(Waiting)
		}

	case Waiting:
		if first {
			out.say("Awaiting piece", Persist)
			return
		}
		if c.triggered(in) {
			c.enter(Rotate)
		}

	case Rotate:
		if first {
			c.setSpeed(c.params.RotateSpeed, out)
			rotated := c.pose
			rotated.Rotation = c.orientation()
			c.command(rotated, out)
			out.say("Rotating", DefaultMessageDuration)
			return
		}
		if c.wristReady(in) {
			c.waypoint = 0
			c.enter(Going)
		}

	case Going:
		wps := c.paths[c.target].Waypoints
		if first {
			c.commandWaypoint(out)
			return
		}
		tol := c.params.ReadyTolerance
		if c.waypoint == len(wps)-1 {
			tol = c.params.FinalTolerance
		}
		if !c.ready(in, tol) {
			return
		}
		c.waypoint++
		if c.waypoint >= len(wps) {
			c.descent = 0
			c.enter(Ending)
			return
		}
		c.commandWaypoint(out)

	case Ending:
		if first {
			c.command(c.pose.WithZ(c.params.Descent[0]), out)
			return
		}
		if !c.ready(in, c.params.ReadyTolerance) {
			return
		}
		c.descent++
		if c.descent < len(c.params.Descent) {
			c.command(c.pose.WithZ(c.params.Descent[c.descent]), out)
			return
		}
		c.placed(out)
	}
}

func (c *Controller) placed(out *Output) {
	out.say("Placed", DefaultMessageDuration)
	c.logger.Info("domino placed",
		zap.Int("target", c.target+1),
		zap.Stringer("at", c.paths[c.target].Target))
	c.target++
	if c.cruise > 0 {
		out.Speed = c.cruise
	}
	c.enter(Begin)
	if c.target >= len(c.paths) {
		c.mode = Reset
	}
}

// commandWaypoint commands the current waypoint at travel height, skipping
// any the workspace rejects.
func (c *Controller) commandWaypoint(out *Output) {
	wps := c.paths[c.target].Waypoints
	for ; c.waypoint < len(wps); c.waypoint++ {
		wp := wps[c.waypoint]
		z := c.params.TravelHeight + c.params.lift(wp.X)
		if c.command(kinematics.NewPose(wp.X, wp.Y, z, wp.Orientation), out) {
			return
		}
	}
	// Nothing reachable left; descend from where we are.
	c.waypoint = len(wps) - 1
}

func (c *Controller) enter(s State) {
	if s != c.state {
		c.logger.Debug("state", zap.Stringer("from", c.state), zap.Stringer("to", s))
	}
	c.state = s
	c.entered = false
}

// command makes p the commanded pose if the workspace accepts it.
func (c *Controller) command(p kinematics.Pose, out *Output) bool {
	if err := c.validator.Check(p); err != nil {
		c.logger.Debug("pose discarded", zap.Error(err))
		return false
	}
	c.pose = p
	c.goal = c.solver.Angles(p)
	out.Goal = c.goal
	out.Move = true
	return true
}

func (c *Controller) setSpeed(factor float64, out *Output) {
	if c.cruise > 0 {
		out.Speed = c.cruise * factor
	}
}

func (c *Controller) ready(in Input, tol float64) bool {
	return c.validator.IsReady(in.Positions, c.pose, tol)
}

func (c *Controller) wristReady(in Input) bool {
	if len(in.Positions) <= kinematics.Wrist {
		return true
	}
	return math.Abs(in.Positions[kinematics.Wrist]-c.pose.Rotation) <= c.params.WristTolerance
}

func (c *Controller) triggered(in Input) bool {
	b := c.params.TriggerButton
	return b < len(in.Buttons) && in.Buttons[b]
}

func (c *Controller) orientation() float64 {
	wps := c.paths[c.target].Waypoints
	if len(wps) == 0 {
		return c.pose.Rotation
	}
	return wps[len(wps)-1].Orientation
}
