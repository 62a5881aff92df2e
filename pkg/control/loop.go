package control

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/motion"
	"github.com/gwillem/dominobot/pkg/path"
	"github.com/gwillem/dominobot/pkg/robot"
)

// DefaultPeriod is the pause between two loop passes.
const DefaultPeriod = 10 * time.Millisecond

// Options tunes a Loop.
type Options struct {
	Period time.Duration
	Logger *zap.Logger
}

// Snapshot is the robot as seen at the end of one loop pass.
type Snapshot struct {
	Mode      motion.Mode
	State     motion.State
	Pose      kinematics.Pose
	Goal      kinematics.ArmAngles
	Servos    []robot.Telemetry
	Connected bool
	Target    int
	Remaining int
	Time      time.Time
}

// Loop is the worker. It alone talks to the servo bus.
type Loop struct {
	shared  *Shared
	arm     *robot.Arm
	ctrl    *motion.Controller
	planner path.Planner
	period  time.Duration
	logger  *zap.Logger

	cfg       robot.Config
	telemetry []robot.Telemetry
	stateCh   chan Snapshot
}

// NewLoop wires a worker. The planner's checker should be the controller's
// validator so that planned waypoints are accepted when commanded.
func NewLoop(shared *Shared, arm *robot.Arm, ctrl *motion.Controller, planner path.Planner, opts Options) *Loop {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loop{
		shared:  shared,
		arm:     arm,
		ctrl:    ctrl,
		planner: planner,
		period:  opts.Period,
		logger:  opts.Logger,
		stateCh: make(chan Snapshot, 1),
	}
}

// States returns a channel that receives a snapshot after every pass.
// Snapshots nobody picked up are replaced by newer ones.
func (l *Loop) States() <-chan Snapshot {
	return l.stateCh
}

// Run drives the robot until End is called or ctx is cancelled. The servo
// bus is released before it returns.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.shared.End)
	defer stop()
	defer l.release()

	l.logger.Info("control loop started", zap.Duration("period", l.period))
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		if l.shared.Ended() {
			break
		}
		if l.shared.Paused() {
			l.release()
			l.shared.publish(l.telemetry, false)
			l.shared.Post("Paused", motion.Persist)
			if !l.shared.waitResume() {
				break
			}
			l.shared.Post("Resumed", motion.DefaultMessageDuration)
			l.connect()
		}

		l.step()

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	l.logger.Info("control loop stopped")
	return ctx.Err()
}

func (l *Loop) step() {
	st := l.shared.take()
	l.apply(st)

	if l.arm.Connected() {
		tel, err := l.arm.ReadTelemetry(l.telemetry)
		if err != nil {
			l.logger.Debug("telemetry", zap.Error(err))
		}
		l.telemetry = tel
	}
	l.shared.publish(l.telemetry, l.arm.Connected())

	out := l.ctrl.Step(motion.Input{
		Positions: l.arm.Positions(l.telemetry),
		Axis:      st.axis,
		Buttons:   st.buttons,
	})
	l.output(out)
	l.shared.syncMode(l.ctrl.Mode())
	l.sendState()
}

// apply carries staged changes over to the bus and the controller.
func (l *Loop) apply(st staged) {
	if st.config != nil {
		prev := l.cfg
		l.cfg = *st.config
		l.arm.Assign(l.cfg.ServoIDs)
		if !l.arm.Connected() || prev.ServoPort != l.cfg.ServoPort || prev.ServoBaud != l.cfg.ServoBaud {
			l.connect()
		} else {
			l.setSpeed(l.cfg.Speed)
		}
		l.ctrl.SetCruiseSpeed(l.cfg.Speed)
	}
	if st.replan {
		l.plan(st.targets)
	}
	if st.mode != nil {
		l.ctrl.SetMode(*st.mode)
	}
}

func (l *Loop) connect() {
	if err := l.arm.Connect(l.cfg.ServoPort, l.cfg.ServoBaud); err != nil {
		l.logger.Warn("servo bus unavailable", zap.Error(err))
		l.shared.Post(fmt.Sprintf("Cannot open %s", l.cfg.ServoPort), motion.DefaultMessageDuration)
		return
	}
	l.shared.Post(fmt.Sprintf("Connected to %s", l.cfg.ServoPort), motion.DefaultMessageDuration)
	l.telemetry = nil
	l.setSpeed(l.cfg.Speed)
	if err := l.arm.Enable(); err != nil {
		l.logger.Warn("enable torque", zap.Error(err))
	}
	// Servos power up wherever they were left; move them to the commanded
	// pose so readiness checks can pass.
	if err := l.arm.WriteGoals(l.ctrl.Goal()); err != nil {
		l.logger.Warn("write goals", zap.Error(err))
	}
}

func (l *Loop) release() {
	if !l.arm.Connected() {
		return
	}
	if err := l.arm.Release(); err != nil {
		l.logger.Warn("release servo bus", zap.Error(err))
	}
}

func (l *Loop) setSpeed(rpm float64) {
	if !l.arm.Connected() {
		return
	}
	if err := l.arm.SetSpeed(rpm); err != nil {
		l.logger.Debug("set speed", zap.Float64("rpm", rpm), zap.Error(err))
	}
}

func (l *Loop) plan(targets []path.Dominoe) {
	start := l.ctrl.Params().Start
	paths, skips := l.planner.Plan(r2.Point{X: start.X, Y: start.Y}, targets)
	for _, s := range skips {
		l.logger.Info("target skipped", zap.Int("index", s.Index), zap.Error(s.Err))
		var ue *kinematics.UnreachableError
		reason := "unreachable"
		if errors.As(s.Err, &ue) {
			reason = ue.Reason.String()
		}
		l.shared.Post(fmt.Sprintf("Skipped target %d (%s)", s.Index+1, reason), motion.DefaultMessageDuration)
	}
	l.ctrl.SetPaths(paths)
	l.shared.Post(fmt.Sprintf("Loaded %d targets", len(paths)), motion.DefaultMessageDuration)
}

func (l *Loop) output(out motion.Output) {
	if out.Speed > 0 {
		l.setSpeed(out.Speed)
	}
	if out.Move && l.arm.Connected() {
		if err := l.arm.WriteGoals(out.Goal); err != nil {
			l.logger.Debug("write goals", zap.Error(err))
		}
	}
	for _, m := range out.Messages {
		l.shared.Post(m.Text, m.Duration)
	}
}

func (l *Loop) sendState() {
	s := Snapshot{
		Mode:      l.ctrl.Mode(),
		State:     l.ctrl.State(),
		Pose:      l.ctrl.Pose(),
		Goal:      l.ctrl.Goal(),
		Servos:    append([]robot.Telemetry(nil), l.telemetry...),
		Connected: l.arm.Connected(),
		Target:    l.ctrl.Target(),
		Remaining: l.ctrl.Remaining(),
		Time:      time.Now(),
	}
	select {
	case l.stateCh <- s:
	default:
		select {
		case <-l.stateCh:
		default:
		}
		l.stateCh <- s
	}
}
