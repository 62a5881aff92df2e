// Package control runs the robot: a worker loop that owns the servo bus,
// and the shared state through which the rest of the program steers it.
package control

import (
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/dominobot/pkg/motion"
	"github.com/gwillem/dominobot/pkg/path"
	"github.com/gwillem/dominobot/pkg/robot"
)

// statusBuffer is the number of undelivered statuses kept before the
// oldest is dropped.
const statusBuffer = 16

// Status is operator feedback. A negative Duration keeps it on screen until
// the next status replaces it.
type Status struct {
	Text     string
	Duration time.Duration
	Time     time.Time
}

func (s Status) String() string {
	return fmt.Sprintf("[%s] %s", s.Time.Format("15:04:05"), s.Text)
}

// staged holds changes made since the worker last looked.
type staged struct {
	config  *robot.Config
	targets []path.Dominoe
	replan  bool
	mode    *motion.Mode
	axis    mgl64.Vec3
	buttons []bool
}

// Shared is the state exchanged between the worker loop and everything
// else. All methods are safe for concurrent use and never block on I/O.
type Shared struct {
	mu     sync.Mutex
	cond   *sync.Cond
	logger *zap.Logger

	paused bool
	ended  bool

	config  robot.Config
	pending staged

	servos    []robot.Telemetry
	connected bool

	status chan Status
}

// NewShared starts from cfg. The worker applies it on its first pass.
func NewShared(cfg robot.Config, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shared{
		logger: logger,
		config: cfg.Clone(),
		status: make(chan Status, statusBuffer),
	}
	s.cond = sync.NewCond(&s.mu)
	s.stageConfigLocked()
	mode := cfg.Mode
	s.pending.mode = &mode
	return s
}

func (s *Shared) stageConfigLocked() {
	c := s.config.Clone()
	s.pending.config = &c
}

// Config returns a copy of the current configuration.
func (s *Shared) Config() robot.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// update applies fn to a copy of the configuration and stages the result
// if it validates.
func (s *Shared) update(fn func(*robot.Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.config.Clone()
	fn(&c)
	if err := c.Validate(); err != nil {
		return err
	}
	s.config = c
	s.stageConfigLocked()
	return nil
}

// SetServoIDs sets the hardware ID of each slot.
func (s *Shared) SetServoIDs(ids []int) error {
	return s.update(func(c *robot.Config) { c.ServoIDs = append([]int(nil), ids...) })
}

// SetServoPort selects the servo bus.
func (s *Shared) SetServoPort(port string, baud int) error {
	return s.update(func(c *robot.Config) { c.ServoPort, c.ServoBaud = port, baud })
}

// SetClampPort records the clamp controller's port.
func (s *Shared) SetClampPort(port string, baud int) error {
	return s.update(func(c *robot.Config) { c.ClampPort, c.ClampBaud = port, baud })
}

// SetSpeed sets the cruise speed in rpm.
func (s *Shared) SetSpeed(rpm float64) error {
	return s.update(func(c *robot.Config) { c.Speed = rpm })
}

// LoadConfig replaces the configuration with the one stored at path. On
// failure the current configuration is kept and an operator status is
// posted.
func (s *Shared) LoadConfig(file string) error {
	c, err := robot.LoadConfig(file)
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		s.logger.Warn("load config", zap.String("path", file), zap.Error(err))
		var pe *fs.PathError
		if errors.As(err, &pe) {
			s.Post("Cannot read stored data", motion.DefaultMessageDuration)
		} else {
			s.Post("Error opening file", motion.DefaultMessageDuration)
		}
		return err
	}

	s.mu.Lock()
	s.config = c
	s.stageConfigLocked()
	mode := c.Mode
	s.pending.mode = &mode
	s.mu.Unlock()
	s.logger.Info("config loaded", zap.String("path", file))
	return nil
}

// SaveConfig stores the current configuration at path.
func (s *Shared) SaveConfig(file string) error {
	if err := s.Config().Save(file); err != nil {
		s.Post("Error opening file", motion.DefaultMessageDuration)
		return err
	}
	return nil
}

// LoadTargets reads a placement target file and stages it for planning.
func (s *Shared) LoadTargets(file string) error {
	targets, err := path.LoadTargets(file)
	if err != nil {
		s.logger.Warn("load targets", zap.String("path", file), zap.Error(err))
		s.Post("Error opening file", motion.DefaultMessageDuration)
		return err
	}
	s.SetTargets(targets)
	return nil
}

// SetTargets stages a new list of placement targets.
func (s *Shared) SetTargets(targets []path.Dominoe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.targets = append([]path.Dominoe(nil), targets...)
	s.pending.replan = true
}

// SetMode switches the operating mode.
func (s *Shared) SetMode(m motion.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Mode = m
	s.pending.mode = &m
}

// SetInput records the latest axis and button sample. A non-zero axis is
// normalized. Samples are consumed by the next loop pass.
func (s *Shared) SetInput(axis mgl64.Vec3, buttons []bool) {
	if axis.Len() > 0 {
		axis = axis.Normalize()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.axis = axis
	s.pending.buttons = append([]bool(nil), buttons...)
}

// Pause asks the worker to release the bus and wait.
func (s *Shared) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume wakes a paused worker.
func (s *Shared) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.cond.Broadcast()
}

// End asks the worker to stop.
func (s *Shared) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.cond.Broadcast()
}

func (s *Shared) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Shared) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Servos returns the last telemetry published by the worker.
func (s *Shared) Servos() []robot.Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]robot.Telemetry(nil), s.servos...)
}

// Connected reports whether the worker holds the servo bus.
func (s *Shared) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Status returns the channel operator statuses are delivered on.
func (s *Shared) Status() <-chan Status {
	return s.status
}

// Post queues an operator status, dropping the oldest one when the
// buffer is full.
func (s *Shared) Post(text string, d time.Duration) {
	st := Status{Text: text, Duration: d, Time: time.Now()}
	for {
		select {
		case s.status <- st:
			return
		default:
		}
		select {
		case <-s.status:
		default:
		}
	}
}

// take hands the staged changes to the worker and clears them.
func (s *Shared) take() staged {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.pending
	s.pending = staged{}
	return st
}

// syncMode records a mode the controller switched to on its own, unless
// the operator has a mode change pending.
func (s *Shared) syncMode(m motion.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.mode == nil {
		s.config.Mode = m
	}
}

func (s *Shared) publish(servos []robot.Telemetry, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servos = append(s.servos[:0], servos...)
	s.connected = connected
}

// waitResume blocks while paused. It reports false once the worker must
// stop.
func (s *Shared) waitResume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && !s.ended {
		s.cond.Wait()
	}
	return !s.ended
}
