package robot

import (
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/kinematics"
)

// Telemetry is what was last read from one servo.
type Telemetry struct {
	ID       int
	Position float64 // degrees
	Load     float64 // percent, negative when clockwise
	OK       bool    // false when the values are carried over from an earlier read
}

// Arm represents the delta robot's servos on one bus.
type Arm struct {
	client *dxl.Client
	servos []*dxl.Servo
	logger *zap.Logger
}

// NewArm creates an arm with every slot unassigned.
func NewArm(client *dxl.Client, logger *zap.Logger) *Arm {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Arm{client: client, logger: logger}
	for range AllSlots() {
		a.servos = append(a.servos, dxl.NewServo(client, dxl.Unassigned))
	}
	return a
}

// Connect opens the servo bus, replacing any open port.
func (a *Arm) Connect(port string, baud int) error {
	return a.client.Reinitialize(port, baud)
}

// Release closes the servo bus.
func (a *Arm) Release() error {
	return a.client.Close()
}

// Connected reports whether the bus is open.
func (a *Arm) Connected() bool {
	return a.client.IsOpen()
}

// Client returns the underlying bus client.
func (a *Arm) Client() *dxl.Client {
	return a.client
}

// Assign binds hardware IDs to slots in AllSlots order. Slots beyond ids
// become unassigned.
func (a *Arm) Assign(ids []int) {
	for i, s := range a.servos {
		id := dxl.Unassigned
		if i < len(ids) {
			id = ids[i]
		}
		if s.ID() != id {
			a.logger.Info("servo assigned", zap.Stringer("slot", Slot(i)), zap.Int("id", id))
		}
		s.Assign(id)
	}
}

// IDs returns the hardware ID of every slot.
func (a *Arm) IDs() []int {
	ids := make([]int, len(a.servos))
	for i, s := range a.servos {
		ids[i] = s.ID()
	}
	return ids
}

// Servo returns the proxy for slot.
func (a *Arm) Servo(slot Slot) *dxl.Servo {
	return a.servos[slot]
}

// HasWrist reports whether a wrist servo is assigned.
func (a *Arm) HasWrist() bool {
	return a.servos[Wrist].Assigned()
}

// SetSpeed sets the moving speed of every assigned servo.
func (a *Arm) SetSpeed(rpm float64) error {
	return a.each(func(s *dxl.Servo) error { return s.SetSpeed(rpm) })
}

// Enable enables torque on all servos.
func (a *Arm) Enable() error {
	return a.each(func(s *dxl.Servo) error { return s.SetTorque(true) })
}

// Disable disables torque on all servos.
func (a *Arm) Disable() error {
	return a.each(func(s *dxl.Servo) error { return s.SetTorque(false) })
}

func (a *Arm) each(fn func(*dxl.Servo) error) error {
	var err error
	for _, s := range a.servos {
		if s.Assigned() {
			err = multierr.Append(err, fn(s))
		}
	}
	return err
}

// ReadTelemetry reads position and load of every slot. A slot whose read
// fails keeps its entry from prev and is marked not OK.
func (a *Arm) ReadTelemetry(prev []Telemetry) ([]Telemetry, error) {
	out := make([]Telemetry, len(a.servos))
	var errs error
	for i, s := range a.servos {
		if i < len(prev) {
			out[i] = prev[i]
		}
		out[i].ID = s.ID()
		out[i].OK = false
		if !s.Assigned() {
			continue
		}
		pos, err := s.Position()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		load, err := s.Load()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[i].Position, out[i].Load, out[i].OK = pos, load, true
	}
	return out, errs
}

// Positions extracts the controller's view of telemetry: the three arm
// angles, followed by the wrist when one is assigned.
func (a *Arm) Positions(t []Telemetry) []float64 {
	n := kinematics.ArmCount
	if a.HasWrist() {
		n++
	}
	pos := make([]float64, n)
	for i := 0; i < n && i < len(t); i++ {
		pos[i] = t[i].Position
	}
	return pos
}

// WriteGoals sends the goal angles of every assigned slot in one sync
// write. Unreachable angles are left out.
func (a *Arm) WriteGoals(goal kinematics.ArmAngles) error {
	values := make([]dxl.SyncValue, 0, len(a.servos))
	for i, s := range a.servos {
		if !s.Assigned() || i >= len(goal) || math.IsNaN(goal[i]) {
			continue
		}
		values = append(values, dxl.SyncValue{ID: byte(s.ID()), Value: dxl.DegreesToTicks(goal[i])})
	}
	if len(values) == 0 {
		return nil
	}
	return a.client.SyncWrite(dxl.GoalPosition.Address, dxl.GoalPosition.Width, values)
}
