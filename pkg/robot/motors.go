// Package robot binds the delta robot's servos to configuration: which
// hardware IDs drive which arm, where the bus lives and how it is tuned.
package robot

// Slot identifies a servo position on the robot.
type Slot int

// Servo slots. The three arms are indexed like the kinematics arms.
const (
	ArmA Slot = iota
	ArmB
	ArmC
	Wrist
)

// AllSlots returns every slot in wiring order.
func AllSlots() []Slot {
	return []Slot{ArmA, ArmB, ArmC, Wrist}
}

func (s Slot) String() string {
	switch s {
	case ArmA:
		return "arm_a"
	case ArmB:
		return "arm_b"
	case ArmC:
		return "arm_c"
	case Wrist:
		return "wrist"
	default:
		return "slot?"
	}
}
