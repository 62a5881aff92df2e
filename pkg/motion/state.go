// Package motion sequences the delta robot: manual jogging, the automated
// domino placement cycle and the return to a safe pose.
package motion

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Mode is the operating mode.
type Mode int

const (
	Manual Mode = iota
	Controlled
	Reset
)

// Modes lists every mode in cycling order.
func Modes() []Mode {
	return []Mode{Manual, Controlled, Reset}
}

func (m Mode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Controlled:
		return "controlled"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as printed by String.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Manual, errors.Errorf("unknown mode %q", s)
}

// State is the step of the placement cycle. It only matters in Controlled mode.
type State int

const (
	Begin State = iota
	Take
	Waiting
	Rotate
	Going
	Ending
)

func (s State) String() string {
	switch s {
	case Begin:
		return "begin"
	case Take:
		return "take"
	case Waiting:
		return "waiting"
	case Rotate:
		return "rotate"
	case Going:
		return "going"
	case Ending:
		return "ending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Persist as a message duration keeps the message until it is replaced.
const Persist time.Duration = -1

// DefaultMessageDuration is how long operator messages stay visible.
const DefaultMessageDuration = 1500 * time.Millisecond

// Message is operator feedback produced by the controller.
type Message struct {
	Text     string
	Duration time.Duration
}
