package motion

import (
	"github.com/pkg/errors"

	"github.com/gwillem/dominobot/pkg/kinematics"
)

// Position is a pose as written in the tuning file.
type Position struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Z        float64 `yaml:"z"`
	Rotation float64 `yaml:"rotation"`
}

// Pose converts p to a kinematics pose.
func (p Position) Pose() kinematics.Pose {
	return kinematics.NewPose(p.X, p.Y, p.Z, p.Rotation)
}

// Bump lifts travel waypoints whose x is below Below by Lift centimeters.
type Bump struct {
	Below float64 `yaml:"below"`
	Lift  float64 `yaml:"lift"`
}

// Params tunes the placement cycle. Heights are in centimeters, tolerances
// in servo degrees, speeds as fractions of the cruise speed.
type Params struct {
	Start          Position  `yaml:"start"`
	Idle           Position  `yaml:"idle"`
	PickupHeight   float64   `yaml:"pickup_height"`
	TravelHeight   float64   `yaml:"travel_height"`
	Descent        []float64 `yaml:"descent"`
	Bumps          []Bump    `yaml:"bumps"`
	ReadyTolerance float64   `yaml:"ready_tolerance"`
	FinalTolerance float64   `yaml:"final_tolerance"`
	WristTolerance float64   `yaml:"wrist_tolerance"`
	JogStep        float64   `yaml:"jog_step"`
	ApproachSpeed  float64   `yaml:"approach_speed"`
	RotateSpeed    float64   `yaml:"rotate_speed"`
	TriggerButton  int       `yaml:"trigger_button"`
}

// DefaultParams returns the values used on the reference build.
func DefaultParams() Params {
	return Params{
		Start:          Position{X: 12, Y: 0, Z: -22, Rotation: 60},
		Idle:           Position{X: 0, Y: 0, Z: -20, Rotation: 60},
		PickupHeight:   -26,
		TravelHeight:   -22,
		Descent:        []float64{-24, -26, -27},
		Bumps:          []Bump{{Below: 6, Lift: 1.5}, {Below: 3, Lift: 3}},
		ReadyTolerance: 1,
		FinalTolerance: 0.5,
		WristTolerance: 1,
		JogStep:        0.3,
		ApproachSpeed:  0.5,
		RotateSpeed:    0.25,
		TriggerButton:  0,
	}
}

// Validate checks the parameters for values the cycle cannot work with.
func (p Params) Validate() error {
	switch {
	case len(p.Descent) == 0:
		return errors.New("motion: descent table is empty")
	case p.ReadyTolerance <= 0 || p.FinalTolerance <= 0 || p.WristTolerance <= 0:
		return errors.New("motion: tolerances must be positive")
	case p.JogStep <= 0:
		return errors.New("motion: jog step must be positive")
	case p.ApproachSpeed <= 0 || p.RotateSpeed <= 0:
		return errors.New("motion: speed factors must be positive")
	case p.TriggerButton < 0:
		return errors.New("motion: trigger button must not be negative")
	}
	return nil
}

// lift returns the largest bump that applies at x.
func (p Params) lift(x float64) float64 {
	var lift float64
	for _, b := range p.Bumps {
		if x < b.Below && b.Lift > lift {
			lift = b.Lift
		}
	}
	return lift
}
