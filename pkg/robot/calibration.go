package robot

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/motion"
	"github.com/gwillem/dominobot/pkg/path"
)

const DefaultTuningFile = "dominobot.yaml"

// TuningVersion is the tuning file layout this build reads.
const TuningVersion = 1

// Tuning holds the mechanical calibration and motion settings of one build.
type Tuning struct {
	Version  int                 `yaml:"version"`
	Geometry kinematics.Geometry `yaml:"geometry"`
	Limits   kinematics.Limits   `yaml:"limits"`
	Planner  path.Planner        `yaml:"planner"`
	Motion   motion.Params       `yaml:"motion"`
}

// DefaultTuning returns the settings of the reference build.
func DefaultTuning() Tuning {
	return Tuning{
		Version:  TuningVersion,
		Geometry: kinematics.DefaultGeometry(),
		Limits:   kinematics.DefaultLimits(),
		Planner:  path.DefaultPlanner(),
		Motion:   motion.DefaultParams(),
	}
}

// LoadTuning loads a tuning file. Fields missing from the file keep their
// defaults.
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, errors.Wrap(err, "read tuning file")
	}
	t := DefaultTuning()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, errors.Wrap(err, "parse tuning YAML")
	}
	if t.Version != TuningVersion {
		return Tuning{}, errors.Errorf("tuning file %s: unsupported version %d", path, t.Version)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, errors.Wrapf(err, "tuning file %s", path)
	}
	return t, nil
}

// LoadTuningOrDefault loads path if it exists and returns the defaults
// otherwise.
func LoadTuningOrDefault(path string) (Tuning, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultTuning(), nil
	}
	return LoadTuning(path)
}

// Validate checks every section.
func (t Tuning) Validate() error {
	if err := t.Geometry.Validate(); err != nil {
		return err
	}
	if t.Limits.MinAngle >= t.Limits.MaxAngle {
		return errors.Errorf("limits: min angle %g not below max angle %g", t.Limits.MinAngle, t.Limits.MaxAngle)
	}
	if t.Planner.Separation <= 0 {
		return errors.New("planner: separation must be positive")
	}
	return t.Motion.Validate()
}

// Save writes the tuning file.
func (t Tuning) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Solver builds the kinematics for this tuning.
func (t Tuning) Solver() (*kinematics.Solver, *kinematics.Validator) {
	s := kinematics.NewSolver(t.Geometry)
	return s, kinematics.NewValidator(s, t.Limits)
}
