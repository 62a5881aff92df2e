package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/robot"
)

type ShellCommand struct {
	Port string `long:"port" description:"Serial port (default: the configured servo port)"`
	Baud int    `long:"baud" description:"Baud rate (default: the configured servo baud rate)"`
}

// servoShell talks to single servos by ID, bypassing the control loop.
type servoShell struct {
	client *dxl.Client
	solver *kinematics.Solver
	valid  *kinematics.Validator
	slots  []int
}

func (c *ShellCommand) Execute(args []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring unreadable %s: %v\n", opts.Config, err)
		cfg = robot.DefaultConfig()
	}
	if c.Port == "" {
		c.Port = cfg.ServoPort
	}
	if c.Baud == 0 {
		c.Baud = cfg.ServoBaud
	}
	tuning, err := loadTuning()
	if err != nil {
		return err
	}

	client := dxl.NewClient(dxl.WithLogger(logger.Named("dxl")))
	if err := client.Open(c.Port, c.Baud); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	logger.Info("shell started", zap.String("port", c.Port))

	solver, validator := tuning.Solver()
	s := &servoShell{client: client, solver: solver, valid: validator, slots: cfg.ServoIDs}

	shell := ishell.New()
	shell.Println(fmt.Sprintf("Dominobot servo shell on %s @ %d", c.Port, c.Baud))
	shell.ShowPrompt(true)
	s.register(shell)
	shell.Start()
	return nil
}

func (s *servoShell) register(shell *ishell.Shell) {
	registerNames := func([]string) []string {
		var names []string
		for _, r := range dxl.Registers() {
			names = append(names, r.Name)
		}
		return names
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "ping",
		Help: "ping <id>...",
		Func: s.withServos(func(c *ishell.Context, sv *dxl.Servo) error {
			if err := s.client.Ping(byte(sv.ID())); err != nil {
				return err
			}
			c.Printf("servo %d answers\n", sv.ID())
			return nil
		}),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "status <id>...: position, load, speed, voltage and temperature",
		Func: s.withServos(func(c *ishell.Context, sv *dxl.Servo) error {
			pos, err := sv.Position()
			if err != nil {
				return err
			}
			load, _ := sv.Load()
			speed, _ := sv.Speed()
			volt, _ := sv.Voltage()
			temp, _ := sv.Temperature()
			c.Printf("servo %d: %.1f° load %+.0f%% speed %.1f rpm %.1f V %.0f °C\n", sv.ID(), pos, load, speed, volt, temp)
			return nil
		}),
	})
	shell.AddCmd(&ishell.Cmd{
		Name:      "read",
		Help:      "read <register> <id>...",
		Completer: registerNames,
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(errors.New("usage: read <register> <id>..."))
				return
			}
			reg, ok := dxl.RegisterByName(c.Args[0])
			if !ok {
				c.Err(errors.Errorf("unknown register %q", c.Args[0]))
				return
			}
			s.each(c, c.Args[1:], func(sv *dxl.Servo) error {
				v, err := sv.ReadRegister(reg)
				if err != nil {
					return err
				}
				c.Printf("servo %d %s = %g\n", sv.ID(), reg.Name, v)
				return nil
			})
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name:      "write",
		Help:      "write <register> <value> <id>...",
		Completer: registerNames,
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(errors.New("usage: write <register> <value> <id>..."))
				return
			}
			reg, ok := dxl.RegisterByName(c.Args[0])
			if !ok {
				c.Err(errors.Errorf("unknown register %q", c.Args[0]))
				return
			}
			v, err := strconv.ParseFloat(c.Args[1], 64)
			if err != nil {
				c.Err(err)
				return
			}
			s.each(c, c.Args[2:], func(sv *dxl.Servo) error { return sv.WriteRegister(reg, v) })
		},
	})
	s.setter(shell, "goal", "goal <degrees> <id>...", func(sv *dxl.Servo, v float64) error { return sv.SetGoal(v) })
	s.setter(shell, "speed", "speed <rpm> <id>...", func(sv *dxl.Servo, v float64) error { return sv.SetSpeed(v) })
	s.setter(shell, "torque", "torque <0|1> <id>...", func(sv *dxl.Servo, v float64) error { return sv.SetTorque(v != 0) })
	s.setter(shell, "led", "led <0|1> <id>...", func(sv *dxl.Servo, v float64) error { return sv.SetLED(v != 0) })
	s.setter(shell, "joint", "joint <0|1> <id>...: joint or wheel mode", func(sv *dxl.Servo, v float64) error { return sv.SetJointMode(v != 0) })

	shell.AddCmd(&ishell.Cmd{
		Name: "compliance",
		Help: "compliance <margin> <slope> <id>...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(errors.New("usage: compliance <margin> <slope> <id>..."))
				return
			}
			margin, err1 := strconv.ParseUint(c.Args[0], 10, 8)
			slope, err2 := strconv.ParseUint(c.Args[1], 10, 8)
			if err1 != nil || err2 != nil {
				c.Err(errors.New("margin and slope are bytes"))
				return
			}
			s.each(c, c.Args[2:], func(sv *dxl.Servo) error { return sv.SetCompliance(byte(margin), byte(slope)) })
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "limits",
		Help: "limits <min degrees> <max degrees> <id>...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(errors.New("usage: limits <min> <max> <id>..."))
				return
			}
			lo, err1 := strconv.ParseFloat(c.Args[0], 64)
			hi, err2 := strconv.ParseFloat(c.Args[1], 64)
			if err1 != nil || err2 != nil {
				c.Err(errors.New("limits are numbers"))
				return
			}
			s.each(c, c.Args[2:], func(sv *dxl.Servo) error { return sv.SetAngleLimits(lo, hi) })
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "id",
		Help: "id <old> <new>: renumber a servo",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(errors.New("usage: id <old> <new>"))
				return
			}
			from, err1 := strconv.Atoi(c.Args[0])
			to, err2 := strconv.Atoi(c.Args[1])
			if err1 != nil || err2 != nil {
				c.Err(errors.New("ids are numbers"))
				return
			}
			sv := dxl.NewServo(s.client, from)
			if err := sv.SetID(to); err != nil {
				c.Err(err)
				return
			}
			c.Printf("servo %d is now %d\n", from, to)
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "angles",
		Help: "angles <x> <y> <z> [rotation]: servo angles for a pose",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(errors.New("usage: angles <x> <y> <z> [rotation]"))
				return
			}
			var v [4]float64
			for i, a := range c.Args {
				if i >= len(v) {
					break
				}
				f, err := strconv.ParseFloat(a, 64)
				if err != nil {
					c.Err(err)
					return
				}
				v[i] = f
			}
			p := kinematics.NewPose(v[0], v[1], v[2], v[3])
			a := s.solver.Angles(p)
			c.Printf("%s -> %.2f %.2f %.2f wrist %.2f\n", p, a[0], a[1], a[2], a[kinematics.Wrist])
			if err := s.valid.Check(p); err != nil {
				c.Println(err)
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "slots",
		Help: "show the configured servo ids",
		Func: func(c *ishell.Context) {
			for i, id := range s.slots {
				c.Printf("%-6s %d\n", robot.Slot(i), id)
			}
		},
	})
}

// withServos runs fn for every ID argument.
func (s *servoShell) withServos(fn func(*ishell.Context, *dxl.Servo) error) func(*ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) == 0 {
			c.Err(errors.New("no servo ids given"))
			return
		}
		s.each(c, c.Args, func(sv *dxl.Servo) error { return fn(c, sv) })
	}
}

// setter registers a command that takes one number followed by IDs.
func (s *servoShell) setter(shell *ishell.Shell, name, help string, fn func(*dxl.Servo, float64) error) {
	shell.AddCmd(&ishell.Cmd{
		Name: name,
		Help: help,
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(errors.New("usage: " + help))
				return
			}
			v, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(err)
				return
			}
			s.each(c, c.Args[1:], func(sv *dxl.Servo) error { return fn(sv, v) })
		},
	})
}

// each parses IDs, or slot names, and calls fn for each one. Errors are
// printed and do not stop the remaining servos.
func (s *servoShell) each(c *ishell.Context, args []string, fn func(*dxl.Servo) error) {
	for _, a := range args {
		id, err := s.resolve(a)
		if err != nil {
			c.Err(err)
			continue
		}
		if err := fn(dxl.NewServo(s.client, id)); err != nil {
			c.Err(err)
		}
	}
}

func (s *servoShell) resolve(arg string) (int, error) {
	for i, slot := range robot.AllSlots() {
		if strings.EqualFold(arg, slot.String()) && i < len(s.slots) {
			return s.slots[i], nil
		}
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 || id > dxl.MaxID {
		return 0, errors.Errorf("%q is not a servo id", arg)
	}
	return id, nil
}
