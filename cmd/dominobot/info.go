package main

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/gwillem/dominobot/pkg/robot"
)

type InfoCommand struct{}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tuning, err := loadTuning()
	if err != nil {
		return err
	}

	source := opts.Config
	if !robot.ConfigExists(opts.Config) {
		source = "defaults"
	}
	fmt.Println(headerStyle.Render("Configuration") + dimStyle.Render(" ("+source+")"))
	fmt.Println(configTable(cfg).Render())
	if err := cfg.Validate(); err != nil {
		fmt.Println(dimStyle.Render("warning: " + err.Error()))
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Tuning") + dimStyle.Render(" ("+opts.Tuning+")"))
	data, err := yaml.Marshal(tuning)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	solver, _ := tuning.Solver()
	idle := tuning.Motion.Idle.Pose()
	a := solver.Angles(idle)
	fmt.Println()
	fmt.Printf("Idle pose %s -> servo angles %.2f %.2f %.2f\n", idle, a[0], a[1], a[2])
	return nil
}
