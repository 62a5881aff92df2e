package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/golang/geo/r2"

	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/path"
)

type PlanCommand struct {
	Sort bool `long:"sort" description:"Place the targets nearest to the start pose first"`
	Args struct {
		Targets string `positional-arg-name:"targets" description:"Placement targets file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *PlanCommand) Execute(args []string) error {
	tuning, err := loadTuning()
	if err != nil {
		return err
	}
	targets, err := path.LoadTargets(c.Args.Targets)
	if err != nil {
		return err
	}

	solver, validator := tuning.Solver()
	planner := tuning.Planner
	planner.Checker = validator

	start := tuning.Motion.Start
	origin := r2.Point{X: start.X, Y: start.Y}
	if c.Sort {
		path.Sort(targets, path.ByDistance(origin))
	}
	paths, skips := planner.Plan(origin, targets)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d targets, %d planned, %d skipped", len(targets), len(paths), len(skips))))
	for _, p := range paths {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("target %s", p.Target)))
		fmt.Println(waypointTable(p, solver, tuning.Motion.TravelHeight).Render())
	}
	if len(skips) > 0 {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("skipped"))
		var lines []string
		for _, s := range skips {
			lines = append(lines, fmt.Sprintf("  #%d %s: %v", s.Index+1, s.Target, s.Err))
		}
		fmt.Println(dimStyle.Render(strings.Join(lines, "\n")))
	}
	return nil
}

func waypointTable(p path.Path, solver *kinematics.Solver, z float64) *table.Table {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	lastStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)

	rows := make([][]string, 0, len(p.Waypoints))
	for i, wp := range p.Waypoints {
		a := solver.Angles(kinematics.NewPose(wp.X, wp.Y, z, wp.Orientation))
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", wp.X),
			fmt.Sprintf("%.2f", wp.Y),
			fmt.Sprintf("%.0f", wp.Orientation),
			fmt.Sprintf("%.1f / %.1f / %.1f", a[0], a[1], a[2]),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "X", "Y", "Rot", "Servo angles").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row == len(rows)-1 {
				return lastStyle
			}
			return cellStyle
		})
}
