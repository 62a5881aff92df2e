package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/gwillem/dominobot/pkg/control"
	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/kinematics"
	"github.com/gwillem/dominobot/pkg/motion"
	"github.com/gwillem/dominobot/pkg/robot"
)

type RunCommand struct {
	Targets    string `long:"targets" short:"t" default:"targets.txt" description:"Placement targets file, loaded at start and with 'l'"`
	Controlled bool   `long:"controlled" description:"Start placing right away"`
}

const (
	headerHeight = 3 // title + pose line + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

var slotColors = map[robot.Slot]string{
	robot.ArmA:  "196", // red
	robot.ArmB:  "226", // yellow
	robot.ArmC:  "46",  // green
	robot.Wrist: "51",  // cyan
}

// Jog directions, x/y in the base plane and z up.
var jogKeys = map[string]mgl64.Vec3{
	"w": {0, 1, 0},
	"s": {0, -1, 0},
	"a": {-1, 0, 0},
	"d": {1, 0, 0},
	"q": {0, 0, 1},
	"e": {0, 0, -1},
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type runModel struct {
	shared   *control.Shared
	loop     *control.Loop
	solver   *kinematics.Solver
	chart    *streamlinechart.Model
	targets  string
	config   string
	width    int
	height   int
	logs     []string
	notice   control.Status // latest status, shown until it expires
	snap     control.Snapshot
	last     []float64 // chart values of the previous snapshot
	quitting bool
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the control loop
type stateMsg control.Snapshot
type statusMsg control.Status

func waitForState(loop *control.Loop) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-loop.States())
	}
}

func waitForStatus(shared *control.Shared) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(<-shared.Status())
	}
}

func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func newRunModel(shared *control.Shared, loop *control.Loop, solver *kinematics.Solver, targets, config string) runModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, dxl.FullScale),
	)
	for _, slot := range robot.AllSlots() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(slotColors[slot]))
		chart.SetDataSetStyles(slot.String(), runes.ThinLineStyle, style)
	}
	return runModel{
		shared:  shared,
		loop:    loop,
		solver:  solver,
		chart:   &chart,
		targets: targets,
		config:  config,
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.loop),
		waitForStatus(m.shared),
	)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if axis, ok := jogKeys[key]; ok {
			m.shared.SetInput(axis, nil)
			return m, nil
		}
		switch key {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case " ":
			m.shared.SetInput(mgl64.Vec3{}, []bool{true})
		case "m":
			m.shared.SetMode(nextMode(m.snap.Mode))
		case "p":
			if m.shared.Paused() {
				m.shared.Resume()
			} else {
				m.shared.Pause()
			}
		case "l":
			m.shared.LoadTargets(m.targets)
		case "ctrl+s":
			if err := m.shared.SaveConfig(m.config); err == nil {
				m.shared.Post("Configuration saved", motion.DefaultMessageDuration)
			}
		}
		return m, nil

	case stateMsg:
		m.snap = control.Snapshot(msg)
		values := make([]float64, len(m.snap.Servos))
		for i, t := range m.snap.Servos {
			values[i] = t.Position
		}
		// Freeze the chart while nothing moves.
		if !equal(values, m.last) {
			for i, t := range m.snap.Servos {
				if t.ID != dxl.Unassigned {
					m.chart.PushDataSet(robot.Slot(i).String(), t.Position)
				}
			}
			m.chart.DrawAll()
			m.last = values
		}
		return m, waitForState(m.loop)

	case statusMsg:
		st := control.Status(msg)
		m.notice = st
		m.addLog(st.String())
		return m, waitForStatus(m.shared)
	}

	return m, nil
}

func (m runModel) View() string {
	if m.quitting {
		return "Dominobot stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Dominobot"))
	sb.WriteString(fmt.Sprintf(" - %s", m.snap.Mode))
	if m.snap.Mode == motion.Controlled {
		sb.WriteString(fmt.Sprintf(" / %s, target %d of %d", m.snap.State, m.snap.Target+1, m.snap.Target+m.snap.Remaining))
	}
	if !m.snap.Connected {
		sb.WriteString("  " + alertStyle.Render("disconnected"))
	}
	if m.shared.Paused() {
		sb.WriteString("  " + noticeStyle.Render("paused"))
	}
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(fmt.Sprintf("pose %s", m.snap.Pose)))
	if p, ok := m.measured(); ok {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  measured %s", p)))
	}
	if m.notice.Text != "" && (m.notice.Duration < 0 || m.snap.Time.Sub(m.notice.Time) < m.notice.Duration) {
		sb.WriteString("  " + noticeStyle.Render(m.notice.Text))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.snap.Servos))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("w/a/s/d/q/e jog, space trigger, m mode, p pause, l load targets, ctrl+s save, esc quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

// measured is the pose the servos report, if all three arms answered.
func (m runModel) measured() (kinematics.Pose, bool) {
	var a kinematics.ArmAngles
	if len(m.snap.Servos) < 3 || !m.snap.Connected {
		return kinematics.Pose{}, false
	}
	for i, t := range m.snap.Servos {
		if i < 3 && !t.OK {
			return kinematics.Pose{}, false
		}
		if i < len(a) {
			a[i] = t.Position
		}
	}
	return m.solver.Pose(a)
}

func renderLegend(servos []robot.Telemetry) string {
	var items []string
	for _, slot := range robot.AllSlots() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(slotColors[slot])).Bold(true)
		item := colorStyle.Render("━━") + " " + slot.String()
		if int(slot) < len(servos) && servos[slot].ID != dxl.Unassigned {
			t := servos[slot]
			item += fmt.Sprintf(" #%d %.1f° %+.0f%%", t.ID, t.Position, t.Load)
		}
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func nextMode(m motion.Mode) motion.Mode {
	modes := motion.Modes()
	for i, mode := range modes {
		if mode == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return motion.Manual
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *RunCommand) Execute(args []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read %s: %v\nRun 'dominobot setup' first.\n", opts.Config, err)
		os.Exit(1)
	}
	if c.Controlled {
		cfg.Mode = motion.Controlled
	}
	tuning, err := loadTuning()
	if err != nil {
		return err
	}

	solver, validator := tuning.Solver()
	ctrl := motion.NewController(solver, validator, tuning.Motion, logger.Named("motion"))
	planner := tuning.Planner
	planner.Checker = validator

	client := dxl.NewClient(dxl.WithLogger(logger.Named("dxl")))
	shared := control.NewShared(cfg, logger.Named("control"))
	loop := control.NewLoop(shared, robot.NewArm(client, logger.Named("robot")), ctrl, planner,
		control.Options{Logger: logger.Named("loop")})

	if _, err := os.Stat(c.Targets); err == nil {
		shared.LoadTargets(c.Targets)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	p := tea.NewProgram(newRunModel(shared, loop, solver, c.Targets, opts.Config), tea.WithAltScreen())
	_, runErr := p.Run()

	shared.End()
	if err := <-done; err != nil {
		logger.Warn("control loop", zap.Error(err))
	}
	return runErr
}
