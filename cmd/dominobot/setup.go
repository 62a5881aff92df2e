package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var baudRates = []int{1_000_000, 500_000, 115_200, 57_600, 9600}

type SetupCommand struct {
	Tuning bool `long:"write-tuning" description:"Also write a tuning file with the default geometry if none exists"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Dominobot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(dimStyle.Render(fmt.Sprintf("Ignoring unreadable %s: %v", opts.Config, err)))
		cfg = robot.DefaultConfig()
	}

	ports := portOptions()
	if len(ports) == 0 {
		fmt.Println("No serial ports found; enter the port names by hand.")
	}

	servoPort, clampPort := cfg.ServoPort, cfg.ClampPort
	servoBaud, clampBaud := strconv.Itoa(cfg.ServoBaud), strconv.Itoa(cfg.ClampBaud)
	ids := formatIDs(cfg.ServoIDs)
	speed := strconv.FormatFloat(cfg.Speed, 'f', -1, 64)

	form := huh.NewForm(
		huh.NewGroup(
			portField("Servo bus port", ports, &servoPort),
			huh.NewSelect[string]().
				Title("Servo bus baud rate").
				Options(baudOptions()...).
				Value(&servoBaud),
			huh.NewInput().
				Title("Servo IDs").
				Description("Arm A, arm B, arm C and optionally the wrist; -1 leaves a slot empty").
				Value(&ids).
				Validate(func(s string) error {
					parsed, err := parseIDs(s)
					if err != nil {
						return err
					}
					probe := cfg.Clone()
					probe.ServoIDs = parsed
					return probe.Validate()
				}),
			huh.NewInput().
				Title("Cruise speed (rpm)").
				Value(&speed).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil || v <= 0 || v > dxl.MaxTicks*dxl.RPMPerTick {
						return errors.New("enter a speed between 0 and 113 rpm")
					}
					return nil
				}),
		),
		huh.NewGroup(
			portField("Clamp controller port", ports, &clampPort),
			huh.NewSelect[string]().
				Title("Clamp baud rate").
				Options(baudOptions()...).
				Value(&clampBaud),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	cfg.ServoPort, cfg.ClampPort = servoPort, clampPort
	cfg.ServoBaud, _ = strconv.Atoi(servoBaud)
	cfg.ClampBaud, _ = strconv.Atoi(clampBaud)
	cfg.ServoIDs, _ = parseIDs(ids)
	cfg.Speed, _ = strconv.ParseFloat(speed, 64)

	if err := cfg.Save(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(opts.Tuning); c.Tuning && os.IsNotExist(err) {
		if err := robot.DefaultTuning().Save(opts.Tuning); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving tuning: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default tuning written to %s\n", opts.Tuning)
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Configuration ━━━"))
	fmt.Println(configTable(cfg).Render())
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the robot with: " + headerStyle.Render("dominobot run"))
	return nil
}

type portInfo struct {
	name  string
	label string
}

// portOptions lists serial ports with their USB details where known.
func portOptions() []portInfo {
	var ports []portInfo
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			// Skip Bluetooth ports on macOS
			if strings.Contains(d.Name, "Bluetooth") {
				continue
			}
			label := d.Name
			if d.IsUSB {
				label = fmt.Sprintf("%s (%s:%s %s)", d.Name, d.VID, d.PID, d.Product)
			}
			ports = append(ports, portInfo{d.Name, label})
		}
		return ports
	}

	names, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}
	for _, name := range names {
		ports = append(ports, portInfo{name, name})
	}
	return ports
}

func portField(title string, ports []portInfo, value *string) huh.Field {
	if len(ports) == 0 {
		return huh.NewInput().Title(title).Value(value)
	}
	var options []huh.Option[string]
	known := false
	for _, p := range ports {
		options = append(options, huh.NewOption(p.label, p.name))
		known = known || p.name == *value
	}
	if !known && *value != "" {
		options = append(options, huh.NewOption(*value+" (not present)", *value))
	}
	return huh.NewSelect[string]().Title(title).Options(options...).Value(value)
}

func baudOptions() []huh.Option[string] {
	var options []huh.Option[string]
	for _, b := range baudRates {
		options = append(options, huh.NewOption(strconv.Itoa(b), strconv.Itoa(b)))
	}
	return options
}

func parseIDs(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Errorf("%q is not a servo id", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func configTable(cfg robot.Config) *table.Table {
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := [][]string{
		{"servo port", fmt.Sprintf("%s @ %d", cfg.ServoPort, cfg.ServoBaud)},
		{"clamp port", fmt.Sprintf("%s @ %d", cfg.ClampPort, cfg.ClampBaud)},
		{"speed", fmt.Sprintf("%g rpm", cfg.Speed)},
		{"mode", cfg.Mode.String()},
	}
	for i, slot := range robot.AllSlots() {
		id := "-"
		if i < len(cfg.ServoIDs) && cfg.ServoIDs[i] != dxl.Unassigned {
			id = strconv.Itoa(cfg.ServoIDs[i])
		}
		rows = append(rows, []string{slot.String(), id})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return keyStyle
			}
			return cellStyle
		})
}
