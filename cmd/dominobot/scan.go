package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/robot"
)

type ScanCommand struct {
	Port    string        `long:"port" description:"Serial port (default: the configured servo port)"`
	Baud    int           `long:"baud" description:"Baud rate (default: the configured servo baud rate)"`
	From    int           `long:"from" default:"0" description:"First ID to probe"`
	To      int           `long:"to" default:"253" description:"Last ID to probe"`
	Timeout time.Duration `long:"timeout" default:"30s" description:"Give up after this long"`
}

func (c *ScanCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		cfg = robot.DefaultConfig()
	}
	if c.Port == "" {
		c.Port = cfg.ServoPort
	}
	if c.Baud == 0 {
		c.Baud = cfg.ServoBaud
	}
	if c.From < 0 || c.To > dxl.MaxID || c.From > c.To {
		return fmt.Errorf("scan range %d-%d outside 0-%d", c.From, c.To, dxl.MaxID)
	}

	fmt.Printf("Scanning %s at %d baud for IDs %d-%d...\n", c.Port, c.Baud, c.From, c.To)

	// Feetech STS framing is the Dynamixel 1.0 packet format, so its ping
	// finds AX-12s too.
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     c.Port,
		BaudRate: c.Baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", c.Port, err)
		os.Exit(1)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	servos, err := bus.Scan(ctx, c.From, c.To)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(servos) == 0 {
		fmt.Println("No servos found.")
		fmt.Println("Check the port, the baud rate and the servo power supply.")
		return nil
	}

	fmt.Println(renderScan(servos, cfg.ServoIDs))
	return nil
}

// renderScan lists found servos and the slot each one is configured for.
func renderScan(servos []feetech.FoundServo, ids []int) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	freeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)

	slots := make(map[int]string, len(ids))
	for i, id := range ids {
		if id != dxl.Unassigned && i < len(robot.AllSlots()) {
			slots[id] = robot.Slot(i).String()
		}
	}

	rows := make([][]string, 0, len(servos))
	for _, s := range servos {
		slot, ok := slots[s.ID]
		if !ok {
			slot = "unused"
		}
		rows = append(rows, []string{strconv.Itoa(s.ID), fmt.Sprintf("%v", s.Model), slot})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "Model", "Slot").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(rows) && rows[row][2] == "unused" {
				return freeStyle
			}
			return cellStyle
		})
	return t.Render()
}
