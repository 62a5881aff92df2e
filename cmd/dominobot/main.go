package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gwillem/dominobot/pkg/robot"
)

type Options struct {
	Config  string `long:"config" env:"DOMINOBOT_CONFIG" default:"dominobot.cfg" description:"Robot configuration file"`
	Tuning  string `long:"tuning" env:"DOMINOBOT_TUNING" default:"dominobot.yaml" description:"Geometry and motion tuning file"`
	LogFile string `long:"log-file" env:"DOMINOBOT_LOG_FILE" default:"dominobot.log" description:"Log file, rotated automatically"`
	Verbose bool   `short:"v" long:"verbose" env:"DOMINOBOT_VERBOSE" description:"Log servo traffic and state changes"`

	Run   RunCommand   `command:"run" description:"Drive the robot from the terminal"`
	Setup SetupCommand `command:"setup" description:"Choose ports and servo IDs"`
	Scan  ScanCommand  `command:"scan" description:"Find servos on a serial port"`
	Shell ShellCommand `command:"shell" description:"Interactive servo shell"`
	Plan  PlanCommand  `command:"plan" description:"Show the waypoints planned for a targets file"`
	Info  InfoCommand  `command:"info" description:"Print configuration and tuning"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Dominobot - delta robot domino placer for Dynamixel AX-12 servos"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// newLogger logs JSON to the rotating log file. The terminal is left to
// the commands.
func newLogger() *zap.Logger {
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, level)
	return zap.New(core)
}

// loadConfig returns the stored configuration, or the defaults when none
// was saved yet.
func loadConfig() (robot.Config, error) {
	if !robot.ConfigExists(opts.Config) {
		return robot.DefaultConfig(), nil
	}
	return robot.LoadConfig(opts.Config)
}

func loadTuning() (robot.Tuning, error) {
	return robot.LoadTuningOrDefault(opts.Tuning)
}
