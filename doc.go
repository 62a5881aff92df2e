// Package dominobot drives a three-arm delta robot that places dominoes,
// built from Dynamixel AX-12 servos.
//
// The robot picks up a piece at a fixed station, turns it with a wrist
// servo and carries it along a straight line of waypoints to its target,
// where it lowers it in steps.
//
// # Installation
//
//	go install github.com/gwillem/dominobot/cmd/dominobot@latest
//
// # Usage
//
// First, choose the serial ports and servo IDs:
//
//	dominobot setup
//
// Then drive the robot, placing the targets listed in targets.txt:
//
//	dominobot run --targets targets.txt
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/dominobot: CLI with run, setup, scan, shell, plan and info commands
//   - pkg/dxl: Dynamixel 1.0 packets, serial client and servo proxies
//   - pkg/kinematics: inverse and forward kinematics and the workspace envelope
//   - pkg/path: placement targets and waypoint planning
//   - pkg/motion: manual jogging and the placement cycle
//   - pkg/robot: servo slots, configuration and tuning files
//   - pkg/control: the worker loop that owns the servo bus
package dominobot
