package robot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/dxl/dxltest"
	"github.com/gwillem/dominobot/pkg/kinematics"
)

func newTestArm(t *testing.T, ids ...byte) (*Arm, *dxltest.Bus) {
	bus := dxltest.NewBus()
	for _, id := range ids {
		bus.AddServo(id)
	}
	logger := zaptest.NewLogger(t)
	client := dxl.NewClient(dxl.WithOpener(bus.Open), dxl.WithLogger(logger))
	arm := NewArm(client, logger)
	require.NoError(t, arm.Connect("sim", 1_000_000))
	return arm, bus
}

func TestArm_Assign(t *testing.T) {
	arm, _ := newTestArm(t)
	assert.Equal(t, []int{-1, -1, -1, -1}, arm.IDs())

	arm.Assign([]int{4, 5, 6})
	assert.Equal(t, []int{4, 5, 6, -1}, arm.IDs())
	assert.False(t, arm.HasWrist())

	arm.Assign([]int{4, 5, 6, 7})
	assert.True(t, arm.HasWrist())
	assert.Equal(t, 7, arm.Servo(Wrist).ID())
}

func TestArm_WriteGoals(t *testing.T) {
	arm, bus := newTestArm(t, 1, 2, 3)
	arm.Assign([]int{1, 2, 3})

	goal := kinematics.ArmAngles{150, 199, math.NaN(), 60}
	require.NoError(t, arm.WriteGoals(goal))

	require.Len(t, bus.Frames(), 1, "a single sync write")
	assert.Equal(t, byte(dxl.InstSyncWrite), bus.LastFrame()[4])
	assert.Equal(t, dxl.DegreesToTicks(150), bus.Servo(1).Word(dxl.GoalPosition.Address))
	assert.Equal(t, dxl.DegreesToTicks(199), bus.Servo(2).Word(dxl.GoalPosition.Address))
	assert.Equal(t, uint16(512), bus.Servo(3).Word(dxl.GoalPosition.Address), "NaN goal skipped")

	arm.Assign(nil)
	bus.ClearFrames()
	require.NoError(t, arm.WriteGoals(goal))
	assert.Empty(t, bus.Frames())
}

func TestArm_ReadTelemetry(t *testing.T) {
	arm, bus := newTestArm(t, 1, 2, 3, 4)
	arm.Assign([]int{1, 2, 3, 4})
	bus.Servo(2).SetWord(dxl.PresentPosition.Address, 700)
	bus.Servo(3).SetWord(dxl.PresentLoad.Address, 1024|512)

	tel, err := arm.ReadTelemetry(nil)
	require.NoError(t, err)
	require.Len(t, tel, 4)
	for i, tm := range tel {
		assert.True(t, tm.OK, "slot %d", i)
		assert.Equal(t, i+1, tm.ID)
	}
	assert.Equal(t, dxl.TicksToDegrees(700), tel[ArmB].Position)
	assert.InDelta(t, -50.05, tel[ArmC].Load, 0.01)

	// A silent servo keeps its last reading.
	bus.Servo(2).Silent = true
	bus.Servo(1).SetWord(dxl.PresentPosition.Address, 600)
	next, err := arm.ReadTelemetry(tel)
	assert.Error(t, err)
	assert.False(t, next[ArmB].OK)
	assert.Equal(t, tel[ArmB].Position, next[ArmB].Position)
	assert.True(t, next[ArmA].OK)
	assert.Equal(t, dxl.TicksToDegrees(600), next[ArmA].Position)

	assert.Len(t, arm.Positions(next), 4)
	arm.Assign([]int{1, 2, 3})
	pos := arm.Positions(next)
	assert.Len(t, pos, 3)
	assert.Equal(t, next[ArmA].Position, pos[0])
}

func TestArm_SpeedAndTorque(t *testing.T) {
	arm, bus := newTestArm(t, 1, 2, 3)
	arm.Assign([]int{1, 2, 3})

	require.NoError(t, arm.SetSpeed(30))
	require.NoError(t, arm.Enable())
	for _, id := range []byte{1, 2, 3} {
		assert.Equal(t, dxl.RPMToTicks(30), bus.Servo(id).Word(dxl.MovingSpeed.Address))
		assert.Equal(t, byte(1), bus.Servo(id).Regs[dxl.TorqueEnable.Address])
	}

	arm.Assign([]int{1, 2, 9})
	err := arm.Disable()
	assert.Error(t, err, "servo 9 does not answer")
	assert.Equal(t, byte(0), bus.Servo(1).Regs[dxl.TorqueEnable.Address])

	require.NoError(t, arm.Release())
	assert.False(t, arm.Connected())
	assert.Error(t, arm.SetSpeed(10))
}
