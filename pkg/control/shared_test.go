package control

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/dominobot/pkg/motion"
	"github.com/gwillem/dominobot/pkg/path"
	"github.com/gwillem/dominobot/pkg/robot"
)

func nextStatus(t *testing.T, s *Shared) Status {
	t.Helper()
	select {
	case st := <-s.Status():
		return st
	case <-time.After(time.Second):
		t.Fatal("no status posted")
		return Status{}
	}
}

func TestShared_InitialConfigIsStaged(t *testing.T) {
	cfg := robot.DefaultConfig()
	cfg.Mode = motion.Controlled
	s := NewShared(cfg, zaptest.NewLogger(t))

	st := s.take()
	require.NotNil(t, st.config)
	assert.Equal(t, cfg, *st.config)
	require.NotNil(t, st.mode)
	assert.Equal(t, motion.Controlled, *st.mode)

	st = s.take()
	assert.Nil(t, st.config)
	assert.Nil(t, st.mode)
	assert.False(t, st.replan)
}

func TestShared_RejectsInvalidChanges(t *testing.T) {
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	s.take()

	assert.Error(t, s.SetServoIDs([]int{1, 1, 2}))
	assert.Error(t, s.SetSpeed(0))
	assert.Equal(t, robot.DefaultConfig(), s.Config())
	assert.Nil(t, s.take().config)

	require.NoError(t, s.SetServoIDs([]int{1, 2, 3}))
	require.NoError(t, s.SetServoPort("/dev/ttyUSB0", 57600))
	require.NoError(t, s.SetClampPort("/dev/ttyUSB1", 115200))
	st := s.take()
	require.NotNil(t, st.config)
	assert.Equal(t, []int{1, 2, 3}, st.config.ServoIDs)
	assert.Equal(t, "/dev/ttyUSB0", st.config.ServoPort)
	assert.Equal(t, 115200, st.config.ClampBaud)
}

func TestShared_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	s.take()

	stored := robot.DefaultConfig()
	stored.ServoBaud = 1_000_000
	stored.ServoPort = "COM9"
	stored.Speed = 30
	stored.ServoIDs = []int{1, 2, 3}
	good := filepath.Join(dir, "good.cfg")
	require.NoError(t, stored.Save(good))

	require.NoError(t, s.LoadConfig(good))
	assert.Equal(t, stored, s.Config())
	st := s.take()
	require.NotNil(t, st.config)
	assert.Equal(t, stored, *st.config)

	t.Run("missing file", func(t *testing.T) {
		err := s.LoadConfig(filepath.Join(dir, "missing.cfg"))
		var ce *robot.ConfigError
		assert.ErrorAs(t, err, &ce)
		assert.Equal(t, "Cannot read stored data", nextStatus(t, s).Text)
		assert.Equal(t, stored, s.Config())
	})

	t.Run("version mismatch", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.cfg")
		require.NoError(t, os.WriteFile(bad, []byte{0, 0, 0, 3, 0, 0, 0x25, 0x80}, 0644))
		err := s.LoadConfig(bad)
		var ce *robot.ConfigError
		assert.ErrorAs(t, err, &ce)
		assert.Equal(t, "Error opening file", nextStatus(t, s).Text)
		assert.Equal(t, stored, s.Config())
		assert.Nil(t, s.take().config)
	})
}

func TestShared_SyncMode(t *testing.T) {
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	s.SetMode(motion.Controlled)
	s.take()

	s.syncMode(motion.Manual)
	assert.Equal(t, motion.Manual, s.Config().Mode)

	// A pending operator choice wins over the controller's mode.
	s.SetMode(motion.Controlled)
	s.syncMode(motion.Manual)
	assert.Equal(t, motion.Controlled, s.Config().Mode)
	mode := s.take().mode
	require.NotNil(t, mode)
	assert.Equal(t, motion.Controlled, *mode)
}

func TestShared_Targets(t *testing.T) {
	dir := t.TempDir()
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	s.take()

	file := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(file, []byte("2\n10 0 0\n10 3 90\n"), 0644))
	require.NoError(t, s.LoadTargets(file))
	st := s.take()
	assert.True(t, st.replan)
	assert.Equal(t, []path.Dominoe{{X: 10}, {X: 10, Y: 3, Orientation: 90}}, st.targets)

	assert.Error(t, s.LoadTargets(filepath.Join(dir, "nope.txt")))
	assert.Equal(t, "Error opening file", nextStatus(t, s).Text)
	assert.False(t, s.take().replan)
}

func TestShared_InputIsNormalizedAndConsumed(t *testing.T) {
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	s.SetInput(mgl64.Vec3{3, 4, 0}, []bool{true})

	st := s.take()
	assert.InDelta(t, 0.6, st.axis.X(), 1e-12)
	assert.InDelta(t, 0.8, st.axis.Y(), 1e-12)
	assert.Equal(t, []bool{true}, st.buttons)

	st = s.take()
	assert.Equal(t, mgl64.Vec3{}, st.axis)
	assert.Empty(t, st.buttons)
}

func TestShared_StatusDropsOldest(t *testing.T) {
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	for i := 0; i < statusBuffer+4; i++ {
		s.Post(strconv.Itoa(i), motion.DefaultMessageDuration)
	}
	assert.Equal(t, "4", nextStatus(t, s).Text)
	assert.Len(t, s.Status(), statusBuffer-1)
}

func TestShared_PauseResumeEnd(t *testing.T) {
	s := NewShared(robot.DefaultConfig(), zaptest.NewLogger(t))
	assert.True(t, s.waitResume(), "not paused")

	s.Pause()
	assert.True(t, s.Paused())
	woke := make(chan bool)
	go func() { woke <- s.waitResume() }()

	select {
	case <-woke:
		t.Fatal("returned while paused")
	case <-time.After(20 * time.Millisecond):
	}
	s.Resume()
	assert.True(t, <-woke)

	s.Pause()
	go func() { woke <- s.waitResume() }()
	s.End()
	assert.False(t, <-woke)
	assert.True(t, s.Ended())
}
