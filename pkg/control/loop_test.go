package control

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/dxl/dxltest"
	"github.com/gwillem/dominobot/pkg/motion"
	"github.com/gwillem/dominobot/pkg/path"
	"github.com/gwillem/dominobot/pkg/robot"
)

type harness struct {
	bus    *dxltest.Bus
	shared *Shared
	loop   *Loop
	done   chan error
	cancel context.CancelFunc
}

func newHarness(t *testing.T, failOpen error) *harness {
	return newHarnessWith(t, func(bus *dxltest.Bus) { bus.FailOpen = failOpen })
}

// newHarnessWith lets setup adjust the bus before the loop starts.
func newHarnessWith(t *testing.T, setup func(*dxltest.Bus)) *harness {
	logger := zaptest.NewLogger(t)
	bus := dxltest.NewBus()
	for _, id := range []byte{1, 2, 3} {
		bus.AddServo(id)
	}
	setup(bus)

	tuning := robot.DefaultTuning()
	solver, validator := tuning.Solver()
	ctrl := motion.NewController(solver, validator, tuning.Motion, logger)
	planner := tuning.Planner
	planner.Checker = validator

	cfg := robot.DefaultConfig()
	cfg.ServoPort = "sim"
	cfg.ServoIDs = []int{1, 2, 3}
	shared := NewShared(cfg, logger)

	client := dxl.NewClient(dxl.WithOpener(bus.Open), dxl.WithLogger(logger))
	loop := NewLoop(shared, robot.NewArm(client, logger), ctrl, planner, Options{Period: time.Millisecond, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{bus: bus, shared: shared, loop: loop, done: make(chan error, 1), cancel: cancel}
	go func() { h.done <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// waitFor drains statuses until one starts with text.
func (h *harness) waitFor(t *testing.T, text string) Status {
	t.Helper()
	timeout := time.After(5 * time.Second)
	var seen []string
	for {
		select {
		case st := <-h.shared.Status():
			if strings.HasPrefix(st.Text, text) {
				return st
			}
			seen = append(seen, st.Text)
		case <-timeout:
			t.Fatalf("status %q not posted, got %q", text, seen)
		}
	}
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.shared.End()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestLoop_PlacesTarget(t *testing.T) {
	h := newHarness(t, nil)
	h.waitFor(t, "Connected to sim")

	h.shared.SetTargets([]path.Dominoe{{X: 10, Y: 0, Orientation: 0}})
	h.shared.SetMode(motion.Controlled)
	h.waitFor(t, "Loaded 1 targets")

	st := h.waitFor(t, "Awaiting piece")
	assert.Equal(t, motion.Persist, st.Duration)

	h.shared.SetInput(mgl64.Vec3{}, []bool{true})
	h.waitFor(t, "Rotating")
	h.waitFor(t, "Placed")
	h.waitFor(t, "Reset")

	require.Eventually(t, func() bool {
		s := <-h.loop.States()
		return s.Mode == motion.Manual && s.Target == 0
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, motion.Manual, h.shared.Config().Mode, "fallback to manual is remembered")

	assert.NoError(t, h.stop(t))
	assert.False(t, h.bus.IsOpen(), "bus released")
	assert.False(t, h.shared.Connected())
}

func TestLoop_JogsFromArbitraryStartPosition(t *testing.T) {
	h := newHarnessWith(t, func(bus *dxltest.Bus) {
		for _, id := range []byte{1, 2, 3} {
			s := bus.Servo(id)
			s.SetWord(dxl.GoalPosition.Address, 600)
			s.SetWord(dxl.PresentPosition.Address, 600)
		}
	})
	h.waitFor(t, "Connected to sim")

	require.Eventually(t, func() bool {
		h.shared.SetInput(mgl64.Vec3{1, 0, 0}, nil)
		s := <-h.loop.States()
		return s.Pose.X() > 0
	}, 5*time.Second, time.Millisecond, "jog applied after connecting")
}

func TestLoop_SkipsUnreachableTargets(t *testing.T) {
	h := newHarness(t, nil)
	h.shared.SetTargets([]path.Dominoe{{X: 20, Y: 0}, {X: 10, Y: 0}})
	h.waitFor(t, "Skipped target 1 (radius)")
	h.waitFor(t, "Loaded 1 targets")
}

func TestLoop_PauseReleasesBus(t *testing.T) {
	h := newHarness(t, nil)
	h.waitFor(t, "Connected to sim")

	h.shared.Pause()
	h.waitFor(t, "Paused")
	assert.False(t, h.bus.IsOpen())

	h.shared.Resume()
	h.waitFor(t, "Connected to sim")
	assert.True(t, h.bus.IsOpen())
	assert.Equal(t, 2, h.bus.OpenCount())

	h.cancel()
	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, h.bus.IsOpen())
}

func TestLoop_EndWhilePaused(t *testing.T) {
	h := newHarness(t, nil)
	h.waitFor(t, "Connected to sim")
	h.shared.Pause()
	h.waitFor(t, "Paused")
	assert.NoError(t, h.stop(t))
}

func TestLoop_KeepsRunningWithoutBus(t *testing.T) {
	h := newHarness(t, errors.New("port busy"))
	h.waitFor(t, "Cannot open sim")

	s := <-h.loop.States()
	assert.False(t, s.Connected)
	assert.Equal(t, motion.Manual, s.Mode)

	h.bus.SetFailOpen(nil)
	require.NoError(t, h.shared.SetServoPort("sim", 57600))
	h.waitFor(t, "Connected to sim")
	require.Eventually(t, h.shared.Connected, 5*time.Second, time.Millisecond)
}
