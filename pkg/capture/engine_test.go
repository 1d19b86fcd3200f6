package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padlink/padlink/pkg/controller"
	"github.com/padlink/padlink/pkg/joystick"
	"github.com/padlink/padlink/pkg/models"
)

func newTestEngine(t *testing.T, cfg Config, callback Callback) (*Engine, *joystick.MemoryBackend) {
	t.Helper()

	backend := joystick.NewMemoryBackend()
	registry := controller.NewRegistry(backend)
	require.NoError(t, registry.Initialize(context.Background()))
	t.Cleanup(registry.Cleanup)

	return NewEngine(registry, cfg, callback), backend
}

func TestApplyDeadZone(t *testing.T) {
	e, _ := newTestEngine(t, Config{DeadZone: 0.1}, nil)

	// Under the threshold flattens to zero.
	assert.Zero(t, e.applyDeadZone(0.05))
	assert.Zero(t, e.applyDeadZone(-0.09))

	// Full deflection stays reachable.
	assert.Equal(t, 1.0, e.applyDeadZone(1.0))
	assert.Equal(t, -1.0, e.applyDeadZone(-1.0))

	// Values just past the threshold rescale from zero.
	assert.InDelta(t, 0.0, e.applyDeadZone(0.1), 1e-9)
	assert.InDelta(t, 0.5, e.applyDeadZone(0.55), 1e-9)
	assert.InDelta(t, -0.5, e.applyDeadZone(-0.55), 1e-9)
}

func TestReadAxes_TriggerRemapAndInvertedY(t *testing.T) {
	e, backend := newTestEngine(t, Config{DeadZone: 0.1}, nil)
	dev := backend.Attach("guid-a", "Pad A")

	dev.SetAxis(1, 0.5)  // hardware Y, inverted on capture
	dev.SetAxis(4, -1.0) // trigger released
	dev.SetAxis(5, 1.0)  // trigger fully pressed

	a := e.readAxes(dev)

	assert.InDelta(t, -(0.5-0.1)/0.9, a.LeftStickY, 1e-9)
	assert.Equal(t, 0.0, a.LeftTrigger)
	assert.Equal(t, 1.0, a.RightTrigger)
}

func TestReadButtons_HatBecomesDPad(t *testing.T) {
	e, backend := newTestEngine(t, Config{}, nil)
	dev := backend.Attach("guid-a", "Pad A")

	dev.SetButton(0, true) // A
	dev.SetButton(7, true) // Start
	dev.SetHat(0, -1, 1)   // up-left

	b := e.readButtons(dev)

	assert.True(t, b.A)
	assert.True(t, b.Start)
	assert.True(t, b.DPadUp)
	assert.True(t, b.DPadLeft)
	assert.False(t, b.DPadDown)
	assert.False(t, b.DPadRight)
}

func TestStateChanged_IgnoresAxisNoise(t *testing.T) {
	prev := &models.ControllerInputData{Axes: models.AxisState{LeftStickX: 0.5}}

	same := &models.ControllerInputData{Axes: models.AxisState{LeftStickX: 0.505}}
	assert.False(t, stateChanged(prev, same))

	moved := &models.ControllerInputData{Axes: models.AxisState{LeftStickX: 0.52}}
	assert.True(t, stateChanged(prev, moved))

	pressed := &models.ControllerInputData{
		Axes:    models.AxisState{LeftStickX: 0.5},
		Buttons: models.ButtonState{A: true},
	}
	assert.True(t, stateChanged(prev, pressed))
}

func TestEnqueue_DropsOldestWhenFull(t *testing.T) {
	e, _ := newTestEngine(t, Config{MaxQueueSize: 2}, nil)

	first := &models.ControllerInputData{ControllerNumber: 1}
	second := &models.ControllerInputData{ControllerNumber: 2}
	third := &models.ControllerInputData{ControllerNumber: 3}

	e.enqueue(first)
	e.enqueue(second)
	e.enqueue(third)

	assert.Equal(t, 2, e.QueueLen())
	assert.Equal(t, 2, e.NextInput(time.Second).ControllerNumber)
	assert.Equal(t, 3, e.NextInput(time.Second).ControllerNumber)
}

func TestEngine_EmitsOnChangeOnly(t *testing.T) {
	samples := make(chan *models.ControllerInputData, 100)

	e, backend := newTestEngine(t, Config{PollingRate: 200}, func(d *models.ControllerInputData) {
		samples <- d
	})
	dev := backend.Attach("guid-a", "Xbox 360 Pad")
	e.registry.Scan(context.Background())

	e.Start()
	defer e.Stop()

	// Initial sample arrives once, then silence while nothing changes.
	first := waitSample(t, samples)
	assert.Equal(t, 1, first.ControllerNumber)
	assertNoSample(t, samples)

	dev.SetButton(0, true)
	pressed := waitSample(t, samples)
	assert.True(t, pressed.Buttons.A)

	state := e.CurrentState(first.ControllerID)
	require.NotNil(t, state)
	assert.True(t, state.Buttons.A)
}

func TestEngine_SkipsUnnumberedControllers(t *testing.T) {
	samples := make(chan *models.ControllerInputData, 10)

	backend := joystick.NewMemoryBackend()
	registry := controller.NewRegistry(backend, controller.WithAutoAssign(false))
	require.NoError(t, registry.Initialize(context.Background()))
	t.Cleanup(registry.Cleanup)

	backend.Attach("guid-a", "Pad A")
	registry.Scan(context.Background())

	e := NewEngine(registry, Config{PollingRate: 200}, func(d *models.ControllerInputData) {
		samples <- d
	})
	e.Start()
	defer e.Stop()

	assertNoSample(t, samples)
}

func TestEngine_SurvivesDeviceReadFailure(t *testing.T) {
	samples := make(chan *models.ControllerInputData, 100)

	e, backend := newTestEngine(t, Config{PollingRate: 200}, func(d *models.ControllerInputData) {
		samples <- d
	})
	bad := backend.Attach("guid-bad", "Broken Pad")
	good := backend.Attach("guid-good", "Pad B")
	bad.FailReads = true
	e.registry.Scan(context.Background())

	e.Start()
	defer e.Stop()

	// The healthy controller still gets through.
	first := waitSample(t, samples)
	assert.Contains(t, first.ControllerID, "guid-good")

	good.SetButton(1, true)
	pressed := waitSample(t, samples)
	assert.True(t, pressed.Buttons.B)
}

// TestEngine_ConcurrentRescanDuringCapture runs the capture loop against
// a registry being rescanned and reassigned from another goroutine, the
// way the sender's hotplug ticker does. Run with -race to verify the
// capture path never shares mutable records with scans.
func TestEngine_ConcurrentRescanDuringCapture(t *testing.T) {
	samples := make(chan *models.ControllerInputData, 100)

	e, backend := newTestEngine(t, Config{PollingRate: 1000}, func(d *models.ControllerInputData) {
		select {
		case samples <- d:
		default:
		}
	})
	dev := backend.Attach("guid-a", "Pad A")
	e.registry.Scan(context.Background())

	e.Start()
	defer e.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		for i := 0; i < 200; i++ {
			e.registry.Scan(ctx)
			for _, c := range e.registry.ConnectedControllers() {
				e.registry.AssignNumber(ctx, c.Identifier(), i%2+1)
			}
			dev.SetAxis(0, float64(i%5)*0.2)
			if i == 100 {
				backend.Detach(dev)
				dev = backend.Attach("guid-b", "Pad B")
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("rescan loop never finished")
	}

	waitSample(t, samples)
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, Config{PollingRate: 200}, nil)

	e.Stop() // stopping a stopped engine is a no-op
	e.Start()
	e.Start() // second start is a no-op
	e.Stop()
	e.Stop()
}

func waitSample(t *testing.T, ch chan *models.ControllerInputData) *models.ControllerInputData {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input sample")
		return nil
	}
}

func assertNoSample(t *testing.T, ch chan *models.ControllerInputData) {
	t.Helper()
	select {
	case d := <-ch:
		t.Fatalf("unexpected sample for controller %d", d.ControllerNumber)
	case <-time.After(100 * time.Millisecond):
	}
}
