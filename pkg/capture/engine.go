// Package capture polls physical controllers at a fixed rate and emits
// normalized input samples when state meaningfully changes.
package capture

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/controller"
	"github.com/padlink/padlink/pkg/joystick"
	"github.com/padlink/padlink/pkg/models"
)

// axisNoiseThreshold is the smallest axis delta considered a real change.
const axisNoiseThreshold = 0.01

// errorPause is how long the loop rests after an unexpected tick failure.
const errorPause = 100 * time.Millisecond

// Config tunes the capture engine.
type Config struct {
	PollingRate        int     // Hz
	DeadZone           float64 // stick dead zone, fraction of full deflection
	EnableButtonRepeat bool    // emit every tick regardless of change
	MaxQueueSize       int
}

// DefaultConfig returns the standard capture configuration.
func DefaultConfig() Config {
	return Config{
		PollingRate:  60,
		DeadZone:     0.1,
		MaxQueueSize: 1000,
	}
}

func (c *Config) normalize() {
	if c.PollingRate <= 0 {
		c.PollingRate = 60
	}
	if c.DeadZone < 0 || c.DeadZone >= 1 {
		c.DeadZone = 0.1
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
}

// Callback receives each emitted sample synchronously on the capture
// goroutine. It must not block or it stalls the polling cadence.
type Callback func(*models.ControllerInputData)

// Engine polls every numbered, connected controller on a background
// goroutine and pushes changed samples onto a bounded FIFO queue. On
// overflow the oldest sample is dropped; capture never blocks.
type Engine struct {
	registry *controller.Registry
	cfg      Config
	callback Callback

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	queue chan *models.ControllerInputData

	prevMu sync.Mutex
	prev   map[string]*models.ControllerInputData
}

// NewEngine creates a capture engine over the given registry.
func NewEngine(registry *controller.Registry, cfg Config, callback Callback) *Engine {
	cfg.normalize()
	return &Engine{
		registry: registry,
		cfg:      cfg,
		callback: callback,
		queue:    make(chan *models.ControllerInputData, cfg.MaxQueueSize),
		prev:     make(map[string]*models.ControllerInputData),
	}
}

// Start begins capturing on a background goroutine. Starting an already
// running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		log.Warn().Msg("Input capture is already running")
		return
	}

	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(e.stop, e.done)

	log.Info().Int("rate_hz", e.cfg.PollingRate).Msg("Input capture started")
}

// Stop halts capturing and waits for the capture goroutine to exit.
// Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	done := e.done
	e.mu.Unlock()

	<-done
	log.Info().Msg("Input capture stopped")
}

// NextInput pops the next queued sample, waiting up to timeout. Returns
// nil on timeout.
func (e *Engine) NextInput(timeout time.Duration) *models.ControllerInputData {
	select {
	case d := <-e.queue:
		return d
	case <-time.After(timeout):
		return nil
	}
}

// CurrentState returns the last emitted sample for a controller, or nil.
func (e *Engine) CurrentState(controllerID string) *models.ControllerInputData {
	e.prevMu.Lock()
	defer e.prevMu.Unlock()
	return e.prev[controllerID]
}

// QueueLen reports the number of samples currently queued.
func (e *Engine) QueueLen() int {
	return len(e.queue)
}

func (e *Engine) loop(stop, done chan struct{}) {
	defer close(done)

	interval := time.Second / time.Duration(e.cfg.PollingRate)

	for {
		select {
		case <-stop:
			return
		default:
		}

		start := time.Now()

		if ok := e.tick(); !ok {
			// Tick panicked; rest briefly so a persistent fault cannot
			// spin the loop.
			select {
			case <-stop:
				return
			case <-time.After(errorPause):
			}
			continue
		}

		// Hold the polling rate; skip sleeping on overrun.
		remaining := interval - time.Since(start)
		if remaining > 0 {
			select {
			case <-stop:
				return
			case <-time.After(remaining):
			}
		}
	}
}

func (e *Engine) tick() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Capture loop error")
			ok = false
		}
	}()

	e.registry.Pump()

	for _, c := range e.registry.ConnectedControllers() {
		if c.AssignedNumber == 0 {
			continue // unnumbered controllers are not forwarded
		}

		sample := e.captureOne(c)
		if sample == nil {
			continue
		}

		e.prevMu.Lock()
		prev := e.prev[c.Identifier()]
		changed := e.cfg.EnableButtonRepeat || prev == nil || stateChanged(prev, sample)
		if changed {
			e.prev[c.Identifier()] = sample
		}
		e.prevMu.Unlock()

		if !changed {
			continue
		}

		e.enqueue(sample)
		e.invokeCallback(sample)
	}

	return true
}

// captureOne reads one controller. Read errors are confined to this
// device and this tick.
func (e *Engine) captureOne(c *controller.DetectedController) (sample *models.ControllerInputData) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("name", c.Name).Msg("Error capturing controller input")
			sample = nil
		}
	}()

	dev := c.Device()
	if dev == nil {
		return nil
	}

	buttons := e.readButtons(dev)
	axes := e.readAxes(dev)

	return models.NewControllerInputData(
		c.AssignedNumber,
		c.Identifier(),
		c.PreferredInputMethod,
		buttons,
		axes,
	)
}

func (e *Engine) readButtons(dev joystick.Device) models.ButtonState {
	var b models.ButtonState

	// Standard Xbox-style button layout.
	if dev.NumButtons() >= 10 {
		b.A = dev.Button(0)
		b.B = dev.Button(1)
		b.X = dev.Button(2)
		b.Y = dev.Button(3)
		b.LB = dev.Button(4)
		b.RB = dev.Button(5)
		b.Back = dev.Button(6)
		b.Start = dev.Button(7)
		b.LS = dev.Button(8)
		b.RS = dev.Button(9)
	}

	if dev.NumHats() > 0 {
		x, y := dev.Hat(0)
		b.DPadLeft = x < 0
		b.DPadRight = x > 0
		b.DPadUp = y > 0
		b.DPadDown = y < 0
	}

	return b
}

func (e *Engine) readAxes(dev joystick.Device) models.AxisState {
	var a models.AxisState
	n := dev.NumAxes()

	if n >= 2 {
		a.LeftStickX = e.applyDeadZone(dev.Axis(0))
		a.LeftStickY = -e.applyDeadZone(dev.Axis(1)) // hardware Y is inverted
	}
	if n >= 4 {
		a.RightStickX = e.applyDeadZone(dev.Axis(2))
		a.RightStickY = -e.applyDeadZone(dev.Axis(3))
	}
	if n >= 6 {
		// Triggers arrive in [-1, 1]; normalize to [0, 1].
		a.LeftTrigger = math.Max(0, (dev.Axis(4)+1)/2)
		a.RightTrigger = math.Max(0, (dev.Axis(5)+1)/2)
	}

	return a
}

// applyDeadZone flattens values under the threshold to zero and linearly
// rescales the rest so full deflection is still reachable.
func (e *Engine) applyDeadZone(v float64) float64 {
	if math.Abs(v) < e.cfg.DeadZone {
		return 0
	}

	sign := 1.0
	if v < 0 {
		sign = -1.0
	}
	scaled := (math.Abs(v) - e.cfg.DeadZone) / (1 - e.cfg.DeadZone)
	return sign * math.Min(1, scaled)
}

func (e *Engine) enqueue(d *models.ControllerInputData) {
	select {
	case e.queue <- d:
		return
	default:
	}

	// Queue full: drop the oldest sample, favoring freshness.
	select {
	case <-e.queue:
	default:
	}
	select {
	case e.queue <- d:
	default:
	}
}

func (e *Engine) invokeCallback(d *models.ControllerInputData) {
	if e.callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in input callback")
		}
	}()
	e.callback(d)
}

func stateChanged(prev, cur *models.ControllerInputData) bool {
	if prev.Buttons != cur.Buttons {
		return true
	}

	pa, ca := prev.Axes, cur.Axes
	return math.Abs(pa.LeftStickX-ca.LeftStickX) > axisNoiseThreshold ||
		math.Abs(pa.LeftStickY-ca.LeftStickY) > axisNoiseThreshold ||
		math.Abs(pa.RightStickX-ca.RightStickX) > axisNoiseThreshold ||
		math.Abs(pa.RightStickY-ca.RightStickY) > axisNoiseThreshold ||
		math.Abs(pa.LeftTrigger-ca.LeftTrigger) > axisNoiseThreshold ||
		math.Abs(pa.RightTrigger-ca.RightTrigger) > axisNoiseThreshold
}
