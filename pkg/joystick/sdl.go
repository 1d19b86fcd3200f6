package joystick

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/veandco/go-sdl2/sdl"
)

// SDLBackend enumerates controllers through SDL's joystick subsystem.
type SDLBackend struct {
	mu          sync.Mutex
	initialized bool
	open        map[int32]*sdlDevice
}

// NewSDLBackend creates an uninitialized SDL backend. Call Init before use.
func NewSDLBackend() *SDLBackend {
	return &SDLBackend{open: make(map[int32]*sdlDevice)}
}

// Init starts the SDL joystick subsystem. Idempotent.
func (b *SDLBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	if err := sdl.Init(sdl.INIT_JOYSTICK); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	b.initialized = true
	log.Info().Msg("SDL joystick backend initialized")
	return nil
}

// NumDevices returns the number of joysticks SDL currently sees.
func (b *SDLBackend) NumDevices() int {
	return sdl.NumJoysticks()
}

// Open opens the joystick at the given enumeration index.
func (b *SDLBackend) Open(index int) (Device, error) {
	joy := sdl.JoystickOpen(index)
	if joy == nil {
		return nil, fmt.Errorf("%w: index %d", ErrDeviceUnavailable, index)
	}

	d := &sdlDevice{joy: joy}

	b.mu.Lock()
	b.open[int32(joy.InstanceID())] = d
	b.mu.Unlock()

	return d, nil
}

// Pump processes pending SDL events so hot-plug changes are reflected.
func (b *SDLBackend) Pump() {
	sdl.JoystickUpdate()
}

// Close shuts the subsystem down, closing any devices still open. Idempotent.
func (b *SDLBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	for id, d := range b.open {
		d.Close()
		delete(b.open, id)
	}

	sdl.QuitSubSystem(sdl.INIT_JOYSTICK)
	b.initialized = false
	log.Info().Msg("SDL joystick backend closed")
}

type sdlDevice struct {
	joy *sdl.Joystick
}

func (d *sdlDevice) InstanceID() int32 {
	return int32(d.joy.InstanceID())
}

func (d *sdlDevice) GUID() string {
	return sdl.JoystickGetGUIDString(d.joy.GUID())
}

func (d *sdlDevice) Name() string {
	return d.joy.Name()
}

func (d *sdlDevice) NumAxes() int    { return d.joy.NumAxes() }
func (d *sdlDevice) NumButtons() int { return d.joy.NumButtons() }
func (d *sdlDevice) NumHats() int    { return d.joy.NumHats() }

func (d *sdlDevice) Axis(i int) float64 {
	v := float64(d.joy.Axis(i)) / 32767.0
	if v < -1 {
		v = -1
	}
	return v
}

func (d *sdlDevice) Button(i int) bool {
	return d.joy.Button(i) != 0
}

func (d *sdlDevice) Hat(i int) (int, int) {
	h := d.joy.Hat(i)
	var x, y int
	if h&sdl.HAT_LEFT != 0 {
		x = -1
	}
	if h&sdl.HAT_RIGHT != 0 {
		x = 1
	}
	if h&sdl.HAT_UP != 0 {
		y = 1
	}
	if h&sdl.HAT_DOWN != 0 {
		y = -1
	}
	return x, y
}

func (d *sdlDevice) Close() {
	d.joy.Close()
}
