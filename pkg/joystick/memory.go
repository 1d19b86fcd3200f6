package joystick

import (
	"fmt"
	"sync"
)

// MemoryBackend is a deterministic in-memory Backend used by tests and
// headless runs. Devices are attached and detached explicitly; enumeration
// indices are compacted on detach the way the OS reuses them.
type MemoryBackend struct {
	mu      sync.Mutex
	inited  bool
	nextID  int32
	devices []*MemoryDevice
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Init marks the backend started. Idempotent, never fails.
func (b *MemoryBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inited = true
	return nil
}

// Attach adds a device with the given hardware GUID and name, returning it
// for direct state manipulation.
func (b *MemoryBackend) Attach(guid, name string) *MemoryDevice {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := &MemoryDevice{
		id:       b.nextID,
		guid:     guid,
		name:     name,
		axes:     make([]float64, 6),
		buttons:  make([]bool, 10),
		hats:     make([][2]int, 1),
		attached: true,
	}
	b.nextID++
	b.devices = append(b.devices, d)
	return d
}

// Detach removes a device from enumeration. Open handles to it keep working
// until closed, matching real backend behavior.
func (b *MemoryBackend) Detach(d *MemoryDevice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, dev := range b.devices {
		if dev == d {
			b.devices = append(b.devices[:i], b.devices[i+1:]...)
			d.attached = false
			return
		}
	}
}

// NumDevices returns the number of attached devices.
func (b *MemoryBackend) NumDevices() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.devices)
}

// Open returns the device at the given enumeration index.
func (b *MemoryBackend) Open(index int) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.devices) {
		return nil, fmt.Errorf("%w: index %d", ErrDeviceUnavailable, index)
	}
	return b.devices[index], nil
}

// Pump is a no-op; memory devices change state synchronously.
func (b *MemoryBackend) Pump() {}

// Close clears all devices. Idempotent.
func (b *MemoryBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = nil
	b.inited = false
}

// MemoryDevice is a controllable fake controller.
type MemoryDevice struct {
	mu       sync.Mutex
	id       int32
	guid     string
	name     string
	axes     []float64
	buttons  []bool
	hats     [][2]int
	attached bool

	// FailReads makes every read panic, exercising per-device error paths.
	FailReads bool
}

func (d *MemoryDevice) InstanceID() int32 { return d.id }
func (d *MemoryDevice) GUID() string      { return d.guid }
func (d *MemoryDevice) Name() string      { return d.name }

func (d *MemoryDevice) NumAxes() int    { return len(d.axes) }
func (d *MemoryDevice) NumButtons() int { return len(d.buttons) }
func (d *MemoryDevice) NumHats() int    { return len(d.hats) }

func (d *MemoryDevice) Axis(i int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailReads {
		panic("memory device read failure")
	}
	return d.axes[i]
}

func (d *MemoryDevice) Button(i int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailReads {
		panic("memory device read failure")
	}
	return d.buttons[i]
}

func (d *MemoryDevice) Hat(i int) (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailReads {
		panic("memory device read failure")
	}
	return d.hats[i][0], d.hats[i][1]
}

func (d *MemoryDevice) Close() {}

// SetAxis sets a raw axis value.
func (d *MemoryDevice) SetAxis(i int, v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.axes[i] = v
}

// SetButton sets a button state.
func (d *MemoryDevice) SetButton(i int, pressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buttons[i] = pressed
}

// SetHat sets a hat position.
func (d *MemoryDevice) SetHat(i, x, y int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hats[i] = [2]int{x, y}
}
