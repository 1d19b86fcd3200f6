// Package joystick abstracts the physical game-controller backend.
// The registry and capture engine depend only on the interfaces here,
// so headless environments and tests can substitute the in-memory
// implementation for SDL.
package joystick

import "errors"

var (
	// ErrBackendUnavailable indicates the device-enumeration backend could
	// not start.
	ErrBackendUnavailable = errors.New("joystick backend unavailable")

	// ErrDeviceUnavailable indicates a device index that is no longer
	// attached or cannot be opened.
	ErrDeviceUnavailable = errors.New("joystick device unavailable")
)

// Backend enumerates and opens physical controller devices.
//
// Enumeration indices are reused by the OS when devices are added or
// removed; a stable identity is GUID plus instance id, both exposed on
// Device.
type Backend interface {
	// Init starts the backend. Idempotent.
	Init() error

	// NumDevices returns the number of currently visible devices.
	NumDevices() int

	// Open opens the device at the given enumeration index.
	Open(index int) (Device, error)

	// Pump drains the backend's event queue so hot-plug changes become
	// visible to NumDevices and per-device reads.
	Pump()

	// Close tears the backend down. Idempotent.
	Close()
}

// Device is one opened physical controller.
type Device interface {
	// InstanceID is stable for the life of one OS-level attachment.
	InstanceID() int32

	// GUID identifies the hardware model.
	GUID() string

	Name() string

	NumAxes() int
	NumButtons() int
	NumHats() int

	// Axis returns the raw axis value normalized to [-1, 1].
	Axis(i int) float64

	Button(i int) bool

	// Hat returns the hat position as x, y in {-1, 0, 1}.
	Hat(i int) (x, y int)

	Close()
}
