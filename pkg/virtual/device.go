// Package virtual reconciles remote controller input onto managed
// virtual device handles. Platform drivers sit behind the Device
// interface; implementations are selected from a registered factory
// table at startup rather than by runtime type inspection.
package virtual

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/padlink/padlink/pkg/models"
)

var (
	// ErrNotConnected indicates an operation on a device that has not
	// been connected.
	ErrNotConnected = errors.New("virtual controller not connected")

	// ErrUnknownDriver indicates a driver name with no registered factory.
	ErrUnknownDriver = errors.New("unknown virtual controller driver")
)

// Device is one platform virtual controller handle. Implementations
// translate normalized button/axis state into driver calls and are
// responsible for diffing against their own last-applied snapshot so
// redundant presses never reach the driver.
type Device interface {
	// Connect makes the device ready to accept state updates.
	Connect() error

	// Disconnect resets the device to neutral and releases it.
	Disconnect()

	// UpdateState applies an input sample, emitting only deltas downstream.
	UpdateState(d *models.ControllerInputData) error

	// ResetState forces the device back to all-released, zero-axis state.
	ResetState()
}

// Factory builds a device for a controller number.
type Factory func(number int) (Device, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// RegisterDriver adds a named device factory to the driver table.
// Typically called from package init or application startup.
func RegisterDriver(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// LookupDriver returns the factory registered under name.
func LookupDriver(name string) (Factory, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	f, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return f, nil
}

// DriverNames lists registered drivers, sorted.
func DriverNames() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterDriver("null", func(number int) (Device, error) {
		return NewNullDevice(number), nil
	})
}
