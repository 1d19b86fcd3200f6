package virtual

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/models"
)

// NullDevice accepts and records state without driving any OS device.
// It is the fallback on platforms with no virtual-gamepad driver and the
// device of choice in tests.
type NullDevice struct {
	number int

	mu        sync.Mutex
	connected bool
	last      *models.ControllerInputData
}

// NewNullDevice creates a null device for the given controller number.
func NewNullDevice(number int) *NullDevice {
	return &NullDevice{number: number}
}

func (d *NullDevice) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		log.Warn().Int("number", d.number).Msg("Virtual controller is already connected")
		return nil
	}
	d.connected = true
	log.Info().Int("number", d.number).Msg("Null virtual controller connected")
	return nil
}

func (d *NullDevice) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return
	}
	d.last = nil // neutral before removal
	d.connected = false
	log.Info().Int("number", d.number).Msg("Null virtual controller disconnected")
}

func (d *NullDevice) UpdateState(input *models.ControllerInputData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return ErrNotConnected
	}
	d.last = input
	return nil
}

func (d *NullDevice) ResetState() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = nil
}

// LastState returns the most recently applied sample, or nil when the
// device is neutral.
func (d *NullDevice) LastState() *models.ControllerInputData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
