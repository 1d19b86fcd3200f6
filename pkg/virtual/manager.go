package virtual

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/models"
)

// ManagerConfig tunes the reconciliation layer.
type ManagerConfig struct {
	// MaxControllers caps how many virtual controllers may exist at once.
	// Zero is the explicit unlimited opt-in: any positive controller
	// number is then accepted, including numbers above 8.
	MaxControllers int

	// AutoCreate makes UpdateState create a missing controller on first
	// reference instead of rejecting the sample.
	AutoCreate bool

	// CreationCallback and DestructionCallback observe lifecycle events.
	CreationCallback    func(number int)
	DestructionCallback func(number int)
}

// Manager owns the controller_number to Device mapping and mediates all
// virtual device creation, updates, and teardown. All map mutations are
// serialized under one mutex so create and remove for the same number
// can never race.
type Manager struct {
	cfg     ManagerConfig
	factory Factory

	mu      sync.Mutex
	running bool
	devices map[int]Device
}

// NewManager creates a manager using the given device factory.
func NewManager(factory Factory, cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		factory: factory,
		devices: make(map[int]Device),
	}
}

// Start makes the manager accept create/update calls. No-op when running.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		log.Warn().Msg("Virtual controller manager is already running")
		return
	}
	m.running = true
	log.Info().Msg("Virtual controller manager started")
}

// Stop disconnects and removes every tracked controller, then stops
// accepting calls. No-op when stopped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	numbers := m.numbersLocked()
	m.mu.Unlock()

	for _, n := range numbers {
		m.Remove(n)
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	log.Info().Msg("Virtual controller manager stopped")
}

// Running reports whether the manager accepts calls.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Create builds and connects a virtual controller for the given number.
// Creating an existing number succeeds without side effects. Returns
// false when the manager is stopped, the number is invalid, capacity is
// reached, or the platform factory fails.
func (m *Manager) Create(number int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(number)
}

func (m *Manager) createLocked(number int) bool {
	if !m.running {
		log.Warn().Msg("Cannot create controller - manager not running")
		return false
	}

	if !m.validNumber(number) {
		log.Error().Int("number", number).Msg("Invalid controller number")
		return false
	}

	if _, exists := m.devices[number]; exists {
		log.Debug().Int("number", number).Msg("Controller already exists")
		return true
	}

	if m.cfg.MaxControllers > 0 && len(m.devices) >= m.cfg.MaxControllers {
		log.Error().Int("max", m.cfg.MaxControllers).Msg("Maximum controllers already created")
		return false
	}

	dev, err := m.factory(number)
	if err != nil {
		log.Error().Err(err).Int("number", number).Msg("Failed to create virtual controller")
		return false
	}

	if err := dev.Connect(); err != nil {
		log.Error().Err(err).Int("number", number).Msg("Failed to connect virtual controller")
		return false
	}

	m.devices[number] = dev
	log.Info().Int("number", number).Msg("Virtual controller created and connected")

	m.invoke(m.cfg.CreationCallback, number)
	return true
}

// Remove disconnects and deregisters a controller. The device resets to
// neutral as part of its disconnect. Returns false for unknown numbers.
func (m *Manager) Remove(number int) bool {
	m.mu.Lock()
	dev, ok := m.devices[number]
	if ok {
		delete(m.devices, number)
	}
	m.mu.Unlock()

	if !ok {
		log.Warn().Int("number", number).Msg("Controller does not exist")
		return false
	}

	dev.Disconnect()
	log.Info().Int("number", number).Msg("Virtual controller removed")

	m.invoke(m.cfg.DestructionCallback, number)
	return true
}

// UpdateState applies an input sample to its target controller,
// auto-creating it first when configured and capacity allows.
func (m *Manager) UpdateState(input *models.ControllerInputData) bool {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		log.Warn().Msg("Cannot update controller state - manager not running")
		return false
	}

	number := input.ControllerNumber

	if _, exists := m.devices[number]; !exists && m.cfg.AutoCreate {
		log.Info().Int("number", number).Msg("Auto-creating virtual controller")
		if !m.createLocked(number) {
			m.mu.Unlock()
			return false
		}
	}

	dev, ok := m.devices[number]
	m.mu.Unlock()

	if !ok {
		log.Warn().Int("number", number).Msg("Virtual controller not found")
		return false
	}

	if err := dev.UpdateState(input); err != nil {
		log.Warn().Err(err).Int("number", number).Msg("Controller state update rejected")
		return false
	}
	return true
}

// Reset forces one controller back to neutral. False for unknown numbers.
func (m *Manager) Reset(number int) bool {
	m.mu.Lock()
	dev, ok := m.devices[number]
	m.mu.Unlock()

	if !ok {
		log.Warn().Int("number", number).Msg("Virtual controller not found")
		return false
	}

	dev.ResetState()
	log.Debug().Int("number", number).Msg("Virtual controller reset to neutral")
	return true
}

// ResetAll forces every controller back to neutral.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	numbers := m.numbersLocked()
	m.mu.Unlock()

	for _, n := range numbers {
		m.Reset(n)
	}
}

// ActiveCount reports the number of tracked controllers.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.devices)
}

// ControllerNumbers lists tracked controller numbers in ascending order.
func (m *Manager) ControllerNumbers() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numbersLocked()
}

// IsActive reports whether a controller number is tracked.
func (m *Manager) IsActive(number int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.devices[number]
	return ok
}

// validNumber enforces the [1, 8] bound unless the manager is configured
// for unlimited controllers, where any positive number is accepted.
func (m *Manager) validNumber(number int) bool {
	if number < 1 {
		return false
	}
	if m.cfg.MaxControllers == 0 {
		return true
	}
	return number <= models.MaxControllerNumber
}

func (m *Manager) numbersLocked() []int {
	numbers := make([]int, 0, len(m.devices))
	for n := range m.devices {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func (m *Manager) invoke(cb func(int), number int) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in controller lifecycle callback")
		}
	}()
	cb(number)
}
