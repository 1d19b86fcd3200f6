// Package controller tracks physical game controllers across repeated
// device scans, preserving assigned player numbers for the life of each
// OS-level attachment.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/joystick"
	"github.com/padlink/padlink/pkg/models"
)

// ConnectionState is the lifecycle state of a detected controller.
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateError        ConnectionState = "error"
)

// DetectedController is one physical device snapshot. The registry owns
// the live records and mutates them in place across scans; every accessor
// returns a point-in-time copy, so holders never race a concurrent scan
// and see a consistent, if possibly stale, record.
type DetectedController struct {
	Index                int   // enumeration index, reused by the OS
	InstanceID           int32 // stable within one attachment
	GUID                 string
	Name                 string
	NumAxes              int
	NumButtons           int
	NumHats              int
	State                ConnectionState
	AssignedNumber       int // 0 means unassigned
	PreferredInputMethod models.InputMethod

	device joystick.Device
}

// Identifier uniquely names this controller for the life of one OS-level
// attachment: hardware GUID plus session instance id.
func (c *DetectedController) Identifier() string {
	return fmt.Sprintf("%s_%d", c.GUID, c.InstanceID)
}

// Device returns the open backend handle for reading input.
func (c *DetectedController) Device() joystick.Device {
	return c.device
}

// snapshot returns a value copy safe to read without the registry lock.
func (c *DetectedController) snapshot() *DetectedController {
	cp := *c
	return &cp
}

var xboxKeywords = []string{"xbox", "x360", "xinput", "360 controller", "x-box"}

var playstationKeywords = []string{"playstation", "ps3", "ps4", "ps5", "dualshock", "dualsense"}

// IsXboxController reports whether the device name looks like an
// Xbox-family controller.
func (c *DetectedController) IsXboxController() bool {
	return containsAny(c.Name, xboxKeywords)
}

// IsPlayStationController reports whether the device name looks like a
// PlayStation-family controller.
func (c *DetectedController) IsPlayStationController() bool {
	return containsAny(c.Name, playstationKeywords)
}

// RecommendedInputMethod picks xinput for Xbox-family controllers and
// dinput for everything else.
func (c *DetectedController) RecommendedInputMethod() models.InputMethod {
	if c.IsXboxController() {
		return models.InputMethodXInput
	}
	return models.InputMethodDInput
}

func containsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// AssignmentStore persists controller number assignments across runs.
// Implemented by pkg/db.
type AssignmentStore interface {
	SaveAssignment(ctx context.Context, identifier string, number int, method string) error
	DeleteAssignment(ctx context.Context, identifier string) error
	LoadAssignments(ctx context.Context) (map[string]int, error)
}

// Registry detects physical controllers and tracks connect/disconnect
// transitions across repeated scans.
type Registry struct {
	mu sync.Mutex

	backend     joystick.Backend
	store       AssignmentStore
	autoAssign  bool
	initialized bool

	controllers map[int]*DetectedController // keyed by enumeration index
	assigned    map[int]bool                // numbers in use
	saved       map[string]int              // persisted identifier -> number
}

// Option configures a Registry.
type Option func(*Registry)

// WithAutoAssign controls automatic number assignment for newly seen
// controllers. Enabled by default.
func WithAutoAssign(enabled bool) Option {
	return func(r *Registry) { r.autoAssign = enabled }
}

// WithStore persists assignments so numbers survive restarts.
func WithStore(store AssignmentStore) Option {
	return func(r *Registry) { r.store = store }
}

// NewRegistry creates a registry over the given backend.
func NewRegistry(backend joystick.Backend, opts ...Option) *Registry {
	r := &Registry{
		backend:     backend,
		autoAssign:  true,
		controllers: make(map[int]*DetectedController),
		assigned:    make(map[int]bool),
		saved:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize starts the device backend and loads any persisted
// assignments. Idempotent.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	if err := r.backend.Init(); err != nil {
		return fmt.Errorf("initialize joystick backend: %w", err)
	}

	if r.store != nil {
		saved, err := r.store.LoadAssignments(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Could not load saved controller assignments")
		} else {
			r.saved = saved
		}
	}

	r.initialized = true
	log.Info().Msg("Controller registry initialized")
	return nil
}

// Scan re-enumerates all visible devices. Previously seen identifiers keep
// their assigned numbers; devices no longer visible are marked disconnected
// in place. Returns every known record, disconnected ones included.
func (r *Registry) Scan(ctx context.Context) []*DetectedController {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backend.Pump()

	seen := make(map[int]bool)
	count := r.backend.NumDevices()
	log.Debug().Int("count", count).Msg("Scanning for controllers")

	for i := 0; i < count; i++ {
		dev, err := r.backend.Open(i)
		if err != nil {
			log.Error().Err(err).Int("index", i).Msg("Failed to open controller")
			continue
		}

		seen[i] = true

		existing, ok := r.controllers[i]
		if ok && existing.InstanceID == dev.InstanceID() {
			// Same attachment at the same index: refresh state only.
			existing.State = StateConnected
			existing.device = dev
			continue
		}

		c := &DetectedController{
			Index:      i,
			InstanceID: dev.InstanceID(),
			GUID:       dev.GUID(),
			Name:       dev.Name(),
			NumAxes:    dev.NumAxes(),
			NumButtons: dev.NumButtons(),
			NumHats:    dev.NumHats(),
			State:      StateConnected,
			device:     dev,
		}
		c.PreferredInputMethod = c.RecommendedInputMethod()

		// The OS reuses enumeration indices; match on identifier to carry
		// the number over from a previous index.
		if prev := r.findByIdentifierLocked(c.Identifier()); prev != nil {
			c.AssignedNumber = prev.AssignedNumber
			c.PreferredInputMethod = prev.PreferredInputMethod
		} else if saved, ok := r.saved[c.Identifier()]; ok && !r.assigned[saved] {
			c.AssignedNumber = saved
			r.assigned[saved] = true
		} else if r.autoAssign {
			if n := r.nextAvailableLocked(); n > 0 {
				c.AssignedNumber = n
				r.assigned[n] = true
				r.persistLocked(ctx, c)
			}
		}

		r.controllers[i] = c

		log.Info().
			Str("name", c.Name).
			Str("id", c.Identifier()).
			Int("number", c.AssignedNumber).
			Msg("Detected controller")
	}

	// Devices known from earlier scans but absent now flip to disconnected.
	for idx, c := range r.controllers {
		if !seen[idx] && c.State == StateConnected {
			c.State = StateDisconnected
			log.Info().Str("name", c.Name).Msg("Controller disconnected")
		}
	}

	return r.allLocked()
}

// ConnectedControllers filters the last scan's results down to connected
// devices. Does not re-scan.
func (r *Registry) ConnectedControllers() []*DetectedController {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*DetectedController
	for _, c := range r.allLocked() {
		if c.State == StateConnected {
			out = append(out, c)
		}
	}
	return out
}

// Controllers returns every known record, disconnected ones included.
func (r *Registry) Controllers() []*DetectedController {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allLocked()
}

// ControllerByIdentifier finds a record by its guid_instance identifier.
func (r *Registry) ControllerByIdentifier(identifier string) *DetectedController {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findByIdentifierLocked(identifier)
	if c == nil {
		return nil
	}
	return c.snapshot()
}

// AssignNumber gives the controller the requested player number, stealing
// it from any current holder. Returns false when the number is outside
// [1, 8] or the identifier is unknown.
func (r *Registry) AssignNumber(ctx context.Context, identifier string, number int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if number < 1 || number > models.MaxControllerNumber {
		log.Error().Int("number", number).Msg("Invalid controller number")
		return false
	}

	c := r.findByIdentifierLocked(identifier)
	if c == nil {
		// Identifier embeds a session instance id; fall back to matching
		// the hardware GUID so assignments survive replugs.
		if guid, _, ok := strings.Cut(identifier, "_"); ok && guid != "" {
			c = r.findByGUIDLocked(guid)
		}
	}
	if c == nil {
		log.Error().Str("id", identifier).Msg("Controller not found")
		return false
	}

	if r.assigned[number] {
		for _, other := range r.controllers {
			if other.AssignedNumber == number && other != c {
				other.AssignedNumber = 0
				r.persistLocked(ctx, other)
				log.Info().Str("name", other.Name).Int("number", number).Msg("Number reassigned away")
				break
			}
		}
	}

	if c.AssignedNumber != 0 {
		delete(r.assigned, c.AssignedNumber)
	}

	c.AssignedNumber = number
	r.assigned[number] = true
	r.persistLocked(ctx, c)

	log.Info().Str("name", c.Name).Int("number", number).Msg("Assigned controller number")
	return true
}

// UnassignController clears the controller's number. Returns false when
// the identifier is unknown.
func (r *Registry) UnassignController(ctx context.Context, identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findByIdentifierLocked(identifier)
	if c == nil {
		log.Error().Str("id", identifier).Msg("Controller not found for unassign")
		return false
	}

	if c.AssignedNumber != 0 {
		delete(r.assigned, c.AssignedNumber)
		c.AssignedNumber = 0
		if r.store != nil {
			if err := r.store.DeleteAssignment(ctx, c.Identifier()); err != nil {
				log.Warn().Err(err).Msg("Could not delete saved assignment")
			}
		}
		log.Info().Str("name", c.Name).Msg("Controller number cleared")
	}
	return true
}

// SetInputMethod sets the preferred input method for a controller.
func (r *Registry) SetInputMethod(ctx context.Context, identifier string, method models.InputMethod) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !method.Valid() {
		log.Error().Str("method", string(method)).Msg("Invalid input method")
		return false
	}

	c := r.findByIdentifierLocked(identifier)
	if c == nil {
		log.Error().Str("id", identifier).Msg("Controller not found")
		return false
	}

	c.PreferredInputMethod = method
	r.persistLocked(ctx, c)
	log.Info().Str("name", c.Name).Str("method", string(method)).Msg("Set input method")
	return true
}

// Pump drains the backend event queue so hot-plug changes are visible.
func (r *Registry) Pump() {
	r.backend.Pump()
}

// Cleanup tears down the backend. Idempotent.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return
	}

	r.backend.Close()
	r.initialized = false
	log.Info().Msg("Controller registry cleaned up")
}

// allLocked copies every record so callers read without the lock.
func (r *Registry) allLocked() []*DetectedController {
	out := make([]*DetectedController, 0, len(r.controllers))
	for _, c := range r.controllers {
		out = append(out, c.snapshot())
	}
	return out
}

func (r *Registry) findByIdentifierLocked(identifier string) *DetectedController {
	for _, c := range r.controllers {
		if c.Identifier() == identifier {
			return c
		}
	}
	return nil
}

func (r *Registry) findByGUIDLocked(guid string) *DetectedController {
	var fallback *DetectedController
	for _, c := range r.controllers {
		if c.GUID != guid {
			continue
		}
		if c.AssignedNumber == 0 {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}

// nextAvailableLocked returns the lowest unused number in [1, 8], or 0
// when all slots are taken.
func (r *Registry) nextAvailableLocked() int {
	for n := 1; n <= models.MaxControllerNumber; n++ {
		if !r.assigned[n] {
			return n
		}
	}
	return 0
}

func (r *Registry) persistLocked(ctx context.Context, c *DetectedController) {
	if r.store == nil {
		return
	}
	var err error
	if c.AssignedNumber == 0 {
		err = r.store.DeleteAssignment(ctx, c.Identifier())
	} else {
		err = r.store.SaveAssignment(ctx, c.Identifier(), c.AssignedNumber, string(c.PreferredInputMethod))
	}
	if err != nil {
		log.Warn().Err(err).Str("id", c.Identifier()).Msg("Could not persist assignment")
	}
}
