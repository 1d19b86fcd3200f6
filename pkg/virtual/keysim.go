package virtual

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/models"
)

// stickThreshold is how far a stick must deflect before its direction
// key is considered pressed.
const stickThreshold = 0.5

// KeyInjector emits synthetic key events into the OS. The concrete
// implementation is platform-specific and supplied by the host
// application.
type KeyInjector interface {
	Press(key string) error
	Release(key string) error
}

// keysimButtonMap maps gamepad buttons onto keys, matching common game
// key bindings.
var keysimButtonMap = map[string]string{
	"a":          "z",
	"b":          "x",
	"x":          "c",
	"y":          "v",
	"lb":         "q",
	"rb":         "e",
	"back":       "tab",
	"start":      "return",
	"ls":         "f",
	"rs":         "g",
	"dpad_up":    "up",
	"dpad_down":  "down",
	"dpad_left":  "left",
	"dpad_right": "right",
}

// Stick directions map onto WASD (left) and IJKL (right).
var keysimStickMap = map[string]string{
	"left_up":     "w",
	"left_down":   "s",
	"left_left":   "a",
	"left_right":  "d",
	"right_up":    "i",
	"right_down":  "k",
	"right_left":  "j",
	"right_right": "l",
}

// KeySim drives a KeyInjector instead of a gamepad driver: buttons and
// stick directions become key press/release pairs. It tracks held keys
// so only transitions reach the injector and nothing stays latched after
// a reset.
type KeySim struct {
	number   int
	injector KeyInjector

	mu        sync.Mutex
	connected bool
	held      map[string]bool
}

// NewKeySim creates a keyboard-simulation device for the given controller
// number.
func NewKeySim(number int, injector KeyInjector) *KeySim {
	return &KeySim{
		number:   number,
		injector: injector,
		held:     make(map[string]bool),
	}
}

// KeySimFactory returns a Factory producing KeySim devices bound to the
// given injector, for registration in the driver table.
func KeySimFactory(injector KeyInjector) Factory {
	return func(number int) (Device, error) {
		if injector == nil {
			return nil, fmt.Errorf("keysim driver: nil key injector")
		}
		return NewKeySim(number, injector), nil
	}
}

func (k *KeySim) Connect() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.connected {
		log.Warn().Int("number", k.number).Msg("Virtual controller is already connected")
		return nil
	}
	if k.injector == nil {
		return fmt.Errorf("keysim controller %d: nil key injector", k.number)
	}

	k.connected = true
	log.Info().Int("number", k.number).Msg("Keyboard-simulation virtual controller connected")
	return nil
}

func (k *KeySim) Disconnect() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.connected {
		return
	}

	k.resetLocked()
	k.connected = false
	log.Info().Int("number", k.number).Msg("Keyboard-simulation virtual controller disconnected")
}

func (k *KeySim) UpdateState(input *models.ControllerInputData) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.connected {
		return ErrNotConnected
	}

	desired := desiredKeys(input)

	// Release first so opposing directions never overlap.
	for key := range k.held {
		if !desired[key] {
			k.release(key)
		}
	}
	for key := range desired {
		if !k.held[key] {
			k.press(key)
		}
	}

	return nil
}

func (k *KeySim) ResetState() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.resetLocked()
}

// HeldKeys returns the currently held keys, sorted order not guaranteed.
func (k *KeySim) HeldKeys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	keys := make([]string, 0, len(k.held))
	for key := range k.held {
		keys = append(keys, key)
	}
	return keys
}

func (k *KeySim) resetLocked() {
	for key := range k.held {
		k.release(key)
	}
}

func (k *KeySim) press(key string) {
	if err := k.injector.Press(key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Key press failed")
		return
	}
	k.held[key] = true
}

func (k *KeySim) release(key string) {
	if err := k.injector.Release(key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Key release failed")
		// Drop tracking anyway; retrying a stuck release forever is worse.
	}
	delete(k.held, key)
}

// desiredKeys computes the full key set a sample implies.
func desiredKeys(input *models.ControllerInputData) map[string]bool {
	desired := make(map[string]bool)

	b := input.Buttons
	pressed := map[string]bool{
		"a": b.A, "b": b.B, "x": b.X, "y": b.Y,
		"lb": b.LB, "rb": b.RB, "back": b.Back, "start": b.Start,
		"ls": b.LS, "rs": b.RS,
		"dpad_up": b.DPadUp, "dpad_down": b.DPadDown,
		"dpad_left": b.DPadLeft, "dpad_right": b.DPadRight,
	}
	for name, on := range pressed {
		if on {
			desired[keysimButtonMap[name]] = true
		}
	}

	a := input.Axes
	stickDirections(desired, "left", a.LeftStickX, a.LeftStickY)
	stickDirections(desired, "right", a.RightStickX, a.RightStickY)

	return desired
}

func stickDirections(desired map[string]bool, stick string, x, y float64) {
	if x <= -stickThreshold {
		desired[keysimStickMap[stick+"_left"]] = true
	}
	if x >= stickThreshold {
		desired[keysimStickMap[stick+"_right"]] = true
	}
	if y >= stickThreshold {
		desired[keysimStickMap[stick+"_up"]] = true
	}
	if y <= -stickThreshold {
		desired[keysimStickMap[stick+"_down"]] = true
	}
}
