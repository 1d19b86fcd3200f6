package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxControllerNumber is the highest player slot supported by default.
// Managers configured for unlimited controllers may exceed it.
const MaxControllerNumber = 8

var (
	// ErrEmptyControllerID indicates an input sample without a source identifier.
	ErrEmptyControllerID = errors.New("controller id cannot be empty")

	// ErrInvalidControllerNumber indicates a controller number outside the
	// accepted range.
	ErrInvalidControllerNumber = errors.New("invalid controller number")
)

// InputMethod identifies the driver convention a controller prefers.
type InputMethod string

const (
	InputMethodXInput InputMethod = "xinput"
	InputMethodDInput InputMethod = "dinput"
)

// Valid reports whether m is a known input method.
func (m InputMethod) Valid() bool {
	return m == InputMethodXInput || m == InputMethodDInput
}

// ButtonState holds the pressed state of every digital control on a
// standard gamepad. Buttons are strictly boolean; there are no analog
// button values.
type ButtonState struct {
	A         bool `json:"a"`
	B         bool `json:"b"`
	X         bool `json:"x"`
	Y         bool `json:"y"`
	LB        bool `json:"lb"`
	RB        bool `json:"rb"`
	Back      bool `json:"back"`
	Start     bool `json:"start"`
	LS        bool `json:"ls"` // left stick click
	RS        bool `json:"rs"` // right stick click
	DPadUp    bool `json:"dpad_up"`
	DPadDown  bool `json:"dpad_down"`
	DPadLeft  bool `json:"dpad_left"`
	DPadRight bool `json:"dpad_right"`
}

// AxisState holds the analog controls: two sticks in [-1, 1] and two
// triggers in [0, 1].
type AxisState struct {
	LeftStickX   float64 `json:"left_stick_x"`
	LeftStickY   float64 `json:"left_stick_y"`
	RightStickX  float64 `json:"right_stick_x"`
	RightStickY  float64 `json:"right_stick_y"`
	LeftTrigger  float64 `json:"left_trigger"`
	RightTrigger float64 `json:"right_trigger"`
}

// Clamp forces every axis into its valid range. Upstream backends may
// report slightly out-of-range raw values; state that leaves this package
// never does.
func (a *AxisState) Clamp() {
	a.LeftStickX = clamp(a.LeftStickX, -1, 1)
	a.LeftStickY = clamp(a.LeftStickY, -1, 1)
	a.RightStickX = clamp(a.RightStickX, -1, 1)
	a.RightStickY = clamp(a.RightStickY, -1, 1)
	a.LeftTrigger = clamp(a.LeftTrigger, 0, 1)
	a.RightTrigger = clamp(a.RightTrigger, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ControllerInputData is one input sample captured from a physical
// controller and replayed onto a virtual one.
type ControllerInputData struct {
	ControllerNumber int         `json:"controller_number"`
	ControllerID     string      `json:"controller_id"`
	InputMethod      InputMethod `json:"input_method"`
	Buttons          ButtonState `json:"buttons"`
	Axes             AxisState   `json:"axes"`
	Timestamp        float64     `json:"timestamp"` // Unix seconds
}

// NewControllerInputData builds a sample, clamping axes and stamping the
// capture time.
func NewControllerInputData(number int, id string, method InputMethod, buttons ButtonState, axes AxisState) *ControllerInputData {
	axes.Clamp()
	return &ControllerInputData{
		ControllerNumber: number,
		ControllerID:     id,
		InputMethod:      method,
		Buttons:          buttons,
		Axes:             axes,
		Timestamp:        float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// Validate checks the sample against the default [1, 8] controller number
// bound. Callers that accept unlimited numbers use ValidateUnbounded.
func (d *ControllerInputData) Validate() error {
	return d.validate(true)
}

// ValidateUnbounded checks the sample while allowing any positive
// controller number. Used when the receiving side is configured for an
// unlimited controller count.
func (d *ControllerInputData) ValidateUnbounded() error {
	return d.validate(false)
}

func (d *ControllerInputData) validate(bounded bool) error {
	if strings.TrimSpace(d.ControllerID) == "" {
		return ErrEmptyControllerID
	}
	if d.ControllerNumber < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidControllerNumber, d.ControllerNumber)
	}
	if bounded && d.ControllerNumber > MaxControllerNumber {
		return fmt.Errorf("%w: %d", ErrInvalidControllerNumber, d.ControllerNumber)
	}
	return nil
}

// CaptureTime converts the sample timestamp to a time.Time.
func (d *ControllerInputData) CaptureTime() time.Time {
	if d.Timestamp == 0 {
		return time.Now()
	}
	sec := int64(d.Timestamp)
	nsec := int64((d.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
