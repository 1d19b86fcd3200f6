// Package protocol defines the versionless JSON envelope exchanged
// between sender and receiver: one UTF-8 JSON object per message, typed
// by message_type, with a type-specific payload.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/models"
)

var (
	// ErrInvalidMessage indicates a message that failed structural
	// validation on decode.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownMessageType indicates a message_type this build does not
	// recognize.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// MessageType discriminates the envelope payload.
type MessageType string

const (
	TypeControllerInput      MessageType = "controller_input"
	TypeControllerConnect    MessageType = "controller_connect"
	TypeControllerDisconnect MessageType = "controller_disconnect"
	TypeStatusRequest        MessageType = "status_request"
	TypeStatusResponse       MessageType = "status_response"
	TypeError                MessageType = "error"
	TypeHeartbeat            MessageType = "heartbeat"
)

// Valid reports whether t is a recognized message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeControllerInput, TypeControllerConnect, TypeControllerDisconnect,
		TypeStatusRequest, TypeStatusResponse, TypeError, TypeHeartbeat:
		return true
	}
	return false
}

// Message is the wire envelope. Payload shape is type-specific and is
// validated where it is consumed, never trusted blindly.
type Message struct {
	MessageID   string         `json:"message_id"`
	MessageType MessageType    `json:"message_type"`
	Timestamp   float64        `json:"timestamp"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func newMessage(t MessageType, payload map[string]any) *Message {
	return &Message{
		MessageID:   uuid.NewString(),
		MessageType: t,
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
		Payload:     payload,
	}
}

// NewControllerInputMessage wraps an input sample, flattening it into the
// payload.
func NewControllerInputMessage(d *models.ControllerInputData) (*Message, error) {
	payload, err := toPayload(d)
	if err != nil {
		return nil, fmt.Errorf("encode controller input: %w", err)
	}
	return newMessage(TypeControllerInput, payload), nil
}

// NewControllerConnectMessage announces that a numbered controller became
// available on the sender.
func NewControllerConnectMessage(number int, controllerID string) *Message {
	return newMessage(TypeControllerConnect, map[string]any{
		"controller_number": number,
		"controller_id":     controllerID,
	})
}

// NewControllerDisconnectMessage announces that a numbered controller went
// away on the sender.
func NewControllerDisconnectMessage(number int, controllerID string) *Message {
	return newMessage(TypeControllerDisconnect, map[string]any{
		"controller_number": number,
		"controller_id":     controllerID,
	})
}

// NewStatusRequestMessage asks the peer for its status.
func NewStatusRequestMessage() *Message {
	return newMessage(TypeStatusRequest, nil)
}

// NewStatusResponseMessage reports server status.
func NewStatusResponseMessage(activeControllers int, connectionStatus string) *Message {
	return newMessage(TypeStatusResponse, map[string]any{
		"active_controllers": activeControllers,
		"connection_status":  connectionStatus,
		"server_time":        time.Now().UTC().Format(time.RFC3339),
	})
}

// NewErrorMessage reports a protocol-level failure to the peer.
func NewErrorMessage(code, description string) *Message {
	return newMessage(TypeError, map[string]any{
		"error_code":        code,
		"error_description": description,
	})
}

// NewHeartbeatMessage is a keepalive; servers echo it back verbatim.
func NewHeartbeatMessage() *Message {
	return newMessage(TypeHeartbeat, nil)
}

// ToJSON encodes the message as a single JSON object.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON decodes and structurally validates a message. Unknown extra
// fields are ignored for forward compatibility; missing required fields
// and type mismatches fail.
func FromJSON(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.MessageID == "" {
		return nil, fmt.Errorf("%w: missing message_id", ErrInvalidMessage)
	}
	if m.MessageType == "" {
		return nil, fmt.Errorf("%w: missing message_type", ErrInvalidMessage)
	}
	if !m.MessageType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, m.MessageType)
	}
	return &m, nil
}

// ControllerInput extracts the input sample from a controller_input
// message. Returns false, not an error, for other message types; callers
// branch on MessageType first.
func (m *Message) ControllerInput() (*models.ControllerInputData, bool) {
	if m.MessageType != TypeControllerInput {
		return nil, false
	}

	raw, err := json.Marshal(m.Payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to re-encode controller input payload")
		return nil, false
	}

	var d models.ControllerInputData
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Error().Err(err).Msg("Failed to parse controller input data")
		return nil, false
	}

	d.Axes.Clamp()
	return &d, true
}

func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
