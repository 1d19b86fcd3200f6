package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padlink/padlink/pkg/models"
)

func sampleInput() *models.ControllerInputData {
	return models.NewControllerInputData(2, "guid-a_0", models.InputMethodXInput,
		models.ButtonState{A: true, DPadLeft: true},
		models.AxisState{LeftStickX: 0.5, RightTrigger: 1.0},
	)
}

func TestControllerInputMessage_RoundTrip(t *testing.T) {
	msg, err := NewControllerInputMessage(sampleInput())
	require.NoError(t, err)
	require.Equal(t, TypeControllerInput, msg.MessageType)
	require.NotEmpty(t, msg.MessageID)

	data, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageID, decoded.MessageID)

	d, ok := decoded.ControllerInput()
	require.True(t, ok)
	assert.Equal(t, 2, d.ControllerNumber)
	assert.Equal(t, "guid-a_0", d.ControllerID)
	assert.Equal(t, models.InputMethodXInput, d.InputMethod)
	assert.True(t, d.Buttons.A)
	assert.True(t, d.Buttons.DPadLeft)
	assert.Equal(t, 0.5, d.Axes.LeftStickX)
	assert.Equal(t, 1.0, d.Axes.RightTrigger)
}

func TestControllerInput_ClampsWireValues(t *testing.T) {
	msg, err := NewControllerInputMessage(sampleInput())
	require.NoError(t, err)

	// A misbehaving peer can put anything in the payload.
	msg.Payload["axes"].(map[string]any)["left_stick_x"] = 5.0

	d, ok := msg.ControllerInput()
	require.True(t, ok)
	assert.Equal(t, 1.0, d.Axes.LeftStickX)
}

func TestControllerInput_WrongTypeReturnsFalse(t *testing.T) {
	msg := NewHeartbeatMessage()

	d, ok := msg.ControllerInput()
	assert.False(t, ok)
	assert.Nil(t, d)
}

func TestFromJSON_RejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{{{`, ErrInvalidMessage},
		{"missing id", `{"message_type": "heartbeat", "timestamp": 1}`, ErrInvalidMessage},
		{"missing type", `{"message_id": "abc", "timestamp": 1}`, ErrInvalidMessage},
		{"unknown type", `{"message_id": "abc", "message_type": "bogus"}`, ErrUnknownMessageType},
		{"wrong field type", `{"message_id": 5, "message_type": "heartbeat"}`, ErrInvalidMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tc.data))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFromJSON_IgnoresUnknownFields(t *testing.T) {
	data := `{"message_id": "abc", "message_type": "heartbeat", "timestamp": 1, "future_field": true}`

	msg, err := FromJSON([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, msg.MessageType)
}

func TestStatusResponseMessage_Payload(t *testing.T) {
	msg := NewStatusResponseMessage(3, "connected")

	assert.Equal(t, TypeStatusResponse, msg.MessageType)
	assert.Equal(t, 3, msg.Payload["active_controllers"])
	assert.Equal(t, "connected", msg.Payload["connection_status"])
	assert.NotEmpty(t, msg.Payload["server_time"])
}

func TestErrorMessage_Payload(t *testing.T) {
	msg := NewErrorMessage("INVALID_MESSAGE", "could not parse message")

	assert.Equal(t, TypeError, msg.MessageType)
	assert.Equal(t, "INVALID_MESSAGE", msg.Payload["error_code"])
	assert.Equal(t, "could not parse message", msg.Payload["error_description"])
}

func TestConnectDisconnectMessages(t *testing.T) {
	c := NewControllerConnectMessage(1, "guid-a_0")
	assert.Equal(t, TypeControllerConnect, c.MessageType)
	assert.Equal(t, 1, c.Payload["controller_number"])

	d := NewControllerDisconnectMessage(1, "guid-a_0")
	assert.Equal(t, TypeControllerDisconnect, d.MessageType)
	assert.Equal(t, "guid-a_0", d.Payload["controller_id"])
}

func TestMessageIDs_AreUnique(t *testing.T) {
	a := NewHeartbeatMessage()
	b := NewHeartbeatMessage()
	assert.NotEqual(t, a.MessageID, b.MessageID)
}
