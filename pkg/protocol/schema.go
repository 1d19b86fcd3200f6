package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// inputPayloadSchema is the JSON Schema every controller_input payload is
// checked against on the receiving side before it reaches the virtual
// controller layer. Extra fields are allowed for forward compatibility.
const inputPayloadSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["controller_number", "controller_id", "buttons", "axes"],
	"properties": {
		"controller_number": {"type": "integer", "minimum": 1},
		"controller_id": {"type": "string", "minLength": 1},
		"input_method": {"type": "string", "enum": ["xinput", "dinput"]},
		"buttons": {"type": "object"},
		"axes": {
			"type": "object",
			"properties": {
				"left_stick_x": {"type": "number"},
				"left_stick_y": {"type": "number"},
				"right_stick_x": {"type": "number"},
				"right_stick_y": {"type": "number"},
				"left_trigger": {"type": "number"},
				"right_trigger": {"type": "number"}
			}
		},
		"timestamp": {"type": "number"}
	}
}`

var (
	inputSchemaOnce sync.Once
	inputSchema     *jsonschema.Schema
	inputSchemaErr  error
)

func compiledInputSchema() (*jsonschema.Schema, error) {
	inputSchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(inputPayloadSchema), &doc); err != nil {
			inputSchemaErr = fmt.Errorf("unmarshal input schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("controller_input.json", doc); err != nil {
			inputSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		inputSchema, inputSchemaErr = c.Compile("controller_input.json")
	})
	return inputSchema, inputSchemaErr
}

// ValidateInputPayload checks a controller_input payload against the
// payload schema. Returns nil when valid.
func ValidateInputPayload(payload map[string]any) error {
	s, err := compiledInputSchema()
	if err != nil {
		return err
	}
	// jsonschema validates plain decoded JSON values.
	return s.Validate(mapToAny(payload))
}

func mapToAny(payload map[string]any) any {
	if payload == nil {
		return map[string]any{}
	}
	return map[string]any(payload)
}
