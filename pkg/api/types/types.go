// Package types holds the request and response DTOs for the control API.
package types

import "time"

// --- Request DTOs ---

// AssignNumberRequest is the request body for POST /controllers/:id/number
type AssignNumberRequest struct {
	Number int `json:"number" binding:"required"`
}

// SetInputMethodRequest is the request body for POST /controllers/:id/input-method
type SetInputMethodRequest struct {
	InputMethod string `json:"input_method" binding:"required"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Link      string    `json:"link"`
	Timestamp time.Time `json:"timestamp"`
}

// ControllerInfo describes one detected physical controller.
type ControllerInfo struct {
	Identifier     string `json:"identifier"`
	Name           string `json:"name"`
	GUID           string `json:"guid"`
	State          string `json:"state"`
	AssignedNumber int    `json:"assigned_number,omitempty"`
	InputMethod    string `json:"input_method"`
	NumAxes        int    `json:"num_axes"`
	NumButtons     int    `json:"num_buttons"`
	NumHats        int    `json:"num_hats"`
}

// ListControllersResponse is returned from GET /controllers on the sender.
type ListControllersResponse struct {
	Controllers []ControllerInfo `json:"controllers"`
	Count       int              `json:"count"`
}

// ControllerResponse is returned after assignment changes.
type ControllerResponse struct {
	Controller ControllerInfo `json:"controller"`
}

// VirtualControllerInfo describes one virtual controller on the receiver.
type VirtualControllerInfo struct {
	Number int  `json:"number"`
	Active bool `json:"active"`
}

// ListVirtualControllersResponse is returned from GET /controllers on the receiver.
type ListVirtualControllersResponse struct {
	Controllers []VirtualControllerInfo `json:"controllers"`
	Count       int                     `json:"count"`
}

// ResetResponse is returned from the reset endpoints.
type ResetResponse struct {
	Status string `json:"status"`
	Reset  []int  `json:"reset"`
}
