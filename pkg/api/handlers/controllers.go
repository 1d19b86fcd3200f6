package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/padlink/padlink/pkg/api/types"
	"github.com/padlink/padlink/pkg/controller"
	"github.com/padlink/padlink/pkg/models"
)

// ControllerRegistry is the subset of the registry the API needs.
type ControllerRegistry interface {
	Controllers() []*controller.DetectedController
	ControllerByIdentifier(identifier string) *controller.DetectedController
	AssignNumber(ctx context.Context, identifier string, number int) bool
	UnassignController(ctx context.Context, identifier string) bool
	SetInputMethod(ctx context.Context, identifier string, method models.InputMethod) bool
}

// ControllersHandler exposes the detected physical controllers on the
// sender side.
type ControllersHandler struct {
	registry ControllerRegistry
}

// NewControllersHandler creates a new controllers handler.
func NewControllersHandler(registry ControllerRegistry) *ControllersHandler {
	return &ControllersHandler{registry: registry}
}

// ListControllers handles GET /controllers
func (h *ControllersHandler) ListControllers(c *gin.Context) {
	all := h.registry.Controllers()

	result := make([]types.ControllerInfo, 0, len(all))
	for _, ctrl := range all {
		result = append(result, controllerInfo(ctrl))
	}

	c.JSON(http.StatusOK, types.ListControllersResponse{
		Controllers: result,
		Count:       len(result),
	})
}

// AssignNumber handles POST /controllers/:id/number
func (h *ControllersHandler) AssignNumber(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req types.AssignNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "number is required",
		})
		return
	}

	ctrl := h.registry.ControllerByIdentifier(id)
	if ctrl == nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Controller not found",
		})
		return
	}

	if !h.registry.AssignNumber(ctx, id, req.Number) {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_number",
			Message: "Controller number out of range",
		})
		return
	}

	// Re-fetch: records are point-in-time copies, so the pre-assignment
	// lookup does not reflect the new number.
	if updated := h.registry.ControllerByIdentifier(id); updated != nil {
		ctrl = updated
	}

	c.JSON(http.StatusOK, types.ControllerResponse{
		Controller: controllerInfo(ctrl),
	})
}

// UnassignNumber handles DELETE /controllers/:id/number
func (h *ControllersHandler) UnassignNumber(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if !h.registry.UnassignController(ctx, id) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Controller not found",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// SetInputMethod handles POST /controllers/:id/input-method
func (h *ControllersHandler) SetInputMethod(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req types.SetInputMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "input_method is required",
		})
		return
	}

	method := models.InputMethod(req.InputMethod)
	if !method.Valid() {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_input_method",
			Message: "input_method must be xinput or dinput",
		})
		return
	}

	if !h.registry.SetInputMethod(ctx, id, method) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Controller not found",
		})
		return
	}

	ctrl := h.registry.ControllerByIdentifier(id)
	if ctrl == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, types.ControllerResponse{
		Controller: controllerInfo(ctrl),
	})
}

func controllerInfo(ctrl *controller.DetectedController) types.ControllerInfo {
	return types.ControllerInfo{
		Identifier:     ctrl.Identifier(),
		Name:           ctrl.Name,
		GUID:           ctrl.GUID,
		State:          string(ctrl.State),
		AssignedNumber: ctrl.AssignedNumber,
		InputMethod:    string(ctrl.PreferredInputMethod),
		NumAxes:        ctrl.NumAxes,
		NumButtons:     ctrl.NumButtons,
		NumHats:        ctrl.NumHats,
	}
}
