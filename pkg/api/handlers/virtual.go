package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/padlink/padlink/pkg/api/types"
)

// VirtualManager is the subset of the reconciliation layer the API needs.
type VirtualManager interface {
	ControllerNumbers() []int
	IsActive(number int) bool
	Reset(number int) bool
	ResetAll()
}

// VirtualHandler exposes the virtual controllers on the receiver side.
type VirtualHandler struct {
	manager VirtualManager
}

// NewVirtualHandler creates a new virtual controllers handler.
func NewVirtualHandler(manager VirtualManager) *VirtualHandler {
	return &VirtualHandler{manager: manager}
}

// ListControllers handles GET /controllers
func (h *VirtualHandler) ListControllers(c *gin.Context) {
	numbers := h.manager.ControllerNumbers()

	result := make([]types.VirtualControllerInfo, 0, len(numbers))
	for _, n := range numbers {
		result = append(result, types.VirtualControllerInfo{
			Number: n,
			Active: true,
		})
	}

	c.JSON(http.StatusOK, types.ListVirtualControllersResponse{
		Controllers: result,
		Count:       len(result),
	})
}

// ResetController handles POST /controllers/:number/reset
func (h *VirtualHandler) ResetController(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_number",
			Message: "Controller number must be a positive integer",
		})
		return
	}

	if !h.manager.Reset(number) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Virtual controller not found",
		})
		return
	}

	c.JSON(http.StatusOK, types.ResetResponse{
		Status: "ok",
		Reset:  []int{number},
	})
}

// ResetAll handles POST /controllers/reset
func (h *VirtualHandler) ResetAll(c *gin.Context) {
	numbers := h.manager.ControllerNumbers()
	h.manager.ResetAll()

	c.JSON(http.StatusOK, types.ResetResponse{
		Status: "ok",
		Reset:  numbers,
	})
}
