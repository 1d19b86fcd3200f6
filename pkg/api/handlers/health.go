package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/padlink/padlink/pkg/api/types"
)

// HealthHandler handles health check endpoints. The probe reports
// whether the process's network link (uplink on the sender, listener
// on the receiver) is up.
type HealthHandler struct {
	probe func() bool
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(probe func() bool) *HealthHandler {
	return &HealthHandler{probe: probe}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	link := "down"
	if h.probe != nil && h.probe() {
		link = "up"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if link != "up" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:    status,
		Link:      link,
		Timestamp: time.Now(),
	})
}
