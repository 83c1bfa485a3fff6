package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/el-gladiador/medflow-backend/internal/port"
)

// HealthHandler reports service and backend health. The client is nil
// when no inference backend is configured.
type HealthHandler struct {
	client port.VisionInference
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(client port.VisionInference) *HealthHandler {
	return &HealthHandler{client: client}
}

// Health handles GET /health. The backend probe is best-effort: an
// unreachable backend is reported, never an error.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":            "healthy",
		"backend_available": h.client != nil,
	}
	if h.client != nil {
		resp["backend_health"] = h.client.Health(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}
