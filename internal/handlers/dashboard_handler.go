package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboard handles GET /api/projects/:projectId/dashboard
func (h *Handler) GetDashboard(c *gin.Context) {
	d, err := h.Metrics.Dashboard(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
