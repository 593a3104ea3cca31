package handlers

import (
	"net/http"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/services/impediment"

	"github.com/gin-gonic/gin"
)

// CreateImpedimentRequest represents the request payload for raising an impediment
type CreateImpedimentRequest struct {
	Title         string  `json:"title" binding:"required"`
	Description   *string `json:"description"`
	Severity      int     `json:"severity"`
	SprintID      *string `json:"sprintId"`
	BacklogItemID *string `json:"backlogItemId"`
	OwnerUserID   *string `json:"ownerUserId"`
}

// UpdateImpedimentStatusRequest represents a manual status edit
type UpdateImpedimentStatusRequest struct {
	Status models.ImpedimentStatus `json:"status" binding:"required"`
}

// ListImpediments handles GET /api/projects/:projectId/impediments
// Optional query params: status, sprintId, backlogItemId.
func (h *Handler) ListImpediments(c *gin.Context) {
	list, err := h.Impediments.List(c.Request.Context(), c.Param("projectId"), impediment.Filter{
		Status:        models.ImpedimentStatus(c.Query("status")),
		SprintID:      c.Query("sprintId"),
		BacklogItemID: c.Query("backlogItemId"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  list,
		"total": len(list),
	})
}

// CreateImpediment handles POST /api/projects/:projectId/impediments.
// Any status in the body is ignored; impediments always start OPEN.
func (h *Handler) CreateImpediment(c *gin.Context) {
	var req CreateImpedimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	imp, err := h.Impediments.Create(c.Request.Context(), impediment.CreateRequest{
		ProjectID:     c.Param("projectId"),
		SprintID:      req.SprintID,
		BacklogItemID: req.BacklogItemID,
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		OwnerUserID:   req.OwnerUserID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, imp)
}

// GetImpediment handles GET /api/projects/:projectId/impediments/:id
func (h *Handler) GetImpediment(c *gin.Context) {
	imp, err := h.Impediments.Get(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

// ResolveImpediment handles POST /api/projects/:projectId/impediments/:id/resolve
func (h *Handler) ResolveImpediment(c *gin.Context) {
	imp, err := h.Impediments.Resolve(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

// UpdateImpedimentStatus handles PATCH /api/projects/:projectId/impediments/:id/status
func (h *Handler) UpdateImpedimentStatus(c *gin.Context) {
	var req UpdateImpedimentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	imp, err := h.Impediments.UpdateStatus(c.Request.Context(), c.Param("projectId"), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}
