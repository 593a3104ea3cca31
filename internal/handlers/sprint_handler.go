package handlers

import (
	"net/http"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/services/sprint"

	"github.com/gin-gonic/gin"
)

// CreateSprintRequest represents the request payload for creating a sprint
type CreateSprintRequest struct {
	Name      string  `json:"name" binding:"required"`
	Goal      *string `json:"goal"`
	StartDate string  `json:"startDate" binding:"required"`
	EndDate   string  `json:"endDate" binding:"required"`
}

// CloseSprintRequest carries the optional retrospective notes
type CloseSprintRequest struct {
	Keep    *string `json:"keep"`
	Improve *string `json:"improve"`
	Stop    *string `json:"stop"`
}

// AddSprintItemsRequest lists the backlog items to link
type AddSprintItemsRequest struct {
	BacklogItemIDs []string `json:"backlogItemIds" binding:"required"`
}

// CarryOverRequest names the sprint that receives unfinished work
type CarryOverRequest struct {
	ToSprintID string `json:"toSprintId" binding:"required"`
}

// UpdateBoardStatusRequest represents a minimal request to move a card
type UpdateBoardStatusRequest struct {
	BoardStatus models.BoardStatus `json:"boardStatus" binding:"required"`
}

// ListSprints handles GET /api/projects/:projectId/sprints with optional ?status=
func (h *Handler) ListSprints(c *gin.Context) {
	sprints, err := h.Sprints.List(c.Request.Context(), c.Param("projectId"), models.SprintStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  sprints,
		"total": len(sprints),
	})
}

// CreateSprint handles POST /api/projects/:projectId/sprints
func (h *Handler) CreateSprint(c *gin.Context) {
	var req CreateSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	start, err := requiredDate("startDate", req.StartDate)
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := requiredDate("endDate", req.EndDate)
	if err != nil {
		writeError(c, err)
		return
	}

	sp, err := h.Sprints.Create(c.Request.Context(), sprint.CreateRequest{
		ProjectID:       c.Param("projectId"),
		Name:            req.Name,
		Goal:            req.Goal,
		StartDate:       start,
		EndDate:         end,
		CreatedByUserID: c.GetString("user_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

// GetSprint handles GET /api/projects/:projectId/sprints/:id
func (h *Handler) GetSprint(c *gin.Context) {
	sp, err := h.Sprints.Get(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// StartSprint handles POST /api/projects/:projectId/sprints/:id/start
func (h *Handler) StartSprint(c *gin.Context) {
	sp, err := h.Sprints.Start(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// CloseSprint handles POST /api/projects/:projectId/sprints/:id/close. The body is optional.
func (h *Handler) CloseSprint(c *gin.Context) {
	var req CloseSprintRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}
	sp, err := h.Sprints.Close(c.Request.Context(), c.Param("projectId"), c.Param("id"), sprint.Retrospective{
		Keep:    req.Keep,
		Improve: req.Improve,
		Stop:    req.Stop,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// AddSprintItems handles POST /api/projects/:projectId/sprints/:id/items
func (h *Handler) AddSprintItems(c *gin.Context) {
	var req AddSprintItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	res, err := h.Sprints.AddItems(c.Request.Context(), c.Param("projectId"), c.Param("id"), req.BacklogItemIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RemoveSprintItem handles DELETE /api/projects/:projectId/sprints/:id/items/:itemId
func (h *Handler) RemoveSprintItem(c *gin.Context) {
	if err := h.Sprints.RemoveItem(c.Request.Context(), c.Param("projectId"), c.Param("id"), c.Param("itemId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Backlog item removed from sprint",
	})
}

// CarryOver handles POST /api/projects/:projectId/sprints/:id/carry-over
func (h *Handler) CarryOver(c *gin.Context) {
	var req CarryOverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	res, err := h.Sprints.CarryOver(c.Request.Context(), c.Param("projectId"), c.Param("id"), req.ToSprintID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetBoard handles GET /api/projects/:projectId/sprints/:id/board
func (h *Handler) GetBoard(c *gin.Context) {
	view, err := h.Board.View(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateBoardStatus handles PATCH /api/projects/:projectId/sprints/:id/items/:itemId/status
func (h *Handler) UpdateBoardStatus(c *gin.Context) {
	var req UpdateBoardStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	row, err := h.Board.SetItemStatus(c.Request.Context(), c.Param("projectId"), c.Param("id"), c.Param("itemId"), req.BoardStatus)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
