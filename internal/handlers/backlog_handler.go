package handlers

import (
	"net/http"
	"strconv"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/services/backlog"

	"github.com/gin-gonic/gin"
)

// CreateBacklogItemRequest represents the request payload for creating a backlog item
type CreateBacklogItemRequest struct {
	Title          string            `json:"title" binding:"required"`
	Description    *string           `json:"description"`
	Type           models.ItemType   `json:"type"`
	Status         models.ItemStatus `json:"status"`
	Priority       int               `json:"priority"`
	StoryPoints    *int              `json:"storyPoints"`
	EstimatedHours *float64          `json:"estimatedHours"`
	DueDate        *string           `json:"dueDate"`
	IsUrgent       *bool             `json:"isUrgent"`
	IsImportant    *bool             `json:"isImportant"`
	AssigneeUserID *string           `json:"assigneeUserId"`
	ContractorID   *string           `json:"contractorId"`
	ParentID       *string           `json:"parentId"`
}

// UpdateBacklogItemRequest represents a partial update; an empty parentId detaches the item
type UpdateBacklogItemRequest struct {
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Type           *models.ItemType   `json:"type"`
	Status         *models.ItemStatus `json:"status"`
	Priority       *int               `json:"priority"`
	StoryPoints    *int               `json:"storyPoints"`
	EstimatedHours *float64           `json:"estimatedHours"`
	DueDate        *string            `json:"dueDate"`
	AssigneeUserID *string            `json:"assigneeUserId"`
	ContractorID   *string            `json:"contractorId"`
	ParentID       *string            `json:"parentId"`
}

// ClassifyRequest sets both Eisenhower flags at once
type ClassifyRequest struct {
	IsUrgent    *bool `json:"isUrgent" binding:"required"`
	IsImportant *bool `json:"isImportant" binding:"required"`
}

/*
ListBacklog handles GET /api/projects/:projectId/backlog
Optional query params: status, type, parentId, assigneeUserId.
Unconverted schedule activities are appended as virtual items unless a filter
is set or includeVirtual=false. With q set, it returns a fuzzy title search instead.
*/
func (h *Handler) ListBacklog(c *gin.Context) {
	projectID := c.Param("projectId")
	if q := c.Query("q"); q != "" {
		limit, _ := strconv.Atoi(c.Query("limit"))
		items, err := h.Backlog.Search(c.Request.Context(), projectID, q, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":  items,
			"total": len(items),
		})
		return
	}
	filter := backlog.Filter{
		Status:         models.ItemStatus(c.Query("status")),
		Type:           models.ItemType(c.Query("type")),
		ParentID:       c.Query("parentId"),
		AssigneeUserID: c.Query("assigneeUserId"),
	}

	includeVirtual := true
	if raw := c.Query("includeVirtual"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeBindError(c, err)
			return
		}
		includeVirtual = v
	}

	var entries []models.BacklogEntry
	if includeVirtual {
		var err error
		entries, err = h.Bridge.ListBacklogWithVirtualItems(c.Request.Context(), projectID, filter)
		if err != nil {
			writeError(c, err)
			return
		}
	} else {
		items, err := h.Backlog.List(c.Request.Context(), projectID, filter)
		if err != nil {
			writeError(c, err)
			return
		}
		entries = make([]models.BacklogEntry, 0, len(items))
		for i := range items {
			entries = append(entries, models.PersistedEntry(&items[i]))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  entries,
		"total": len(entries),
	})
}

// CreateBacklogItem handles POST /api/projects/:projectId/backlog
func (h *Handler) CreateBacklogItem(c *gin.Context) {
	var req CreateBacklogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	due, err := optionalDate("dueDate", req.DueDate)
	if err != nil {
		writeError(c, err)
		return
	}

	item, err := h.Backlog.Create(c.Request.Context(), backlog.CreateRequest{
		ProjectID:      c.Param("projectId"),
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Status:         req.Status,
		Priority:       req.Priority,
		StoryPoints:    req.StoryPoints,
		EstimatedHours: req.EstimatedHours,
		DueDate:        due,
		IsUrgent:       req.IsUrgent,
		IsImportant:    req.IsImportant,
		AssigneeUserID: req.AssigneeUserID,
		ContractorID:   req.ContractorID,
		ParentID:       req.ParentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetBacklogItem handles GET /api/projects/:projectId/backlog/:id
func (h *Handler) GetBacklogItem(c *gin.Context) {
	item, err := h.Backlog.Get(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateBacklogItem handles PUT /api/projects/:projectId/backlog/:id
func (h *Handler) UpdateBacklogItem(c *gin.Context) {
	var req UpdateBacklogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	due, err := optionalDate("dueDate", req.DueDate)
	if err != nil {
		writeError(c, err)
		return
	}

	item, err := h.Backlog.Update(c.Request.Context(), c.Param("projectId"), c.Param("id"), backlog.UpdateRequest{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Status:         req.Status,
		Priority:       req.Priority,
		StoryPoints:    req.StoryPoints,
		EstimatedHours: req.EstimatedHours,
		DueDate:        due,
		AssigneeUserID: req.AssigneeUserID,
		ContractorID:   req.ContractorID,
		ParentID:       req.ParentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteBacklogItem handles DELETE /api/projects/:projectId/backlog/:id
func (h *Handler) DeleteBacklogItem(c *gin.Context) {
	if err := h.Backlog.Delete(c.Request.Context(), c.Param("projectId"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Backlog item deleted successfully",
	})
}

// ListChildren handles GET /api/projects/:projectId/backlog/:id/children
func (h *Handler) ListChildren(c *gin.Context) {
	items, err := h.Backlog.Children(c.Request.Context(), c.Param("projectId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"total": len(items),
	})
}

// ConvertActivity handles POST /api/projects/:projectId/backlog/convert/:activityId.
// 201 when this call created the item, 200 when it already existed.
func (h *Handler) ConvertActivity(c *gin.Context) {
	item, created, err := h.Bridge.Convert(c.Request.Context(), c.Param("projectId"), c.Param("activityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, item)
}

// ClassifyBacklogItem handles PUT /api/projects/:projectId/backlog/:id/classify
func (h *Handler) ClassifyBacklogItem(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	item, err := h.Eisenhower.Classify(c.Request.Context(), c.Param("projectId"), c.Param("id"), *req.IsUrgent, *req.IsImportant)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":     item,
		"quadrant": item.Quadrant(),
	})
}

// GetEisenhowerMatrix handles GET /api/projects/:projectId/eisenhower
func (h *Handler) GetEisenhowerMatrix(c *gin.Context) {
	m, err := h.Eisenhower.Matrix(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
