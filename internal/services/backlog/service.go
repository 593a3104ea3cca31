package backlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agile-tracker-api/internal/apperr"
	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/realtime"

	"gorm.io/gorm"
)

// Service defines the backlog item store operations
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*models.BacklogItem, error)
	Get(ctx context.Context, projectID, id string) (*models.BacklogItem, error)
	Update(ctx context.Context, projectID, id string, req UpdateRequest) (*models.BacklogItem, error)
	Delete(ctx context.Context, projectID, id string) error
	List(ctx context.Context, projectID string, filter Filter) ([]models.BacklogItem, error)
	Children(ctx context.Context, projectID, id string) ([]models.BacklogItem, error)
	Search(ctx context.Context, projectID, query string, limit int) ([]models.BacklogItem, error)
}

// CreateRequest encapsulates all data needed to create a backlog item.
// Zero values fall back to TASK / BACKLOG / priority 3.
type CreateRequest struct {
	ProjectID      string
	Title          string
	Description    *string
	Type           models.ItemType
	Status         models.ItemStatus
	Priority       int
	StoryPoints    *int
	EstimatedHours *float64
	DueDate        *time.Time
	IsUrgent       *bool
	IsImportant    *bool
	AssigneeUserID *string
	ContractorID   *string
	ParentID       *string
}

// UpdateRequest is a partial update; nil means don't change.
type UpdateRequest struct {
	Title          *string
	Description    *string
	Type           *models.ItemType
	Status         *models.ItemStatus
	Priority       *int
	StoryPoints    *int
	EstimatedHours *float64
	DueDate        *time.Time
	AssigneeUserID *string
	ContractorID   *string
	ParentID       *string
	ClearParent    bool
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Status         models.ItemStatus
	Type           models.ItemType
	ParentID       string
	AssigneeUserID string
}

// IsEmpty reports whether no criteria are set.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// DefaultOrder is priority descending, then creation order.
const DefaultOrder = "priority DESC, created_at ASC, id ASC"

type service struct {
	db     *gorm.DB
	events realtime.Publisher
}

// NewService creates a new backlog service
func NewService(db *gorm.DB, events realtime.Publisher) Service {
	return &service{db: db, events: events}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*models.BacklogItem, error) {
	item, err := buildItem(req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if item.ParentID != nil {
			if err := checkParent(tx, item.ProjectID, "", *item.ParentID); err != nil {
				return err
			}
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create backlog item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	realtime.Publish(s.events, realtime.BacklogItemCreated, item.ProjectID, item.ID, item)
	return item, nil
}

func buildItem(req CreateRequest) (*models.BacklogItem, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, ErrMissingProjectID
	}
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}

	item := &models.BacklogItem{
		ProjectID:      req.ProjectID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Type:           req.Type,
		Status:         req.Status,
		Priority:       req.Priority,
		StoryPoints:    req.StoryPoints,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
		AssigneeUserID: req.AssigneeUserID,
		ContractorID:   req.ContractorID,
		ParentID:       nonEmpty(req.ParentID),
	}
	if item.Type == "" {
		item.Type = models.TypeTask
	}
	if item.Status == "" {
		item.Status = models.ItemBacklog
	}
	if item.Priority == 0 {
		item.Priority = models.DefaultPriority
	}
	if req.IsUrgent != nil || req.IsImportant != nil {
		item.IsClassified = true
		item.IsUrgent = req.IsUrgent != nil && *req.IsUrgent
		item.IsImportant = req.IsImportant != nil && *req.IsImportant
	}

	if err := validateAttributes(item); err != nil {
		return nil, err
	}
	return item, nil
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > 255 {
		return ErrTitleTooLong
	}
	return nil
}

func validateAttributes(item *models.BacklogItem) error {
	if !item.Type.Valid() {
		return ErrInvalidType
	}
	if !item.Status.Valid() {
		return ErrInvalidStatus
	}
	if item.Priority < models.MinPriority || item.Priority > models.MaxPriority {
		return ErrInvalidPriority
	}
	if item.StoryPoints != nil && *item.StoryPoints < 0 {
		return ErrNegativePoints
	}
	if item.EstimatedHours != nil && *item.EstimatedHours < 0 {
		return ErrNegativeHours
	}
	return nil
}

func (s *service) Get(ctx context.Context, projectID, id string) (*models.BacklogItem, error) {
	return Find(s.db.WithContext(ctx), projectID, id)
}

// Find loads a persisted item scoped to its project.
func Find(db *gorm.DB, projectID, id string) (*models.BacklogItem, error) {
	var item models.BacklogItem
	err := db.Where("id = ? AND project_id = ?", id, projectID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch backlog item: %w", err)
	}
	return &item, nil
}

func (s *service) Update(ctx context.Context, projectID, id string, req UpdateRequest) (*models.BacklogItem, error) {
	var item *models.BacklogItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = Find(tx, projectID, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			if err := validateTitle(*req.Title); err != nil {
				return err
			}
			item.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			item.Description = req.Description
		}
		if req.Type != nil {
			item.Type = *req.Type
		}
		if req.Status != nil {
			item.Status = *req.Status
		}
		if req.Priority != nil {
			item.Priority = *req.Priority
		}
		if req.StoryPoints != nil {
			item.StoryPoints = req.StoryPoints
		}
		if req.EstimatedHours != nil {
			item.EstimatedHours = req.EstimatedHours
		}
		if req.DueDate != nil {
			item.DueDate = req.DueDate
		}
		if req.AssigneeUserID != nil {
			item.AssigneeUserID = nonEmpty(req.AssigneeUserID)
		}
		if req.ContractorID != nil {
			item.ContractorID = nonEmpty(req.ContractorID)
		}
		if err := validateAttributes(item); err != nil {
			return err
		}

		switch {
		case req.ClearParent, req.ParentID != nil && nonEmpty(req.ParentID) == nil:
			item.ParentID = nil
		case nonEmpty(req.ParentID) != nil:
			if err := checkParent(tx, projectID, item.ID, *req.ParentID); err != nil {
				return err
			}
			item.ParentID = req.ParentID
		}

		if err := tx.Save(item).Error; err != nil {
			return fmt.Errorf("failed to update backlog item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	realtime.Publish(s.events, realtime.BacklogItemUpdated, projectID, item.ID, item)
	return item, nil
}

// checkParent verifies parentID exists in the project and, when itemID is
// set, that walking from parentID to the root never reaches itemID. The walk
// is bounded by the number of items in the project so corrupt data cannot
// loop forever.
func checkParent(tx *gorm.DB, projectID, itemID, parentID string) error {
	if itemID != "" && parentID == itemID {
		return ErrSelfParent
	}

	var bound int64
	if err := tx.Model(&models.BacklogItem{}).Where("project_id = ?", projectID).Count(&bound).Error; err != nil {
		return fmt.Errorf("failed to count backlog items: %w", err)
	}

	current := parentID
	for steps := int64(0); current != ""; steps++ {
		if steps > bound {
			return ErrParentCycle
		}

		var node models.BacklogItem
		err := tx.Select("id", "project_id", "parent_id").Where("id = ?", current).First(&node).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if steps == 0 {
					return ErrParentNotFound
				}
				// dangling ancestor: the chain ends here
				return nil
			}
			return fmt.Errorf("failed to walk parent chain: %w", err)
		}
		if node.ProjectID != projectID {
			return ErrParentNotFound
		}
		if itemID != "" && node.ID == itemID {
			return ErrParentCycle
		}
		if node.ParentID == nil {
			return nil
		}
		current = *node.ParentID
	}
	return nil
}

func (s *service) Delete(ctx context.Context, projectID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := Find(tx, projectID, id)
		if err != nil {
			return err
		}

		var children int64
		if err := tx.Model(&models.BacklogItem{}).Where("parent_id = ?", item.ID).Count(&children).Error; err != nil {
			return fmt.Errorf("failed to count children: %w", err)
		}
		if children > 0 {
			return apperr.Constraintf("backlog item %s has %d child item(s); re-parent or delete them first", item.ID, children)
		}

		var links int64
		if err := tx.Model(&models.SprintItem{}).Where("backlog_item_id = ?", item.ID).Count(&links).Error; err != nil {
			return fmt.Errorf("failed to count sprint links: %w", err)
		}
		if links > 0 {
			return apperr.Constraintf("backlog item %s is linked to %d sprint(s); remove it from those sprints first", item.ID, links)
		}

		if err := tx.Delete(item).Error; err != nil {
			return fmt.Errorf("failed to delete backlog item: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("backlog item deleted", "project_id", projectID, "item_id", id)
	realtime.Publish(s.events, realtime.BacklogItemDeleted, projectID, id, nil)
	return nil
}

func (s *service) List(ctx context.Context, projectID string, filter Filter) ([]models.BacklogItem, error) {
	query := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		if !filter.Type.Valid() {
			return nil, ErrInvalidType
		}
		query = query.Where("type = ?", filter.Type)
	}
	if filter.ParentID != "" {
		query = query.Where("parent_id = ?", filter.ParentID)
	}
	if filter.AssigneeUserID != "" {
		query = query.Where("assignee_user_id = ?", filter.AssigneeUserID)
	}

	items := make([]models.BacklogItem, 0)
	if err := query.Order(DefaultOrder).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list backlog items: %w", err)
	}
	return items, nil
}

func (s *service) Children(ctx context.Context, projectID, id string) ([]models.BacklogItem, error) {
	if _, err := s.Get(ctx, projectID, id); err != nil {
		return nil, err
	}
	return s.List(ctx, projectID, Filter{ParentID: id})
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
