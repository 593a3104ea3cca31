package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemType represents the kind of work a backlog item describes
type ItemType string

const (
	TypeEpic  ItemType = "EPIC"
	TypeStory ItemType = "STORY"
	TypeTask  ItemType = "TASK"
	TypeBug   ItemType = "BUG"
	TypeRisk  ItemType = "RISK"
)

func (t ItemType) Valid() bool {
	switch t {
	case TypeEpic, TypeStory, TypeTask, TypeBug, TypeRisk:
		return true
	}
	return false
}

// ItemStatus is the project-scoped status of a backlog item
type ItemStatus string

const (
	ItemBacklog  ItemStatus = "BACKLOG"
	ItemReady    ItemStatus = "READY"
	ItemInSprint ItemStatus = "IN_SPRINT"
	ItemDone     ItemStatus = "DONE"
	ItemBlocked  ItemStatus = "BLOCKED"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemBacklog, ItemReady, ItemInSprint, ItemDone, ItemBlocked:
		return true
	}
	return false
}

// AllItemStatuses lists backlog statuses in workflow order
func AllItemStatuses() []ItemStatus {
	return []ItemStatus{ItemBacklog, ItemReady, ItemInSprint, ItemDone, ItemBlocked}
}

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

// BacklogItem represents a unit of deliverable work in a project backlog
type BacklogItem struct {
	ID                  string     `json:"id" gorm:"primaryKey"`
	ProjectID           string     `json:"projectId" gorm:"column:project_id;not null;index"`
	Title               string     `json:"title" gorm:"not null"`
	Description         *string    `json:"description"`
	Type                ItemType   `json:"type" gorm:"not null;default:'TASK'"`
	Status              ItemStatus `json:"status" gorm:"not null;default:'BACKLOG';index"`
	Priority            int        `json:"priority" gorm:"not null;default:3"`
	StoryPoints         *int       `json:"storyPoints" gorm:"column:story_points"`
	EstimatedHours      *float64   `json:"estimatedHours" gorm:"column:estimated_hours"`
	DueDate             *time.Time `json:"dueDate" gorm:"column:due_date"`
	IsUrgent            bool       `json:"isUrgent" gorm:"column:is_urgent;not null;default:false"`
	IsImportant         bool       `json:"isImportant" gorm:"column:is_important;not null;default:false"`
	IsClassified        bool       `json:"isClassified" gorm:"column:is_classified;not null;default:false"`
	AssigneeUserID      *string    `json:"assigneeUserId" gorm:"column:assignee_user_id"`
	ContractorID        *string    `json:"contractorId" gorm:"column:contractor_id"`
	LinkedWbsActivityID *string    `json:"linkedWbsActivityId" gorm:"column:linked_wbs_activity_id;uniqueIndex"`
	ParentID            *string    `json:"parentId" gorm:"column:parent_id;index"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for BacklogItem Model
func (BacklogItem) TableName() string {
	return "backlog_items"
}

func (b *BacklogItem) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
