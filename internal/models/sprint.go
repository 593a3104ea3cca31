package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SprintStatus represents where a sprint is in its lifecycle
type SprintStatus string

const (
	SprintPlanned SprintStatus = "PLANNED"
	SprintActive  SprintStatus = "ACTIVE"
	SprintClosed  SprintStatus = "CLOSED"
)

func (s SprintStatus) Valid() bool {
	switch s {
	case SprintPlanned, SprintActive, SprintClosed:
		return true
	}
	return false
}

// Sprint is a fixed time-boxed delivery window within a project
type Sprint struct {
	ID              string       `json:"id" gorm:"primaryKey"`
	ProjectID       string       `json:"projectId" gorm:"column:project_id;not null;index"`
	Name            string       `json:"name" gorm:"not null"`
	Goal            *string      `json:"goal"`
	StartDate       time.Time    `json:"startDate" gorm:"column:start_date;not null"`
	EndDate         time.Time    `json:"endDate" gorm:"column:end_date;not null"`
	Status          SprintStatus `json:"status" gorm:"not null;default:'PLANNED';index"`
	CreatedByUserID string       `json:"createdByUserId" gorm:"column:created_by_user_id"`
	RetroKeep       *string      `json:"retroKeep" gorm:"column:retro_keep"`
	RetroImprove    *string      `json:"retroImprove" gorm:"column:retro_improve"`
	RetroStop       *string      `json:"retroStop" gorm:"column:retro_stop"`
	StartedAt       *time.Time   `json:"startedAt" gorm:"column:started_at"`
	ClosedAt        *time.Time   `json:"closedAt" gorm:"column:closed_at"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// TableName specifies the table name for Sprint Model
func (Sprint) TableName() string {
	return "sprints"
}

func (s *Sprint) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// BoardStatus is the sprint-scoped kanban state of a backlog item
type BoardStatus string

const (
	BoardTodo       BoardStatus = "TODO"
	BoardInProgress BoardStatus = "IN_PROGRESS"
	BoardInReview   BoardStatus = "IN_REVIEW"
	BoardDone       BoardStatus = "DONE"
	BoardBlocked    BoardStatus = "BLOCKED"
)

func (s BoardStatus) Valid() bool {
	switch s {
	case BoardTodo, BoardInProgress, BoardInReview, BoardDone, BoardBlocked:
		return true
	}
	return false
}

// AllBoardStatuses lists board columns left to right
func AllBoardStatuses() []BoardStatus {
	return []BoardStatus{BoardTodo, BoardInProgress, BoardInReview, BoardDone, BoardBlocked}
}

// SprintItem links a backlog item to a sprint. The pair is the primary key.
type SprintItem struct {
	SprintID        string      `json:"sprintId" gorm:"column:sprint_id;primaryKey"`
	BacklogItemID   string      `json:"backlogItemId" gorm:"column:backlog_item_id;primaryKey;index"`
	BoardStatus     BoardStatus `json:"boardStatus" gorm:"column:board_status;not null;default:'TODO'"`
	AddedAfterStart bool        `json:"addedAfterStart" gorm:"column:added_after_start;not null;default:false"`
	CreatedAt       time.Time   `json:"addedAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// TableName specifies the table name for SprintItem Model
func (SprintItem) TableName() string {
	return "sprint_items"
}
