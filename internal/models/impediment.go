package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImpedimentStatus only moves forward: OPEN -> MITIGATING -> RESOLVED
type ImpedimentStatus string

const (
	ImpedimentOpen       ImpedimentStatus = "OPEN"
	ImpedimentMitigating ImpedimentStatus = "MITIGATING"
	ImpedimentResolved   ImpedimentStatus = "RESOLVED"
)

func (s ImpedimentStatus) Valid() bool {
	return s.rank() > 0
}

func (s ImpedimentStatus) rank() int {
	switch s {
	case ImpedimentOpen:
		return 1
	case ImpedimentMitigating:
		return 2
	case ImpedimentResolved:
		return 3
	}
	return 0
}

// CanMoveTo reports whether next is the same or a later lifecycle stage.
func (s ImpedimentStatus) CanMoveTo(next ImpedimentStatus) bool {
	return next.Valid() && next.rank() >= s.rank()
}

const (
	MinSeverity     = 1
	MaxSeverity     = 4
	DefaultSeverity = 2
)

// Impediment is a tracked blocking issue affecting a sprint or backlog item
type Impediment struct {
	ID            string           `json:"id" gorm:"primaryKey"`
	ProjectID     string           `json:"projectId" gorm:"column:project_id;not null;index"`
	SprintID      *string          `json:"sprintId" gorm:"column:sprint_id;index"`
	BacklogItemID *string          `json:"backlogItemId" gorm:"column:backlog_item_id;index"`
	Title         string           `json:"title" gorm:"not null"`
	Description   *string          `json:"description"`
	Severity      int              `json:"severity" gorm:"not null;default:2"`
	Status        ImpedimentStatus `json:"status" gorm:"not null;default:'OPEN';index"`
	OwnerUserID   *string          `json:"ownerUserId" gorm:"column:owner_user_id"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	ResolvedAt    *time.Time       `json:"resolvedAt" gorm:"column:resolved_at"`
}

// TableName specifies the table name for Impediment Model
func (Impediment) TableName() string {
	return "impediments"
}

func (i *Impediment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
