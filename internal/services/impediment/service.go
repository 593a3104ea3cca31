// Package impediment tracks blockers raised against sprints and backlog items.
package impediment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/realtime"

	"gorm.io/gorm"
)

// Service defines impediment operations
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*models.Impediment, error)
	Get(ctx context.Context, projectID, id string) (*models.Impediment, error)
	List(ctx context.Context, projectID string, filter Filter) ([]models.Impediment, error)
	Resolve(ctx context.Context, projectID, id string) (*models.Impediment, error)
	UpdateStatus(ctx context.Context, projectID, id string, status models.ImpedimentStatus) (*models.Impediment, error)
}

// CreateRequest encapsulates all data needed to raise an impediment.
// There is no status field: new impediments are always OPEN.
type CreateRequest struct {
	ProjectID     string
	SprintID      *string
	BacklogItemID *string
	Title         string
	Description   *string
	Severity      int
	OwnerUserID   *string
}

// Filter narrows List; zero fields are ignored
type Filter struct {
	Status        models.ImpedimentStatus
	SprintID      string
	BacklogItemID string
}

type service struct {
	db     *gorm.DB
	events realtime.Publisher
	now    func() time.Time
}

// NewService creates a new impediment service
func NewService(db *gorm.DB, events realtime.Publisher) Service {
	return &service{db: db, events: events, now: time.Now}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*models.Impediment, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, ErrMissingProjectID
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if req.Severity == 0 {
		req.Severity = models.DefaultSeverity
	}
	if req.Severity < models.MinSeverity || req.Severity > models.MaxSeverity {
		return nil, ErrInvalidSeverity
	}

	db := s.db.WithContext(ctx)
	if err := checkRef(db, &models.Sprint{}, req.ProjectID, req.SprintID, ErrSprintNotFound); err != nil {
		return nil, err
	}
	if err := checkRef(db, &models.BacklogItem{}, req.ProjectID, req.BacklogItemID, ErrItemNotFound); err != nil {
		return nil, err
	}

	imp := &models.Impediment{
		ProjectID:     req.ProjectID,
		SprintID:      req.SprintID,
		BacklogItemID: req.BacklogItemID,
		Title:         title,
		Description:   req.Description,
		Severity:      req.Severity,
		Status:        models.ImpedimentOpen,
		OwnerUserID:   req.OwnerUserID,
		CreatedAt:     s.now().UTC(),
	}
	if err := db.Create(imp).Error; err != nil {
		return nil, fmt.Errorf("failed to create impediment: %w", err)
	}

	realtime.Publish(s.events, realtime.ImpedimentCreated, imp.ProjectID, imp.ID, imp)
	return imp, nil
}

// checkRef verifies an optional reference points at a row of the same project.
func checkRef(db *gorm.DB, model any, projectID string, id *string, notFound error) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := db.Model(model).Where("id = ? AND project_id = ?", *id, projectID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check reference: %w", err)
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func (s *service) Get(ctx context.Context, projectID, id string) (*models.Impediment, error) {
	return find(s.db.WithContext(ctx), projectID, id)
}

func find(db *gorm.DB, projectID, id string) (*models.Impediment, error) {
	var imp models.Impediment
	err := db.Where("id = ? AND project_id = ?", id, projectID).First(&imp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImpedimentMissing
		}
		return nil, fmt.Errorf("failed to fetch impediment: %w", err)
	}
	return &imp, nil
}

func (s *service) List(ctx context.Context, projectID string, filter Filter) ([]models.Impediment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	query := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SprintID != "" {
		query = query.Where("sprint_id = ?", filter.SprintID)
	}
	if filter.BacklogItemID != "" {
		query = query.Where("backlog_item_id = ?", filter.BacklogItemID)
	}

	var list []models.Impediment
	if err := query.Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list impediments: %w", err)
	}
	return list, nil
}

// Resolve marks the impediment RESOLVED. Resolving twice keeps the first
// resolvedAt.
func (s *service) Resolve(ctx context.Context, projectID, id string) (*models.Impediment, error) {
	return s.UpdateStatus(ctx, projectID, id, models.ImpedimentResolved)
}

func (s *service) UpdateStatus(ctx context.Context, projectID, id string, status models.ImpedimentStatus) (*models.Impediment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var imp *models.Impediment
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := find(tx, projectID, id)
		if err != nil {
			return err
		}
		imp = found
		if !imp.Status.CanMoveTo(status) {
			return ErrBackwardStatus
		}
		if imp.Status == status {
			return nil
		}

		updates := map[string]any{"status": status}
		var resolvedAt *time.Time
		if status == models.ImpedimentResolved {
			at := s.now().UTC()
			resolvedAt = &at
			updates["resolved_at"] = at
		}
		if err := tx.Model(imp).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update impediment: %w", err)
		}
		imp.Status = status
		if resolvedAt != nil {
			imp.ResolvedAt = resolvedAt
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		slog.Info("impediment status changed", "project_id", projectID, "impediment_id", id, "status", status)
		realtime.Publish(s.events, realtime.ImpedimentUpdated, projectID, imp.ID, imp)
	}
	return imp, nil
}
