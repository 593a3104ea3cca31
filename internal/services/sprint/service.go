package sprint

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
	"gorm.io/gorm/clause"
)

// Service defines the sprint lifecycle operations
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*models.Sprint, error)
	Get(ctx context.Context, projectID, id string) (*models.Sprint, error)
	List(ctx context.Context, projectID string, status models.SprintStatus) ([]models.Sprint, error)

	// PLANNED -> ACTIVE -> CLOSED
	Start(ctx context.Context, projectID, id string) (*models.Sprint, error)
	Close(ctx context.Context, projectID, id string, retro Retrospective) (*models.Sprint, error)

	// Membership
	AddItems(ctx context.Context, projectID, id string, backlogItemIDs []string) (*AddItemsResult, error)
	RemoveItem(ctx context.Context, projectID, id, backlogItemID string) error
	CarryOver(ctx context.Context, projectID, fromID, toID string) (*AddItemsResult, error)
}

// CreateRequest encapsulates all data needed to create a sprint
type CreateRequest struct {
	ProjectID       string
	Name            string
	Goal            *string
	StartDate       time.Time
	EndDate         time.Time
	CreatedByUserID string
}

// Retrospective notes recorded when a sprint closes
type Retrospective struct {
	Keep    *string
	Improve *string
	Stop    *string
}

// AddItemsResult reports which ids were linked and which were already present
type AddItemsResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
}

type service struct {
	db     *gorm.DB
	events realtime.Publisher
	now    func() time.Time
}

// NewService creates a new sprint service
func NewService(db *gorm.DB, events realtime.Publisher) Service {
	return &service{db: db, events: events, now: time.Now}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*models.Sprint, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, ErrMissingProjectID
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, ErrMissingDates
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, ErrInvalidDates
	}

	sp := &models.Sprint{
		ProjectID:       req.ProjectID,
		Name:            strings.TrimSpace(req.Name),
		Goal:            req.Goal,
		StartDate:       req.StartDate.UTC(),
		EndDate:         req.EndDate.UTC(),
		Status:          models.SprintPlanned,
		CreatedByUserID: req.CreatedByUserID,
	}
	if err := s.db.WithContext(ctx).Create(sp).Error; err != nil {
		return nil, fmt.Errorf("failed to create sprint: %w", err)
	}

	realtime.Publish(s.events, realtime.SprintCreated, sp.ProjectID, sp.ID, sp)
	return sp, nil
}

func (s *service) Get(ctx context.Context, projectID, id string) (*models.Sprint, error) {
	return Find(s.db.WithContext(ctx), projectID, id)
}

// Find loads a sprint scoped to its project.
func Find(db *gorm.DB, projectID, id string) (*models.Sprint, error) {
	var sp models.Sprint
	err := db.Where("id = ? AND project_id = ?", id, projectID).First(&sp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSprintNotFound
		}
		return nil, fmt.Errorf("failed to fetch sprint: %w", err)
	}
	return &sp, nil
}

// FindActive returns the project's ACTIVE sprint, or nil when there is none.
func FindActive(db *gorm.DB, projectID string) (*models.Sprint, error) {
	var sp models.Sprint
	err := db.Where("project_id = ? AND status = ?", projectID, models.SprintActive).First(&sp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch active sprint: %w", err)
	}
	return &sp, nil
}

func (s *service) List(ctx context.Context, projectID string, status models.SprintStatus) ([]models.Sprint, error) {
	query := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", status)
	}

	sprints := make([]models.Sprint, 0)
	if err := query.Order("start_date DESC, created_at DESC").Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	return sprints, nil
}

// Start moves a PLANNED sprint to ACTIVE. The pre-check gives a precise
// error; the partial unique index on sprints decides concurrent races.
func (s *service) Start(ctx context.Context, projectID, id string) (*models.Sprint, error) {
	var sp *models.Sprint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sp, err = Find(tx, projectID, id)
		if err != nil {
			return err
		}
		switch sp.Status {
		case models.SprintActive:
			return ErrAlreadyActive
		case models.SprintClosed:
			return ErrSprintClosed
		}

		active, err := FindActive(tx, projectID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflictf("sprint %q is already active in this project", active.Name)
		}

		return activate(tx, sp, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	slog.Info("sprint started", "project_id", projectID, "sprint_id", sp.ID)
	realtime.Publish(s.events, realtime.SprintStarted, projectID, sp.ID, sp)
	return sp, nil
}

// activate flips a PLANNED sprint to ACTIVE. The partial unique index turns a
// start that lost a race with another one into ErrAnotherActive.
func activate(tx *gorm.DB, sp *models.Sprint, now time.Time) error {
	res := tx.Model(&models.Sprint{}).
		Where("id = ? AND status = ?", sp.ID, models.SprintPlanned).
		Updates(map[string]any{"status": models.SprintActive, "started_at": now})
	if res.Error != nil {
		if apperr.IsUniqueViolation(res.Error) {
			return ErrAnotherActive
		}
		return fmt.Errorf("failed to start sprint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyActive
	}
	sp.Status = models.SprintActive
	sp.StartedAt = &now
	return nil
}

// Close freezes an ACTIVE sprint and records the retrospective. Unfinished
// items stay linked; moving them is CarryOver's job.
func (s *service) Close(ctx context.Context, projectID, id string, retro Retrospective) (*models.Sprint, error) {
	var sp *models.Sprint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sp, err = Find(tx, projectID, id)
		if err != nil {
			return err
		}
		if sp.Status != models.SprintActive {
			return ErrNotActive
		}

		now := s.now().UTC()
		sp.Status = models.SprintClosed
		sp.ClosedAt = &now
		sp.RetroKeep = retro.Keep
		sp.RetroImprove = retro.Improve
		sp.RetroStop = retro.Stop
		if err := tx.Save(sp).Error; err != nil {
			return fmt.Errorf("failed to close sprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("sprint closed", "project_id", projectID, "sprint_id", sp.ID)
	realtime.Publish(s.events, realtime.SprintClosed, projectID, sp.ID, sp)
	return sp, nil
}

func (s *service) AddItems(ctx context.Context, projectID, id string, backlogItemIDs []string) (*AddItemsResult, error) {
	ids := dedupe(backlogItemIDs)
	if len(ids) == 0 {
		return nil, ErrNoItems
	}

	var result *AddItemsResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp, err := Find(tx, projectID, id)
		if err != nil {
			return err
		}
		result, err = addItems(tx, sp, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(result.Added) > 0 {
		realtime.Publish(s.events, realtime.SprintItemsChanged, projectID, id, result)
	}
	return result, nil
}

// addItems links ids to sp with board status TODO. Rows that already exist
// are absorbed by ON CONFLICT DO NOTHING and reported as skipped.
func addItems(tx *gorm.DB, sp *models.Sprint, ids []string) (*AddItemsResult, error) {
	if sp.Status == models.SprintClosed {
		return nil, ErrSprintClosed
	}

	var found []string
	if err := tx.Model(&models.BacklogItem{}).
		Where("project_id = ? AND id IN ?", sp.ProjectID, ids).
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to verify backlog items: %w", err)
	}
	if len(found) != len(ids) {
		known := make(map[string]bool, len(found))
		for _, f := range found {
			known[f] = true
		}
		for _, id := range ids {
			if !known[id] {
				return nil, apperr.NotFoundf("backlog item %s not found in this project", id)
			}
		}
	}

	result := &AddItemsResult{Added: []string{}, Skipped: []string{}}
	for _, itemID := range ids {
		row := models.SprintItem{
			SprintID:        sp.ID,
			BacklogItemID:   itemID,
			BoardStatus:     models.BoardTodo,
			AddedAfterStart: sp.Status == models.SprintActive,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to add item %s to sprint: %w", itemID, res.Error)
		}
		if res.RowsAffected == 0 {
			result.Skipped = append(result.Skipped, itemID)
			continue
		}
		result.Added = append(result.Added, itemID)
	}

	if len(result.Added) > 0 {
		err := tx.Model(&models.BacklogItem{}).
			Where("id IN ? AND status IN ?", result.Added, []models.ItemStatus{models.ItemBacklog, models.ItemReady}).
			Update("status", models.ItemInSprint).Error
		if err != nil {
			return nil, fmt.Errorf("failed to mark items in sprint: %w", err)
		}
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, projectID, id, backlogItemID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp, err := Find(tx, projectID, id)
		if err != nil {
			return err
		}
		if sp.Status == models.SprintClosed {
			return ErrSprintClosed
		}

		res := tx.Where("sprint_id = ? AND backlog_item_id = ?", sp.ID, backlogItemID).Delete(&models.SprintItem{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove item from sprint: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrItemNotInSprint
		}

		var openLinks int64
		err = tx.Model(&models.SprintItem{}).
			Joins("JOIN sprints ON sprints.id = sprint_items.sprint_id").
			Where("sprint_items.backlog_item_id = ? AND sprints.status <> ?", backlogItemID, models.SprintClosed).
			Count(&openLinks).Error
		if err != nil {
			return fmt.Errorf("failed to count sprint links: %w", err)
		}
		if openLinks == 0 {
			err = tx.Model(&models.BacklogItem{}).
				Where("id = ? AND status = ?", backlogItemID, models.ItemInSprint).
				Update("status", models.ItemReady).Error
			if err != nil {
				return fmt.Errorf("failed to return item to backlog: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	realtime.Publish(s.events, realtime.SprintItemsChanged, projectID, id, map[string]string{"removed": backlogItemID})
	return nil
}

// CarryOver links every unfinished item of a closed sprint into another open
// sprint. It is the only way incomplete work moves between sprints.
func (s *service) CarryOver(ctx context.Context, projectID, fromID, toID string) (*AddItemsResult, error) {
	if fromID == toID {
		return nil, ErrSameSprint
	}

	var result *AddItemsResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, err := Find(tx, projectID, fromID)
		if err != nil {
			return err
		}
		if from.Status != models.SprintClosed {
			return ErrCarryFromOpen
		}
		to, err := Find(tx, projectID, toID)
		if err != nil {
			return err
		}

		var ids []string
		err = tx.Model(&models.SprintItem{}).
			Joins("JOIN backlog_items ON backlog_items.id = sprint_items.backlog_item_id").
			Where("sprint_items.sprint_id = ? AND sprint_items.board_status <> ? AND backlog_items.status <> ?",
				from.ID, models.BoardDone, models.ItemDone).
			Order("backlog_items.priority DESC, backlog_items.created_at ASC").
			Pluck("sprint_items.backlog_item_id", &ids).Error
		if err != nil {
			return fmt.Errorf("failed to collect unfinished items: %w", err)
		}
		if len(ids) == 0 {
			if to.Status == models.SprintClosed {
				return ErrSprintClosed
			}
			result = &AddItemsResult{Added: []string{}, Skipped: []string{}}
			return nil
		}

		result, err = addItems(tx, to, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(result.Added) > 0 {
		realtime.Publish(s.events, realtime.SprintItemsChanged, projectID, toID, result)
	}
	return result, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
