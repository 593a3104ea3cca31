// Package bridge projects schedule activities into the backlog and
// materializes them on demand.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"agile-tracker-api/internal/apperr"
	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/realtime"
	"agile-tracker-api/internal/schedule"
	"agile-tracker-api/internal/services/backlog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrActivityNotFound = apperr.NotFoundf("schedule activity not found in this project")
	ErrForeignActivity  = apperr.Conflictf("schedule activity is already linked to another project")
	ErrMissingActivity  = apperr.Validationf("activityId is required")
)

// Service defines the schedule bridge operations
type Service interface {
	VirtualItems(ctx context.Context, projectID string) ([]models.VirtualBacklogItem, error)
	ListBacklogWithVirtualItems(ctx context.Context, projectID string, filter backlog.Filter) ([]models.BacklogEntry, error)
	Convert(ctx context.Context, projectID, activityID string) (*models.BacklogItem, bool, error)
}

type service struct {
	db       *gorm.DB
	backlog  backlog.Service
	schedule schedule.Source
	events   realtime.Publisher
}

// NewService creates a new bridge service
func NewService(db *gorm.DB, items backlog.Service, src schedule.Source, events realtime.Publisher) Service {
	if src == nil {
		src = schedule.Static{}
	}
	return &service{db: db, backlog: items, schedule: src, events: events}
}

func (s *service) VirtualItems(ctx context.Context, projectID string) ([]models.VirtualBacklogItem, error) {
	activities, err := s.schedule.Activities(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule activities: %w", err)
	}
	if len(activities) == 0 {
		return []models.VirtualBacklogItem{}, nil
	}

	// Linked anywhere, not only in this project: a linked activity is never virtual.
	var linked []string
	err = s.db.WithContext(ctx).Model(&models.BacklogItem{}).
		Where("linked_wbs_activity_id IS NOT NULL").
		Pluck("linked_wbs_activity_id", &linked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load linked activities: %w", err)
	}
	seen := make(map[string]struct{}, len(linked))
	for _, id := range linked {
		seen[id] = struct{}{}
	}

	schedule.SortByCode(activities)
	out := make([]models.VirtualBacklogItem, 0, len(activities))
	for _, a := range activities {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		out = append(out, models.VirtualBacklogItem{
			LinkedWbsActivityID: a.ID,
			Title:               activityTitle(a),
			Code:                a.Code,
			ActivityStatus:      a.Status,
		})
	}
	return out, nil
}

// ListBacklogWithVirtualItems returns persisted items in store order followed
// by unconverted activities. Virtual entries carry none of the filterable
// attributes, so any filter criterion suppresses them.
func (s *service) ListBacklogWithVirtualItems(ctx context.Context, projectID string, filter backlog.Filter) ([]models.BacklogEntry, error) {
	items, err := s.backlog.List(ctx, projectID, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]models.BacklogEntry, 0, len(items))
	for i := range items {
		entries = append(entries, models.PersistedEntry(&items[i]))
	}
	if !filter.IsEmpty() {
		return entries, nil
	}

	virtual, err := s.VirtualItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range virtual {
		entries = append(entries, models.VirtualEntry(&virtual[i]))
	}
	return entries, nil
}

// Convert materializes an activity as a backlog item. The unique index on
// linked_wbs_activity_id decides concurrent conversions; the loser reads back
// the winner's row. The bool reports whether this call created the item.
func (s *service) Convert(ctx context.Context, projectID, activityID string) (*models.BacklogItem, bool, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, false, backlog.ErrMissingProjectID
	}
	if strings.TrimSpace(activityID) == "" {
		return nil, false, ErrMissingActivity
	}

	db := s.db.WithContext(ctx)
	if existing, err := findLinked(db, projectID, activityID); err != nil || existing != nil {
		return existing, false, err
	}

	activity, err := s.findActivity(ctx, projectID, activityID)
	if err != nil {
		return nil, false, err
	}

	linked := activity.ID
	item := &models.BacklogItem{
		ProjectID:           projectID,
		Title:               activityTitle(*activity),
		Type:                models.TypeTask,
		Status:              models.ItemBacklog,
		Priority:            models.DefaultPriority,
		LinkedWbsActivityID: &linked,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "linked_wbs_activity_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to convert activity: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		existing, err := findLinked(db, projectID, activityID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("conversion of activity %s lost a race but no item was found", activityID)
		}
		return existing, false, nil
	}

	slog.Info("schedule activity converted", "project_id", projectID, "activity_id", activityID, "item_id", item.ID)
	realtime.Publish(s.events, realtime.BacklogItemConverted, projectID, item.ID, item)
	return item, true, nil
}

// findActivity looks the activity up in the schedule. A miss on a cached
// source is retried once against fresh data, since the activity may have been
// added after the cache was filled.
func (s *service) findActivity(ctx context.Context, projectID, activityID string) (*schedule.Activity, error) {
	activity, err := schedule.Find(ctx, s.schedule, projectID, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up schedule activity: %w", err)
	}
	if activity == nil {
		if cached, ok := s.schedule.(*schedule.Cached); ok {
			cached.Invalidate(projectID)
			activity, err = schedule.Find(ctx, s.schedule, projectID, activityID)
			if err != nil {
				return nil, fmt.Errorf("failed to look up schedule activity: %w", err)
			}
		}
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

func findLinked(db *gorm.DB, projectID, activityID string) (*models.BacklogItem, error) {
	var items []models.BacklogItem
	if err := db.Where("linked_wbs_activity_id = ?", activityID).Limit(1).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch linked item: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	if items[0].ProjectID != projectID {
		return nil, ErrForeignActivity
	}
	return &items[0], nil
}

func activityTitle(a schedule.Activity) string {
	if title := strings.TrimSpace(a.Name); title != "" {
		for len(title) > 255 {
			_, size := utf8.DecodeLastRuneInString(title)
			title = title[:len(title)-size]
		}
		return title
	}
	if a.Code != "" {
		return a.Code
	}
	return a.ID
}
