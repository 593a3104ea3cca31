// Package eisenhower classifies backlog items by urgency and importance.
package eisenhower

import (
	"context"
	"fmt"
	"time"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/realtime"
	"agile-tracker-api/internal/services/backlog"

	"gorm.io/gorm"
)

// Service defines the Eisenhower matrix operations
type Service interface {
	Classify(ctx context.Context, projectID, itemID string, isUrgent, isImportant bool) (*models.BacklogItem, error)
	Matrix(ctx context.Context, projectID string) (*Matrix, error)
}

// Matrix partitions the open backlog of a project
type Matrix struct {
	Do           []models.BacklogItem `json:"do"`
	Schedule     []models.BacklogItem `json:"schedule"`
	Delegate     []models.BacklogItem `json:"delegate"`
	Eliminate    []models.BacklogItem `json:"eliminate"`
	Unclassified []models.BacklogItem `json:"unclassified"`
	Stats        Stats                `json:"stats"`
}

// Stats summarizes a Matrix
type Stats struct {
	Counts  map[models.Quadrant]int `json:"counts"`
	Total   int                     `json:"total"`
	Overdue int                     `json:"overdue"`
}

type service struct {
	db     *gorm.DB
	events realtime.Publisher
	now    func() time.Time
}

// NewService creates a new eisenhower service
func NewService(db *gorm.DB, events realtime.Publisher) Service {
	return &service{db: db, events: events, now: time.Now}
}

func (s *service) Classify(ctx context.Context, projectID, itemID string, isUrgent, isImportant bool) (*models.BacklogItem, error) {
	var item *models.BacklogItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := backlog.Find(tx, projectID, itemID)
		if err != nil {
			return err
		}
		// Map form so false values are written.
		err = tx.Model(found).Updates(map[string]any{
			"is_urgent":     isUrgent,
			"is_important":  isImportant,
			"is_classified": true,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to classify backlog item: %w", err)
		}
		found.IsUrgent = isUrgent
		found.IsImportant = isImportant
		found.IsClassified = true
		item = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	realtime.Publish(s.events, realtime.BacklogItemClassified, projectID, item.ID, item)
	return item, nil
}

func (s *service) Matrix(ctx context.Context, projectID string) (*Matrix, error) {
	var items []models.BacklogItem
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND status <> ?", projectID, models.ItemDone).
		Order(backlog.DefaultOrder).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load backlog items: %w", err)
	}
	return Partition(items, s.now()), nil
}

// Partition buckets items by quadrant. Every item lands in exactly one bucket.
func Partition(items []models.BacklogItem, now time.Time) *Matrix {
	m := &Matrix{
		Do:           []models.BacklogItem{},
		Schedule:     []models.BacklogItem{},
		Delegate:     []models.BacklogItem{},
		Eliminate:    []models.BacklogItem{},
		Unclassified: []models.BacklogItem{},
		Stats: Stats{Counts: map[models.Quadrant]int{
			models.QuadrantDo:           0,
			models.QuadrantSchedule:     0,
			models.QuadrantDelegate:     0,
			models.QuadrantEliminate:    0,
			models.QuadrantUnclassified: 0,
		}},
	}

	for _, item := range items {
		q := item.Quadrant()
		switch q {
		case models.QuadrantDo:
			m.Do = append(m.Do, item)
		case models.QuadrantSchedule:
			m.Schedule = append(m.Schedule, item)
		case models.QuadrantDelegate:
			m.Delegate = append(m.Delegate, item)
		case models.QuadrantEliminate:
			m.Eliminate = append(m.Eliminate, item)
		default:
			m.Unclassified = append(m.Unclassified, item)
		}
		m.Stats.Counts[q]++
		m.Stats.Total++
		if item.Status != models.ItemDone && item.DueDate != nil && item.DueDate.Before(now) {
			m.Stats.Overdue++
		}
	}
	return m
}
