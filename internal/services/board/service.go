// Package board owns the sprint-scoped board status of linked backlog items.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agile-tracker-api/internal/apperr"
	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/realtime"
	"agile-tracker-api/internal/services/sprint"

	"gorm.io/gorm"
)

var (
	ErrInvalidBoardStatus = apperr.Validationf("boardStatus must be one of TODO, IN_PROGRESS, IN_REVIEW, DONE, BLOCKED")
	ErrBoardFrozen        = apperr.Conflictf("sprint is closed; its board can no longer change")
	ErrNotOnBoard         = apperr.NotFoundf("backlog item is not on this sprint board")
)

// Service defines sprint board operations
type Service interface {
	View(ctx context.Context, projectID, sprintID string) (*View, error)
	SetItemStatus(ctx context.Context, projectID, sprintID, backlogItemID string, status models.BoardStatus) (*models.SprintItem, error)
}

// Card is a board row joined with its backlog item
type Card struct {
	BoardStatus     models.BoardStatus  `json:"boardStatus"`
	AddedAfterStart bool                `json:"addedAfterStart"`
	Item            *models.BacklogItem `json:"item"`
}

// Column holds the cards in one board status
type Column struct {
	Status models.BoardStatus `json:"status"`
	Cards  []Card             `json:"cards"`
}

// View is a sprint with its board laid out left to right
type View struct {
	Sprint  *models.Sprint `json:"sprint"`
	Columns []Column       `json:"columns"`
	Total   int            `json:"total"`
	Done    int            `json:"done"`
}

type service struct {
	db     *gorm.DB
	events realtime.Publisher
}

// NewService creates a new board service
func NewService(db *gorm.DB, events realtime.Publisher) Service {
	return &service{db: db, events: events}
}

func (s *service) View(ctx context.Context, projectID, sprintID string) (*View, error) {
	db := s.db.WithContext(ctx)
	sp, err := sprint.Find(db, projectID, sprintID)
	if err != nil {
		return nil, err
	}

	var rows []models.SprintItem
	if err := db.Where("sprint_id = ?", sp.ID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load sprint items: %w", err)
	}

	rowByItem := make(map[string]models.SprintItem, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		rowByItem[r.BacklogItemID] = r
		ids = append(ids, r.BacklogItemID)
	}

	items := make([]models.BacklogItem, 0, len(ids))
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Order("priority DESC, created_at ASC, id ASC").Find(&items).Error; err != nil {
			return nil, fmt.Errorf("failed to load board items: %w", err)
		}
	}

	view := &View{Sprint: sp, Total: len(rows)}
	index := make(map[models.BoardStatus]int)
	for i, st := range models.AllBoardStatuses() {
		view.Columns = append(view.Columns, Column{Status: st, Cards: []Card{}})
		index[st] = i
	}
	for i := range items {
		r := rowByItem[items[i].ID]
		col, ok := index[r.BoardStatus]
		if !ok {
			continue
		}
		view.Columns[col].Cards = append(view.Columns[col].Cards, Card{
			BoardStatus:     r.BoardStatus,
			AddedAfterStart: r.AddedAfterStart,
			Item:            &items[i],
		})
		if r.BoardStatus == models.BoardDone {
			view.Done++
		}
	}
	return view, nil
}

// SetItemStatus overwrites the board status; any status may follow any other.
// Reaching DONE also marks the backlog item DONE in the same transaction.
// Leaving DONE does not undo that.
func (s *service) SetItemStatus(ctx context.Context, projectID, sprintID, backlogItemID string, status models.BoardStatus) (*models.SprintItem, error) {
	if !status.Valid() {
		return nil, ErrInvalidBoardStatus
	}

	var row models.SprintItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp, err := sprint.Find(tx, projectID, sprintID)
		if err != nil {
			return err
		}
		if sp.Status == models.SprintClosed {
			return ErrBoardFrozen
		}

		err = tx.Where("sprint_id = ? AND backlog_item_id = ?", sp.ID, backlogItemID).First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotOnBoard
			}
			return fmt.Errorf("failed to fetch sprint item: %w", err)
		}

		if err := tx.Model(&row).Update("board_status", status).Error; err != nil {
			return fmt.Errorf("failed to update board status: %w", err)
		}
		row.BoardStatus = status

		if status == models.BoardDone {
			if err := tx.Model(&models.BacklogItem{}).
				Where("id = ?", backlogItemID).
				Update("status", models.ItemDone).Error; err != nil {
				return fmt.Errorf("failed to complete backlog item: %w", err)
			}
			slog.Info("backlog item completed from board", "project_id", projectID, "sprint_id", sprintID, "item_id", backlogItemID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	realtime.Publish(s.events, realtime.BoardStatusChanged, projectID, backlogItemID, row)
	return &row, nil
}
