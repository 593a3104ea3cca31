package backlog

import (
	"context"
	"fmt"
	"strings"

	"agile-tracker-api/internal/models"

	"github.com/sahilm/fuzzy"
)

// DefaultSearchLimit caps Search results when no limit is given.
const DefaultSearchLimit = 20

// titles adapts a slice of items to fuzzy.Source.
type titles []models.BacklogItem

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// Search ranks the project's items by fuzzy title match, best first.
func (s *service) Search(ctx context.Context, projectID, query string, limit int) ([]models.BacklogItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.BacklogItem{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var items []models.BacklogItem
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order(DefaultOrder).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load backlog items: %w", err)
	}

	matches := fuzzy.FindFrom(query, titles(items))
	out := make([]models.BacklogItem, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, items[m.Index])
	}
	return out, nil
}
