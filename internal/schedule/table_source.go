package schedule

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TableSource reads activities from a table owned by the scheduling module
// in the same database. It only ever issues SELECTs.
type TableSource struct {
	DB    *gorm.DB
	Table string
}

func (s *TableSource) Activities(ctx context.Context, projectID string) ([]Activity, error) {
	var rows []Activity
	err := s.DB.WithContext(ctx).
		Table(s.Table).
		Select("id, project_id, name, code, status").
		Where("project_id = ?", projectID).
		Order("code, id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	return rows, nil
}
