// Package metrics derives sprint and backlog statistics. It stores nothing.
package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/services/sprint"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// VelocityWindow is how many closed sprints velocity averages over.
	VelocityWindow = 3
	// DefaultRecentSprints is the recent sprint list length when none is given.
	DefaultRecentSprints = 5
	// HealthTolerance is how far progress and elapsed time may drift apart
	// before a sprint counts as ahead or behind.
	HealthTolerance = 0.10
)

// Health of the active sprint
type Health string

const (
	HealthAhead   Health = "ahead"
	HealthOnTrack Health = "on_track"
	HealthBehind  Health = "behind"
	HealthNone    Health = "none"
)

// Service defines the metrics queries
type Service interface {
	Velocity(ctx context.Context, projectID string) (float64, error)
	ActiveSprintProgress(ctx context.Context, projectID string) (int, error)
	SprintHealth(ctx context.Context, projectID string) (Health, error)
	ItemsByStatus(ctx context.Context, projectID string) (map[models.ItemStatus]int, error)
	RecentSprints(ctx context.Context, projectID string, n int) ([]SprintSummary, error)
	OpenImpediments(ctx context.Context, projectID string) (int, error)
	Dashboard(ctx context.Context, projectID string) (*Dashboard, error)
}

// SprintSummary is one row of the recent sprints chart
type SprintSummary struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Status    models.SprintStatus `json:"status"`
	StartDate time.Time           `json:"startDate"`
	Planned   int                 `json:"planned"`
	Completed int                 `json:"completed"`
}

// Dashboard bundles the project metrics
type Dashboard struct {
	ActiveSprint         *models.Sprint            `json:"activeSprint"`
	ActiveSprintProgress int                       `json:"activeSprintProgress"`
	Velocity             float64                   `json:"velocity"`
	TotalBacklogItems    int                       `json:"totalBacklogItems"`
	ItemsByStatus        map[models.ItemStatus]int `json:"itemsByStatus"`
	OpenImpediments      int                       `json:"openImpediments"`
	SprintHealth         Health                    `json:"sprintHealth"`
	RecentSprints        []SprintSummary           `json:"recentSprints"`
	TeamSize             int                       `json:"teamSize"`
}

type service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new metrics service
func NewService(db *gorm.DB) Service {
	return &service{db: db, now: time.Now}
}

type boardCount struct {
	SprintID string
	Total    int
	Done     int
}

// boardCounts returns linked and DONE row counts per sprint.
func boardCounts(db *gorm.DB, sprintIDs []string) (map[string]boardCount, error) {
	out := make(map[string]boardCount, len(sprintIDs))
	if len(sprintIDs) == 0 {
		return out, nil
	}
	var rows []boardCount
	err := db.Model(&models.SprintItem{}).
		Select("sprint_id, COUNT(*) AS total, SUM(CASE WHEN board_status = ? THEN 1 ELSE 0 END) AS done", models.BoardDone).
		Where("sprint_id IN ?", sprintIDs).
		Group("sprint_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count sprint items: %w", err)
	}
	for _, r := range rows {
		out[r.SprintID] = r
	}
	return out, nil
}

func (s *service) Velocity(ctx context.Context, projectID string) (float64, error) {
	return velocity(s.db.WithContext(ctx), projectID)
}

// velocity is the mean DONE story points of the most recently ended closed
// sprints, rounded to two decimals.
func velocity(db *gorm.DB, projectID string) (float64, error) {
	var ids []string
	err := db.Model(&models.Sprint{}).
		Where("project_id = ? AND status = ?", projectID, models.SprintClosed).
		Order("end_date DESC, id DESC").
		Limit(VelocityWindow).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load closed sprints: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var total int
	err = db.Table("sprint_items AS si").
		Select("COALESCE(SUM(bi.story_points), 0)").
		Joins("JOIN backlog_items bi ON bi.id = si.backlog_item_id").
		Where("si.sprint_id IN ? AND si.board_status = ?", ids, models.BoardDone).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum completed points: %w", err)
	}
	return round2(float64(total) / float64(len(ids))), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *service) ActiveSprintProgress(ctx context.Context, projectID string) (int, error) {
	db := s.db.WithContext(ctx)
	sp, err := sprint.FindActive(db, projectID)
	if err != nil || sp == nil {
		return 0, err
	}
	c, err := activeCount(db, sp)
	if err != nil {
		return 0, err
	}
	return progress(c), nil
}

func activeCount(db *gorm.DB, sp *models.Sprint) (boardCount, error) {
	counts, err := boardCounts(db, []string{sp.ID})
	if err != nil {
		return boardCount{}, err
	}
	return counts[sp.ID], nil
}

func progress(c boardCount) int {
	if c.Total == 0 {
		return 0
	}
	return int(math.Round(float64(c.Done) / float64(c.Total) * 100))
}

func (s *service) SprintHealth(ctx context.Context, projectID string) (Health, error) {
	db := s.db.WithContext(ctx)
	sp, err := sprint.FindActive(db, projectID)
	if err != nil {
		return "", err
	}
	if sp == nil {
		return HealthNone, nil
	}
	c, err := activeCount(db, sp)
	if err != nil {
		return "", err
	}
	return health(sp.StartDate, sp.EndDate, s.now(), c), nil
}

// health compares the completed fraction of the board with the elapsed
// fraction of the sprint window. Elapsed is clamped to [0,1].
func health(start, end, now time.Time, c boardCount) Health {
	elapsed := 0.0
	if span := end.Sub(start); span > 0 {
		elapsed = float64(now.Sub(start)) / float64(span)
	}
	elapsed = math.Max(0, math.Min(1, elapsed))

	done := 0.0
	if c.Total > 0 {
		done = float64(c.Done) / float64(c.Total)
	}

	switch diff := done - elapsed; {
	case diff > HealthTolerance:
		return HealthAhead
	case diff < -HealthTolerance:
		return HealthBehind
	default:
		return HealthOnTrack
	}
}

func (s *service) ItemsByStatus(ctx context.Context, projectID string) (map[models.ItemStatus]int, error) {
	db := s.db.WithContext(ctx)
	sp, err := sprint.FindActive(db, projectID)
	if err != nil {
		return nil, err
	}
	return itemsByStatus(db, sp)
}

// itemsByStatus counts backlog item statuses on the active sprint board.
// Every status is present, zero when absent or without an active sprint.
func itemsByStatus(db *gorm.DB, sp *models.Sprint) (map[models.ItemStatus]int, error) {
	out := make(map[models.ItemStatus]int)
	for _, st := range models.AllItemStatuses() {
		out[st] = 0
	}
	if sp == nil {
		return out, nil
	}

	var rows []struct {
		Status models.ItemStatus
		Count  int
	}
	err := db.Table("backlog_items AS bi").
		Select("bi.status AS status, COUNT(*) AS count").
		Joins("JOIN sprint_items si ON si.backlog_item_id = bi.id").
		Where("si.sprint_id = ?", sp.ID).
		Group("bi.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count items by status: %w", err)
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (s *service) RecentSprints(ctx context.Context, projectID string, n int) ([]SprintSummary, error) {
	return recentSprints(s.db.WithContext(ctx), projectID, n)
}

func recentSprints(db *gorm.DB, projectID string, n int) ([]SprintSummary, error) {
	if n <= 0 {
		n = DefaultRecentSprints
	}
	var sprints []models.Sprint
	err := db.Where("project_id = ? AND status IN ?", projectID, []models.SprintStatus{models.SprintActive, models.SprintClosed}).
		Order("start_date DESC, id DESC").
		Limit(n).
		Find(&sprints).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent sprints: %w", err)
	}

	ids := make([]string, 0, len(sprints))
	for _, sp := range sprints {
		ids = append(ids, sp.ID)
	}
	counts, err := boardCounts(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SprintSummary, 0, len(sprints))
	for _, sp := range sprints {
		c := counts[sp.ID]
		out = append(out, SprintSummary{
			ID:        sp.ID,
			Name:      sp.Name,
			Status:    sp.Status,
			StartDate: sp.StartDate,
			Planned:   c.Total,
			Completed: c.Done,
		})
	}
	return out, nil
}

func (s *service) OpenImpediments(ctx context.Context, projectID string) (int, error) {
	return openImpediments(s.db.WithContext(ctx), projectID)
}

func openImpediments(db *gorm.DB, projectID string) (int, error) {
	var count int64
	err := db.Model(&models.Impediment{}).
		Where("project_id = ? AND status <> ?", projectID, models.ImpedimentResolved).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open impediments: %w", err)
	}
	return int(count), nil
}

func backlogTotals(db *gorm.DB, projectID string) (total, teamSize int, err error) {
	var count int64
	if err = db.Model(&models.BacklogItem{}).Where("project_id = ?", projectID).Count(&count).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count backlog items: %w", err)
	}
	var assignees int64
	err = db.Model(&models.BacklogItem{}).
		Where("project_id = ? AND assignee_user_id IS NOT NULL AND assignee_user_id <> ''", projectID).
		Distinct("assignee_user_id").
		Count(&assignees).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count assignees: %w", err)
	}
	return int(count), int(assignees), nil
}

// Dashboard computes every metric concurrently against one snapshot of the
// active sprint.
func (s *service) Dashboard(ctx context.Context, projectID string) (*Dashboard, error) {
	sp, err := sprint.FindActive(s.db.WithContext(ctx), projectID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{ActiveSprint: sp, SprintHealth: HealthNone}
	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)

	g.Go(func() error {
		v, err := velocity(db, projectID)
		d.Velocity = v
		return err
	})
	g.Go(func() error {
		if sp == nil {
			return nil
		}
		c, err := activeCount(db, sp)
		if err != nil {
			return err
		}
		d.ActiveSprintProgress = progress(c)
		d.SprintHealth = health(sp.StartDate, sp.EndDate, s.now(), c)
		return nil
	})
	g.Go(func() error {
		m, err := itemsByStatus(db, sp)
		d.ItemsByStatus = m
		return err
	})
	g.Go(func() error {
		r, err := recentSprints(db, projectID, DefaultRecentSprints)
		d.RecentSprints = r
		return err
	})
	g.Go(func() error {
		n, err := openImpediments(db, projectID)
		d.OpenImpediments = n
		return err
	})
	g.Go(func() error {
		total, team, err := backlogTotals(db, projectID)
		d.TotalBacklogItems = total
		d.TeamSize = team
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
