package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var day0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func setupTest(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	svc := NewService(db).(*service)
	svc.now = func() time.Time { return day0.AddDate(0, 0, 100) }
	return svc, db
}

// seedSprint creates a sprint starting week weeks after day0 and links one
// item per entry in points; the first done entries are on the DONE column.
func seedSprint(t *testing.T, db *gorm.DB, project string, week int, status models.SprintStatus, points []int, done int) *models.Sprint {
	t.Helper()
	start := day0.AddDate(0, 0, 14*week)
	sp := &models.Sprint{
		ProjectID: project,
		Name:      fmt.Sprintf("Sprint %d", week),
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 14),
		Status:    status,
	}
	require.NoError(t, db.Create(sp).Error)

	for i, p := range points {
		p := p
		item := &models.BacklogItem{ProjectID: project, Title: fmt.Sprintf("%s item %d", sp.Name, i), Type: models.TypeStory, Status: models.ItemInSprint, Priority: 3, StoryPoints: &p}
		board := models.BoardInProgress
		if i < done {
			board = models.BoardDone
			item.Status = models.ItemDone
		}
		require.NoError(t, db.Create(item).Error)
		require.NoError(t, db.Create(&models.SprintItem{SprintID: sp.ID, BacklogItemID: item.ID, BoardStatus: board}).Error)
	}
	return sp
}

func TestVelocity_NoClosedSprints(t *testing.T) {
	svc, db := setupTest(t)
	seedSprint(t, db, "p-1", 0, models.SprintActive, []int{5, 8}, 2)

	v, err := svc.Velocity(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, 0.0, v)
}

func TestVelocity_SingleClosedSprint(t *testing.T) {
	svc, db := setupTest(t)
	seedSprint(t, db, "p-1", 0, models.SprintClosed, []int{5, 8, 20}, 2)

	v, err := svc.Velocity(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, 13.0, v)
}

func TestVelocity_LastThreeClosedSprintsRounded(t *testing.T) {
	svc, db := setupTest(t)
	seedSprint(t, db, "p-1", 0, models.SprintClosed, []int{40}, 1)
	seedSprint(t, db, "p-1", 1, models.SprintClosed, []int{13}, 1)
	seedSprint(t, db, "p-1", 2, models.SprintClosed, []int{5, 3, 2}, 2)
	seedSprint(t, db, "p-1", 3, models.SprintClosed, []int{5, 1}, 1)
	seedSprint(t, db, "p-2", 3, models.SprintClosed, []int{100}, 1)

	v, err := svc.Velocity(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, 8.67, v)
}

func TestActiveSprintProgressAndHealth(t *testing.T) {
	svc, db := setupTest(t)
	ctx := context.Background()

	p, err := svc.ActiveSprintProgress(ctx, "p-1")
	require.NoError(t, err)
	require.Zero(t, p)
	h, err := svc.SprintHealth(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, HealthNone, h)

	sp := seedSprint(t, db, "p-1", 0, models.SprintActive, []int{1, 1, 1}, 2)
	p, err = svc.ActiveSprintProgress(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, 67, p)

	svc.now = func() time.Time { return sp.StartDate.AddDate(0, 0, 7) }
	h, err = svc.SprintHealth(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, HealthAhead, h)
}

func TestHealth(t *testing.T) {
	start := day0
	end := day0.AddDate(0, 0, 10)

	tests := []struct {
		name string
		now  time.Time
		c    boardCount
		want Health
	}{
		{"on track", start.AddDate(0, 0, 5), boardCount{Total: 10, Done: 5}, HealthOnTrack},
		{"within tolerance", start.AddDate(0, 0, 5), boardCount{Total: 10, Done: 6}, HealthOnTrack},
		{"ahead", start.AddDate(0, 0, 2), boardCount{Total: 10, Done: 5}, HealthAhead},
		{"behind", start.AddDate(0, 0, 8), boardCount{Total: 10, Done: 5}, HealthBehind},
		{"before start clamps", start.AddDate(0, 0, -3), boardCount{Total: 10, Done: 0}, HealthOnTrack},
		{"after end clamps", end.AddDate(0, 0, 30), boardCount{Total: 10, Done: 10}, HealthOnTrack},
		{"empty board late", start.AddDate(0, 0, 9), boardCount{}, HealthBehind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, health(start, end, tt.now, tt.c))
		})
	}
}

func TestItemsByStatus_ActiveSprintOnly(t *testing.T) {
	svc, db := setupTest(t)
	ctx := context.Background()

	seedSprint(t, db, "p-1", 0, models.SprintClosed, []int{1, 1}, 2)
	seedSprint(t, db, "p-1", 1, models.SprintActive, []int{1, 1, 1}, 1)

	counts, err := svc.ItemsByStatus(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.ItemDone])
	require.Equal(t, 2, counts[models.ItemInSprint])
	require.Equal(t, 0, counts[models.ItemBlocked])
	require.Len(t, counts, len(models.AllItemStatuses()))
}

func TestRecentSprints(t *testing.T) {
	svc, db := setupTest(t)
	ctx := context.Background()

	for week := 0; week < 6; week++ {
		seedSprint(t, db, "p-1", week, models.SprintClosed, []int{1, 2}, week%3)
	}
	seedSprint(t, db, "p-1", 6, models.SprintActive, []int{3}, 0)
	seedSprint(t, db, "p-1", 7, models.SprintPlanned, []int{3}, 0)

	recent, err := svc.RecentSprints(ctx, "p-1", 0)
	require.NoError(t, err)
	require.Len(t, recent, DefaultRecentSprints)
	require.Equal(t, "Sprint 6", recent[0].Name)
	require.Equal(t, 1, recent[0].Planned)
	require.Equal(t, 0, recent[0].Completed)
	require.Equal(t, "Sprint 5", recent[1].Name)
	require.Equal(t, 2, recent[1].Planned)
	require.Equal(t, 2, recent[1].Completed)
	require.Equal(t, "Sprint 2", recent[4].Name)
}

func TestDashboard(t *testing.T) {
	svc, db := setupTest(t)
	ctx := context.Background()

	seedSprint(t, db, "p-1", 0, models.SprintClosed, []int{5, 8}, 2)
	sp := seedSprint(t, db, "p-1", 1, models.SprintActive, []int{2, 2, 2, 2}, 1)
	svc.now = func() time.Time { return sp.StartDate.AddDate(0, 0, 12) }

	alice, bob, empty := "alice", "bob", ""
	for _, assignee := range []*string{&alice, &alice, &bob, &empty} {
		require.NoError(t, db.Create(&models.BacklogItem{ProjectID: "p-1", Title: "loose", Type: models.TypeTask, Status: models.ItemBacklog, Priority: 3, AssigneeUserID: assignee}).Error)
	}
	require.NoError(t, db.Create(&models.Impediment{ProjectID: "p-1", Title: "open", Severity: 2, Status: models.ImpedimentOpen}).Error)
	require.NoError(t, db.Create(&models.Impediment{ProjectID: "p-1", Title: "fixed", Severity: 2, Status: models.ImpedimentResolved}).Error)

	d, err := svc.Dashboard(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, d.ActiveSprint)
	require.Equal(t, sp.ID, d.ActiveSprint.ID)
	require.Equal(t, 13.0, d.Velocity)
	require.Equal(t, 25, d.ActiveSprintProgress)
	require.Equal(t, HealthBehind, d.SprintHealth)
	require.Equal(t, 10, d.TotalBacklogItems)
	require.Equal(t, 2, d.TeamSize)
	require.Equal(t, 1, d.OpenImpediments)
	require.Equal(t, 3, d.ItemsByStatus[models.ItemInSprint])
	require.Len(t, d.RecentSprints, 2)
}

func TestDashboard_NoActiveSprint(t *testing.T) {
	svc, _ := setupTest(t)

	d, err := svc.Dashboard(context.Background(), "p-1")
	require.NoError(t, err)
	require.Nil(t, d.ActiveSprint)
	require.Equal(t, HealthNone, d.SprintHealth)
	require.Zero(t, d.ActiveSprintProgress)
	require.Empty(t, d.RecentSprints)
	require.Zero(t, d.TeamSize)
}
