package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"agile-tracker-api/internal/apperr"
	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/schedule"
	"agile-tracker-api/internal/services/backlog"
	"agile-tracker-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var activities = schedule.Static{List: []schedule.Activity{
	{ID: "a-3", ProjectID: "p-1", Name: "Roofing", Code: "1.3", Status: "NOT_STARTED"},
	{ID: "a-1", ProjectID: "p-1", Name: "Excavation", Code: "1.1", Status: "IN_PROGRESS"},
	{ID: "a-2", ProjectID: "p-1", Name: "", Code: "1.2"},
	{ID: "a-9", ProjectID: "p-2", Name: "Other site", Code: "9.1"},
}}

func setupTest(t *testing.T) (Service, backlog.Service, *gorm.DB) {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	items := backlog.NewService(db, nil)
	return NewService(db, items, activities, nil), items, db
}

type failingSource struct{}

func (failingSource) Activities(context.Context, string) ([]schedule.Activity, error) {
	return nil, errors.New("schedule unavailable")
}

func TestVirtualItems_ExcludesLinkedAndSortsByCode(t *testing.T) {
	svc, _, _ := setupTest(t)
	ctx := context.Background()

	_, created, err := svc.Convert(ctx, "p-1", "a-1")
	require.NoError(t, err)
	require.True(t, created)

	virtual, err := svc.VirtualItems(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, virtual, 2)
	require.Equal(t, "a-2", virtual[0].LinkedWbsActivityID)
	require.Equal(t, "1.2", virtual[0].Title)
	require.Equal(t, "a-3", virtual[1].LinkedWbsActivityID)
	require.Equal(t, "Roofing", virtual[1].Title)
}

func TestListBacklogWithVirtualItems(t *testing.T) {
	svc, items, _ := setupTest(t)
	ctx := context.Background()

	_, err := items.Create(ctx, backlog.CreateRequest{ProjectID: "p-1", Title: "Site survey", Priority: 5})
	require.NoError(t, err)
	converted, _, err := svc.Convert(ctx, "p-1", "a-3")
	require.NoError(t, err)

	entries, err := svc.ListBacklogWithVirtualItems(ctx, "p-1", backlog.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.False(t, entries[0].IsVirtual())
	require.Equal(t, "Site survey", entries[0].Item.Title)
	require.False(t, entries[1].IsVirtual())
	require.Equal(t, converted.ID, entries[1].Item.ID)
	require.True(t, entries[2].IsVirtual())
	require.Equal(t, "a-1", entries[2].Virtual.LinkedWbsActivityID)
	require.True(t, entries[3].IsVirtual())
	require.Equal(t, "a-2", entries[3].Virtual.LinkedWbsActivityID)

	filtered, err := svc.ListBacklogWithVirtualItems(ctx, "p-1", backlog.Filter{Status: models.ItemBacklog})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, e := range filtered {
		require.False(t, e.IsVirtual())
	}
}

func TestListBacklogWithVirtualItems_SourceFailure(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	svc := NewService(db, backlog.NewService(db, nil), failingSource{}, nil)

	_, err = svc.ListBacklogWithVirtualItems(context.Background(), "p-1", backlog.Filter{})
	require.Error(t, err)
}

func TestConvert_Defaults(t *testing.T) {
	svc, _, _ := setupTest(t)

	item, created, err := svc.Convert(context.Background(), "p-1", "a-1")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Excavation", item.Title)
	require.Equal(t, models.TypeTask, item.Type)
	require.Equal(t, models.ItemBacklog, item.Status)
	require.Equal(t, models.DefaultPriority, item.Priority)
	require.NotNil(t, item.LinkedWbsActivityID)
	require.Equal(t, "a-1", *item.LinkedWbsActivityID)
}

func TestConvert_IsIdempotent(t *testing.T) {
	svc, _, db := setupTest(t)
	ctx := context.Background()

	first, created, err := svc.Convert(ctx, "p-1", "a-1")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Convert(ctx, "p-1", "a-1")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.BacklogItem{}).Where("linked_wbs_activity_id = ?", "a-1").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestConvert_ConcurrentCallsCreateOneItem(t *testing.T) {
	svc, _, db := setupTest(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item, _, err := svc.Convert(ctx, "p-1", "a-3")
			errs[i] = err
			if item != nil {
				ids[i] = item.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, db.Model(&models.BacklogItem{}).Where("linked_wbs_activity_id = ?", "a-3").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestConvert_Errors(t *testing.T) {
	svc, _, _ := setupTest(t)
	ctx := context.Background()

	_, _, err := svc.Convert(ctx, "p-1", "missing")
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.Equal(t, "not_found", apperr.Code(err))

	// a-9 belongs to p-2; p-1 cannot see it.
	_, _, err = svc.Convert(ctx, "p-1", "a-9")
	require.ErrorIs(t, err, ErrActivityNotFound)

	_, _, err = svc.Convert(ctx, "p-2", "a-9")
	require.NoError(t, err)
	_, _, err = svc.Convert(ctx, "p-1", "a-9")
	require.ErrorIs(t, err, ErrForeignActivity)

	_, _, err = svc.Convert(ctx, "p-1", " ")
	require.ErrorIs(t, err, ErrMissingActivity)
}

func TestVirtualItems_ConcurrentOverCachedSource(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	list := make([]schedule.Activity, 0, 200)
	for i := 200; i > 0; i-- {
		list = append(list, schedule.Activity{ID: fmt.Sprintf("a-%03d", i), ProjectID: "p-1", Code: fmt.Sprintf("%03d", i)})
	}
	src := schedule.NewCached(schedule.Static{List: list}, time.Minute)
	svc := NewService(db, backlog.NewService(db, nil), src, nil)

	results := make([][]models.VirtualBacklogItem, 8)
	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.VirtualItems(context.Background(), "p-1")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 200)
		seen := make(map[string]bool, 200)
		for j, v := range results[i] {
			require.Equal(t, fmt.Sprintf("a-%03d", j+1), v.LinkedWbsActivityID)
			require.False(t, seen[v.LinkedWbsActivityID])
			seen[v.LinkedWbsActivityID] = true
		}
	}
}

type growingSource struct {
	mu   sync.Mutex
	list []schedule.Activity
	hits int
}

func (g *growingSource) Activities(_ context.Context, projectID string) ([]schedule.Activity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hits++
	out := make([]schedule.Activity, 0, len(g.list))
	for _, a := range g.list {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (g *growingSource) add(a schedule.Activity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.list = append(g.list, a)
}

func TestConvert_RefreshesStaleCache(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	src := &growingSource{list: []schedule.Activity{{ID: "a-1", ProjectID: "p-1", Name: "Excavation", Code: "1.1"}}}
	svc := NewService(db, backlog.NewService(db, nil), schedule.NewCached(src, time.Hour), nil)

	virtual, err := svc.VirtualItems(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, virtual, 1)

	src.add(schedule.Activity{ID: "a-2", ProjectID: "p-1", Name: "Framing", Code: "1.2"})

	item, created, err := svc.Convert(context.Background(), "p-1", "a-2")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Framing", item.Title)
	require.Equal(t, 2, src.hits)

	_, _, err = svc.Convert(context.Background(), "p-1", "a-404")
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.Equal(t, 3, src.hits)
}
