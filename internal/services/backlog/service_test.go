package backlog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agile-tracker-api/internal/apperr"
	"agile-tracker-api/internal/models"
	"agile-tracker-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTest(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	return NewService(db, nil), db
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func mustCreate(t *testing.T, svc Service, req CreateRequest) *models.BacklogItem {
	t.Helper()
	item, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	return item
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := setupTest(t)
	item := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "  Pour foundation  "})

	require.NotEmpty(t, item.ID)
	require.Equal(t, "Pour foundation", item.Title)
	require.Equal(t, models.TypeTask, item.Type)
	require.Equal(t, models.ItemBacklog, item.Status)
	require.Equal(t, models.DefaultPriority, item.Priority)
	require.False(t, item.IsClassified)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"missing project", CreateRequest{Title: "x"}, ErrMissingProjectID},
		{"empty title", CreateRequest{ProjectID: "p-1", Title: "   "}, ErrEmptyTitle},
		{"bad type", CreateRequest{ProjectID: "p-1", Title: "x", Type: "FEATURE"}, ErrInvalidType},
		{"bad status", CreateRequest{ProjectID: "p-1", Title: "x", Status: "todo"}, ErrInvalidStatus},
		{"priority too high", CreateRequest{ProjectID: "p-1", Title: "x", Priority: 6}, ErrInvalidPriority},
		{"priority negative", CreateRequest{ProjectID: "p-1", Title: "x", Priority: -1}, ErrInvalidPriority},
		{"negative points", CreateRequest{ProjectID: "p-1", Title: "x", StoryPoints: intPtr(-3)}, ErrNegativePoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreate_ClassifiedWhenFlagsGiven(t *testing.T) {
	svc, _ := setupTest(t)
	urgent := true
	item := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Crane permit", IsUrgent: &urgent})
	require.True(t, item.IsClassified)
	require.True(t, item.IsUrgent)
	require.False(t, item.IsImportant)
	require.Equal(t, models.QuadrantDelegate, item.Quadrant())
}

func TestCreate_ParentMustBeInSameProject(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()
	foreign := mustCreate(t, svc, CreateRequest{ProjectID: "p-2", Title: "Other epic", Type: models.TypeEpic})

	_, err := svc.Create(ctx, CreateRequest{ProjectID: "p-1", Title: "Child", ParentID: &foreign.ID})
	require.ErrorIs(t, err, ErrParentNotFound)

	_, err = svc.Create(ctx, CreateRequest{ProjectID: "p-1", Title: "Child", ParentID: strPtr("nope")})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	epic := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Epic", Type: models.TypeEpic})
	child := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Child", ParentID: &epic.ID})
	require.Equal(t, epic.ID, *child.ParentID)
}

func TestUpdate_RejectsCycles(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()

	epic := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Epic", Type: models.TypeEpic})
	story := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Story", Type: models.TypeStory, ParentID: &epic.ID})
	task := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Task", ParentID: &story.ID})

	_, err := svc.Update(ctx, "p-1", epic.ID, UpdateRequest{ParentID: &task.ID})
	require.ErrorIs(t, err, ErrParentCycle)

	_, err = svc.Update(ctx, "p-1", epic.ID, UpdateRequest{ParentID: &epic.ID})
	require.ErrorIs(t, err, ErrSelfParent)

	// The rejected update must leave the epic a root.
	got, err := svc.Get(ctx, "p-1", epic.ID)
	require.NoError(t, err)
	require.Nil(t, got.ParentID)

	// Moving the task directly under the epic is fine.
	moved, err := svc.Update(ctx, "p-1", task.ID, UpdateRequest{ParentID: &epic.ID})
	require.NoError(t, err)
	require.Equal(t, epic.ID, *moved.ParentID)

	detached, err := svc.Update(ctx, "p-1", task.ID, UpdateRequest{ClearParent: true})
	require.NoError(t, err)
	require.Nil(t, detached.ParentID)
}

func TestUpdate_WalkIsBoundedOnCorruptChain(t *testing.T) {
	svc, db := setupTest(t)
	ctx := context.Background()

	a := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "A"})
	b := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "B", ParentID: &a.ID})
	// Corrupt the data behind the service's back: A <-> B.
	require.NoError(t, db.Model(&models.BacklogItem{}).Where("id = ?", a.ID).Update("parent_id", b.ID).Error)

	c := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "C"})
	_, err := svc.Update(ctx, "p-1", c.ID, UpdateRequest{ParentID: &a.ID})
	require.ErrorIs(t, err, ErrParentCycle)
}

func TestUpdate_FieldsAndValidation(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()
	item := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Rebar order"})

	ready := models.ItemReady
	updated, err := svc.Update(ctx, "p-1", item.ID, UpdateRequest{
		Title:       strPtr("Rebar order #2"),
		Status:      &ready,
		Priority:    intPtr(5),
		StoryPoints: intPtr(8),
	})
	require.NoError(t, err)
	require.Equal(t, "Rebar order #2", updated.Title)
	require.Equal(t, models.ItemReady, updated.Status)
	require.Equal(t, 5, updated.Priority)
	require.Equal(t, 8, *updated.StoryPoints)

	_, err = svc.Update(ctx, "p-1", item.ID, UpdateRequest{Priority: intPtr(0)})
	require.ErrorIs(t, err, ErrInvalidPriority)

	_, err = svc.Update(ctx, "p-2", item.ID, UpdateRequest{Title: strPtr("x")})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestList_OrderAndFilters(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()

	low := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "low", Priority: 1})
	first := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "high-1", Priority: 5, Type: models.TypeBug})
	second := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "high-2", Priority: 5})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-2", Title: "other project", Priority: 5})

	items, err := svc.List(ctx, "p-1", Filter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, []string{first.ID, second.ID, low.ID}, []string{items[0].ID, items[1].ID, items[2].ID})

	bugs, err := svc.List(ctx, "p-1", Filter{Type: models.TypeBug})
	require.NoError(t, err)
	require.Len(t, bugs, 1)
	require.Equal(t, first.ID, bugs[0].ID)

	_, err = svc.List(ctx, "p-1", Filter{Status: "NOPE"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDelete_Constraints(t *testing.T) {
	svc, db := setupTest(t)
	ctx := context.Background()

	epic := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Epic", Type: models.TypeEpic})
	child := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Child", ParentID: &epic.ID})

	err := svc.Delete(ctx, "p-1", epic.ID)
	require.ErrorIs(t, err, apperr.ErrConstraint)
	require.Contains(t, err.Error(), "child")

	require.NoError(t, db.Create(&models.SprintItem{SprintID: "s-1", BacklogItemID: child.ID, BoardStatus: models.BoardTodo}).Error)
	err = svc.Delete(ctx, "p-1", child.ID)
	require.ErrorIs(t, err, apperr.ErrConstraint)
	require.Contains(t, err.Error(), "sprint")

	require.NoError(t, db.Where("backlog_item_id = ?", child.ID).Delete(&models.SprintItem{}).Error)
	require.NoError(t, svc.Delete(ctx, "p-1", child.ID))
	require.NoError(t, svc.Delete(ctx, "p-1", epic.ID))

	_, err = svc.Get(ctx, "p-1", epic.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestChildren(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()
	story := mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Story", Type: models.TypeStory})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Task A", ParentID: &story.ID})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Task B", ParentID: &story.ID})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Loose"})

	children, err := svc.Children(ctx, "p-1", story.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	_, err = svc.Children(ctx, "p-1", "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestSearch_FuzzyTitles(t *testing.T) {
	svc, _ := setupTest(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Install drywall"})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Order windows"})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-1", Title: "Drywall taping"})
	mustCreate(t, svc, CreateRequest{ProjectID: "p-2", Title: "Drywall elsewhere"})

	found, err := svc.Search(ctx, "p-1", "drywall", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, item := range found {
		require.Equal(t, "p-1", item.ProjectID)
		require.Contains(t, strings.ToLower(item.Title), "drywall")
	}

	found, err = svc.Search(ctx, "p-1", "drywall", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = svc.Search(ctx, "p-1", "   ", 0)
	require.NoError(t, err)
	require.Empty(t, found)
}
