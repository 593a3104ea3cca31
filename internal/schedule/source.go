// Package schedule reads WBS activities from the scheduling module. The agile
// tracker never writes schedule data; it only projects activities into the
// backlog.
package schedule

import (
	"context"
	"slices"
	"sort"
	"time"

	"agile-tracker-api/internal/cache"
)

// Activity is a WBS schedule activity as exposed by the scheduling module
type Activity struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Status    string `json:"status"`
}

// Source lists the WBS activities of a project.
type Source interface {
	Activities(ctx context.Context, projectID string) ([]Activity, error)
}

// Find returns the activity with the given id, if the project has one.
func Find(ctx context.Context, src Source, projectID, activityID string) (*Activity, error) {
	activities, err := src.Activities(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range activities {
		if activities[i].ID == activityID {
			return &activities[i], nil
		}
	}
	return nil, nil
}

// SortByCode orders activities by WBS code, then id.
func SortByCode(activities []Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].Code != activities[j].Code {
			return activities[i].Code < activities[j].Code
		}
		return activities[i].ID < activities[j].ID
	})
}

// Static serves a fixed set of activities. The zero value serves none.
type Static struct {
	List []Activity
}

func (s Static) Activities(_ context.Context, projectID string) ([]Activity, error) {
	out := make([]Activity, 0, len(s.List))
	for _, a := range s.List {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Cached wraps a Source with a per-project TTL cache.
type Cached struct {
	src   Source
	cache *cache.TTL[string, []Activity]
}

func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{src: src, cache: cache.NewTTL[string, []Activity](ttl)}
}

// Activities returns a copy of the cached list so callers may sort or
// modify it freely.
func (c *Cached) Activities(ctx context.Context, projectID string) ([]Activity, error) {
	list, err := c.cache.GetOrLoad(projectID, func() ([]Activity, error) {
		return c.src.Activities(ctx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(list), nil
}

// Invalidate drops the cached activities of a project so the next read
// goes to the underlying source.
func (c *Cached) Invalidate(projectID string) {
	c.cache.Invalidate(projectID)
}
