package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource fetches activities from the scheduling module's REST API at
// GET {BaseURL}/projects/{projectId}/wbs/activities.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Activities(ctx context.Context, projectID string) ([]Activity, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/wbs/activities", s.BaseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch wbs activities: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read wbs activities: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch wbs activities: schedule service returned %d", resp.StatusCode)
	}

	activities, err := decodeActivities(body)
	if err != nil {
		return nil, fmt.Errorf("decode wbs activities: %w", err)
	}

	out := activities[:0]
	for _, a := range activities {
		// Older schedule builds omit projectId on nested lists.
		if a.ProjectID == "" {
			a.ProjectID = projectID
		}
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

// decodeActivities accepts either a bare array or {"activities": [...]}.
func decodeActivities(body []byte) ([]Activity, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []Activity
		err := json.Unmarshal(body, &list)
		return list, err
	}
	var wrapped struct {
		Activities []Activity `json:"activities"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Activities, err
}
