package grimoirelab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

// Datasource defaults used when scheduling git repositories.
const (
	DatasourceGit  = "git"
	CategoryCommit = "commit"
)

// Task statuses reported by the backend.
const (
	StatusFailed = "failed"
)

const alreadyExists = "already exists"

// Task is the collection task attached to a repository.
type Task struct {
	Status string
	// LastRun is zero when the task never ran.
	LastRun time.Time
}

// Failed reports whether the last collection attempt failed.
func (t Task) Failed() bool {
	return strings.EqualFold(t.Status, StatusFailed)
}

// ScheduleRepository asks the backend to collect uri. A repository that is
// already registered is not an error.
func (c *Client) ScheduleRepository(ctx context.Context, uri, datasource, category string) error {
	payload, err := json.Marshal(map[string]string{
		"uri":                 uri,
		"datasource_type":     datasource,
		"datasource_category": category,
	})
	if err != nil {
		return fmt.Errorf("encode repository: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, pathAddRepository, nil, payload)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusMethodNotAllowed && isAlreadyExists(body) {
		c.logger.DebugContext(ctx, "repository already scheduled", "uri", uri)

		return nil
	}

	return fmt.Errorf("schedule %s: %w", uri, err)
}

func isAlreadyExists(body []byte) bool {
	var resp struct {
		Error string `json:"error"`
	}

	if json.Unmarshal(body, &resp) != nil {
		return false
	}

	return strings.Contains(resp.Error, alreadyExists)
}

type repositoriesResponse struct {
	Results []struct {
		Task *struct {
			Status  string  `json:"status"`
			LastRun *string `json:"last_run"`
		} `json:"task"`
	} `json:"results"`
}

// RepositoryTask returns the collection task of a registered repository.
func (c *Client) RepositoryTask(ctx context.Context, uri string) (Task, error) {
	body, err := c.do(ctx, http.MethodGet, pathRepositories, url.Values{"uri": {uri}}, nil)
	if err != nil {
		return Task{}, fmt.Errorf("repository status %s: %w", uri, err)
	}

	var resp repositoriesResponse

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return Task{}, fmt.Errorf("decode repository status: %w", err)
	}

	if len(resp.Results) == 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrRepositoryNotFound, uri)
	}

	raw := resp.Results[0].Task
	if raw == nil {
		return Task{}, nil
	}

	task := Task{Status: raw.Status}

	if raw.LastRun != nil {
		if ts, ok := events.ParseDate(*raw.LastRun); ok {
			task.LastRun = ts
		}
	}

	return task, nil
}
