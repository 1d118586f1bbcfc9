// Package jenkins implements the build source against the Jenkins JSON
// API.
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/status-garden/internal/checks"
)

const defaultTimeout = 30 * time.Second

// Config holds Jenkins client configuration.
type Config struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
}

// Client queries the Jenkins job API.
type Client struct {
	config     Config
	httpClient *http.Client

	// now is swappable for tests of queue wait computation.
	now func() time.Time
}

// NewClient creates a new Jenkins client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		now: time.Now,
	}
}

// jobResponse mirrors the fields we need from /job/<name>/api/json.
type jobResponse struct {
	Buildable bool   `json:"buildable"`
	Color     string `json:"color"`
	InQueue   bool   `json:"inQueue"`
	QueueItem *struct {
		// InQueueSince is epoch milliseconds.
		InQueueSince int64 `json:"inQueueSince"`
	} `json:"queueItem"`
}

// JobStatus fetches the current state of a job. A 404 from Jenkins
// surfaces as checks.ErrJobNotFound.
func (c *Client) JobStatus(ctx context.Context, job string) (*checks.BuildStatus, error) {
	reqURL := fmt.Sprintf("%s/job/%s/api/json", c.config.BaseURL, url.PathEscape(job))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query jenkins: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("job %s: %w", job, checks.ErrJobNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jenkins returned status %d for job %s", resp.StatusCode, job)
	}

	var jr jobResponse
	if err := json.Unmarshal(body, &jr); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}

	status := &checks.BuildStatus{
		Active: jr.Buildable,
		// Any shade of red means the last build failed. Yellow
		// (unstable) still counts as a pass.
		Succeeded: !strings.HasPrefix(jr.Color, "red"),
		Raw:       body,
	}

	if jr.InQueue && jr.QueueItem != nil && jr.QueueItem.InQueueSince > 0 {
		queuedAt := time.UnixMilli(jr.QueueItem.InQueueSince)
		waited := c.now().Sub(queuedAt).Seconds()
		status.BlockedBuildTime = &waited
	}

	return status, nil
}
