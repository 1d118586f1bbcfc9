// Package calendar fetches the on-call schedule from an external
// calendar feed.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bissquit/status-garden/internal/oncall"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
)

// Config holds calendar client configuration.
type Config struct {
	FeedURL string
	Timeout time.Duration
}

// Client fetches on-call events from a JSON calendar feed. Transient
// fetch failures are retried with exponential backoff.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new calendar client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// feedEvent mirrors one entry in the feed JSON.
type feedEvent struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Events fetches the schedule and returns it as on-call events.
func (c *Client) Events(ctx context.Context) ([]oncall.Event, error) {
	var events []oncall.Event

	operation := func() error {
		fetched, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		events = fetched
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetch calendar feed: %w", err)
	}
	return events, nil
}

func (c *Client) fetch(ctx context.Context) ([]oncall.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.FeedURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("feed returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var feed []feedEvent
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode feed: %w", err))
	}

	events := make([]oncall.Event, 0, len(feed))
	for _, e := range feed {
		events = append(events, oncall.Event{
			UID:     e.UID,
			Summary: e.Summary,
			Start:   e.Start,
			End:     e.End,
		})
	}
	return events, nil
}
