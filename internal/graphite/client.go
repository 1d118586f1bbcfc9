// Package graphite implements the metrics source against the Graphite
// render API.
package graphite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bissquit/status-garden/internal/checks"
)

const defaultTimeout = 30 * time.Second

// Config holds Graphite client configuration.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client queries the Graphite render API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Graphite client.
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

// renderSeries mirrors one series in the render API JSON response.
// Datapoints are [value, timestamp] pairs; value is null for empty
// buckets.
type renderSeries struct {
	Target     string       `json:"target"`
	Datapoints [][]*float64 `json:"datapoints"`
}

// Query fetches the target expression over the lookback window and
// reduces it for threshold evaluation. Backend failures come back as
// MetricSeries.Error rather than a Go error so callers can distinguish
// them from transport problems.
func (c *Client) Query(ctx context.Context, target string, lookback time.Duration) (*checks.MetricSeries, error) {
	params := url.Values{}
	params.Set("target", target)
	params.Set("from", fmt.Sprintf("-%dmin", int(lookback.Minutes())))
	params.Set("format", "json")

	reqURL := fmt.Sprintf("%s/render/?%s", c.config.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query graphite: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("graphite render failed",
			"target", target,
			"status", resp.StatusCode,
		)
		return &checks.MetricSeries{Error: true, Raw: body}, nil
	}

	var series []renderSeries
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}

	return reduce(series, body), nil
}

// reduce flattens the render response into the aggregate view threshold
// checks evaluate against.
func reduce(series []renderSeries, raw json.RawMessage) *checks.MetricSeries {
	result := &checks.MetricSeries{Raw: raw}

	var sum float64
	for _, s := range series {
		hasData := false
		for _, point := range s.Datapoints {
			if len(point) < 1 || point[0] == nil {
				continue
			}
			v := *point[0]

			if !hasData {
				hasData = true
			}
			if len(result.AllValues) == 0 {
				result.Min = v
				result.Max = v
			} else {
				if v < result.Min {
					result.Min = v
				}
				if v > result.Max {
					result.Max = v
				}
			}
			result.AllValues = append(result.AllValues, v)
			sum += v
		}
		if hasData {
			result.NumSeriesWithData++
		}
	}

	if len(result.AllValues) > 0 {
		result.Average = sum / float64(len(result.AllValues))
	}
	return result
}
