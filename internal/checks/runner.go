// Package checks implements status check execution: the three check
// executors, the debounced pass/fail evaluation and the result store
// contract.
package checks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/google/uuid"
)

const (
	// recentResultsWindow bounds how much history feeds the debounce
	// calculation and the cached health summary.
	recentResultsWindow = 10

	defaultEndpointTimeout = 30 * time.Second

	// maxProbeBodyBytes caps how much of a probe response body is kept
	// as raw diagnostic data.
	maxProbeBodyBytes = 1 << 20

	metricFetchFailed = "Failed to get metric"
)

// Runner executes status checks and records their results. Runs for
// different checks are safe to execute concurrently: results are
// appended immutably and ordered by completion timestamp, so no
// per-check locking is needed.
type Runner struct {
	repo    Repository
	metrics MetricSource
	builds  BuildSource
	client  *http.Client

	now func() time.Time
}

// NewRunner creates a new check runner. client is used for endpoint
// probes; per-check timeouts are applied per request, so the client
// itself should not carry one.
func NewRunner(repo Repository, metrics MetricSource, builds BuildSource, client *http.Client) *Runner {
	if client == nil {
		client = &http.Client{}
	}
	return &Runner{
		repo:    repo,
		metrics: metrics,
		builds:  builds,
		client:  client,
		now:     time.Now,
	}
}

// Run executes the check once, records the result, and recomputes the
// check's calculated status from the result history including the
// result written by this run. Probe failures become failed results;
// only configuration mistakes (unsupported operator, unknown type)
// are returned as errors.
func (r *Runner) Run(ctx context.Context, check *domain.StatusCheck) (*domain.CheckResult, error) {
	result := &domain.CheckResult{
		ID:        uuid.NewString(),
		CheckID:   check.ID,
		StartedAt: r.now(),
	}

	var err error
	switch check.Type {
	case domain.CheckTypeMetric:
		err = r.runMetric(ctx, check, result)
	case domain.CheckTypeEndpoint:
		r.runEndpoint(ctx, check, result)
	case domain.CheckTypeBuild:
		r.runBuild(ctx, check, result)
	default:
		err = fmt.Errorf("unsupported check type %q", check.Type)
	}
	if err != nil {
		return nil, err
	}

	finish := r.now()
	result.CompletedAt = &finish

	if err := r.repo.CreateResult(ctx, result); err != nil {
		return nil, fmt.Errorf("record check result: %w", err)
	}

	recent, err := r.repo.RecentResults(ctx, check.ID, recentResultsWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent results: %w", err)
	}

	if DebouncedPassing(recent, check.Debounce) {
		check.Calculated = domain.CalculatedPassing
	} else {
		check.Calculated = domain.CalculatedFailing
	}
	check.CachedHealth = SerializeResults(recent)
	check.LastRun = &finish

	if err := r.repo.FinishRun(ctx, check); err != nil {
		return nil, fmt.Errorf("persist check state: %w", err)
	}

	recordCheckRun(string(check.Type), result.Succeeded, result.Took())
	return result, nil
}

// runMetric queries the metrics backend and compares the reduced series
// against the configured threshold.
func (r *Runner) runMetric(ctx context.Context, check *domain.StatusCheck, result *domain.CheckResult) error {
	p := check.Metric
	if !p.Operator.IsValid() {
		// A broken operator is a setup mistake needing human attention,
		// not a probe failure.
		return fmt.Errorf("check %s: unsupported comparison operator %q", check.Name, p.Operator)
	}

	series, err := r.metrics.Query(ctx, p.Target, time.Duration(check.Frequency)*time.Minute)
	if err != nil {
		result.Succeeded = false
		result.Error = metricFetchFailed
		return nil
	}

	failed := series.Error
	var failureValue *float64

	if series.NumSeriesWithData > 0 {
		switch p.Operator {
		case domain.OpLessThan:
			if series.Min < p.Threshold {
				failed = true
				failureValue = &series.Min
			}
		case domain.OpLessOrEqual:
			if series.Min <= p.Threshold {
				failed = true
				failureValue = &series.Min
			}
		case domain.OpGreaterThan:
			if series.Max > p.Threshold {
				failed = true
				failureValue = &series.Max
			}
		case domain.OpGreaterOrEqual:
			if series.Max >= p.Threshold {
				failed = true
				failureValue = &series.Max
			}
		case domain.OpEqual:
			for _, v := range series.AllValues {
				if v == p.Threshold {
					failed = true
					failureValue = &p.Threshold
					break
				}
			}
		}
	}

	// Too few series reporting is a failure in its own right, whatever
	// the values said.
	if series.NumSeriesWithData < p.ExpectedNumHosts {
		failed = true
	}

	result.RawData = string(series.Raw)
	result.Succeeded = !failed
	if failed {
		result.Error = formatMetricError(p, failureValue, series.NumSeriesWithData)
	}
	return nil
}

// formatMetricError renders the failure summary included in alerts,
// e.g. "5.0 > 4.0 | 1/2 hosts".
func formatMetricError(p *domain.MetricParams, failureValue *float64, actualHosts int) string {
	if failureValue == nil {
		return metricFetchFailed
	}
	hosts := ""
	if p.ExpectedNumHosts > 0 {
		hosts = fmt.Sprintf(" | %d/%d hosts", actualHosts, p.ExpectedNumHosts)
	}
	return fmt.Sprintf("%.1f %s %.1f%s", *failureValue, p.Operator, p.Threshold, hosts)
}

// runEndpoint issues a single GET against the configured URL with basic
// auth and a per-check timeout.
func (r *Runner) runEndpoint(ctx context.Context, check *domain.StatusCheck, result *domain.CheckResult) {
	p := check.Endpoint
	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = defaultEndpointTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.URL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request error occurred: %v", err)
		return
	}
	if p.Username != "" || p.Password != "" {
		req.SetBasicAuth(p.Username, p.Password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request error occurred: %v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodyBytes))
	if err != nil {
		result.Error = fmt.Sprintf("error reading response body: %v", err)
		return
	}

	if p.StatusCode != 0 && resp.StatusCode != p.StatusCode {
		result.Error = fmt.Sprintf("wrong status code: got %d (expected %d)", resp.StatusCode, p.StatusCode)
		result.RawData = string(body)
		return
	}

	if p.TextMatch != "" {
		re, err := regexp.Compile(p.TextMatch)
		if err != nil {
			result.Error = fmt.Sprintf("invalid match regex [%s]: %v", p.TextMatch, err)
			return
		}
		if !re.Match(body) {
			result.Error = fmt.Sprintf("failed to find match regex [%s] in response body", p.TextMatch)
			result.RawData = string(body)
			return
		}
	}

	result.Succeeded = true
}

// runBuild queries the build server for the job named after the check.
func (r *Runner) runBuild(ctx context.Context, check *domain.StatusCheck, result *domain.CheckResult) {
	status, err := r.builds.JobStatus(ctx, check.Name)
	switch {
	case errors.Is(err, ErrJobNotFound):
		result.Error = fmt.Sprintf("job %s not found on build server", check.Name)
		return
	case err != nil:
		// A flaky build server must not mass-fail every dependent
		// service, so unexpected backend errors count as a pass with a
		// diagnostic note.
		result.Succeeded = true
		result.Error = "error fetching job status from build server"
		return
	}

	if !status.Active {
		result.Error = fmt.Sprintf("job %s disabled on build server", check.Name)
		return
	}

	succeeded := status.Succeeded
	if limit := check.Build.MaxQueuedBuildTime; limit > 0 && status.BlockedBuildTime != nil {
		if *status.BlockedBuildTime > float64(limit*60) {
			succeeded = false
			result.Error = fmt.Sprintf("job %q has blocked build waiting for %ds (> %dm)",
				check.Name, int(*status.BlockedBuildTime), limit)
		}
	}
	if !status.Succeeded {
		msg := fmt.Sprintf("job %q failing", check.Name)
		if result.Error != "" {
			result.Error += "; " + msg
		} else {
			result.Error = msg
		}
		result.RawData = string(status.Raw)
	}
	result.Succeeded = succeeded
}
