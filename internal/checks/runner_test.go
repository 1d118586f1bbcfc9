package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository covering what Run touches.
type fakeRepo struct {
	results  []domain.CheckResult
	finished *domain.StatusCheck

	createErr error
}

func (f *fakeRepo) CreateCheck(context.Context, *domain.StatusCheck) error { return nil }
func (f *fakeRepo) GetCheck(context.Context, string) (*domain.StatusCheck, error) {
	return nil, ErrCheckNotFound
}
func (f *fakeRepo) ListChecks(context.Context) ([]domain.StatusCheck, error) { return nil, nil }
func (f *fakeRepo) ListDueChecks(context.Context, time.Time) ([]domain.StatusCheck, error) {
	return nil, nil
}

func (f *fakeRepo) CreateResult(_ context.Context, result *domain.CheckResult) error {
	if f.createErr != nil {
		return f.createErr
	}
	// newest first, matching the real repository's ordering
	f.results = append([]domain.CheckResult{*result}, f.results...)
	return nil
}

func (f *fakeRepo) RecentResults(_ context.Context, _ string, limit int) ([]domain.CheckResult, error) {
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *fakeRepo) FinishRun(_ context.Context, check *domain.StatusCheck) error {
	f.finished = check
	return nil
}

func (f *fakeRepo) ServicesForCheck(context.Context, string) ([]string, error) { return nil, nil }

type fakeMetrics struct {
	series *MetricSeries
	err    error
}

func (f *fakeMetrics) Query(context.Context, string, time.Duration) (*MetricSeries, error) {
	return f.series, f.err
}

type fakeBuilds struct {
	status *BuildStatus
	err    error
}

func (f *fakeBuilds) JobStatus(context.Context, string) (*BuildStatus, error) {
	return f.status, f.err
}

func metricCheck(op domain.Operator, threshold float64, hosts int) *domain.StatusCheck {
	return &domain.StatusCheck{
		ID:         "chk-1",
		Type:       domain.CheckTypeMetric,
		Name:       "cpu load",
		Active:     true,
		Importance: domain.StatusError,
		Frequency:  5,
		Metric: &domain.MetricParams{
			Target:           "servers.*.cpu",
			Operator:         op,
			Threshold:        threshold,
			ExpectedNumHosts: hosts,
		},
	}
}

func TestRunner_Metric(t *testing.T) {
	tests := []struct {
		name      string
		check     *domain.StatusCheck
		series    *MetricSeries
		queryErr  error
		succeeded bool
		errMsg    string
	}{
		{
			name:      "value under threshold passes",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 0),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 2.0, Max: 3.0, AllValues: []float64{2.0, 3.0}},
			succeeded: true,
		},
		{
			name:      "max over threshold fails",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 0),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 2.0, Max: 5.0, AllValues: []float64{2.0, 5.0}},
			succeeded: false,
			errMsg:    "5.0 > 4.0",
		},
		{
			name:      "min under threshold fails for less-than",
			check:     metricCheck(domain.OpLessThan, 1.0, 0),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 0.5, Max: 2.0, AllValues: []float64{0.5, 2.0}},
			succeeded: false,
			errMsg:    "0.5 < 1.0",
		},
		{
			name:      "equal matches a value",
			check:     metricCheck(domain.OpEqual, 3.0, 0),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 1.0, Max: 3.0, AllValues: []float64{1.0, 3.0}},
			succeeded: false,
			errMsg:    "3.0 == 3.0",
		},
		{
			name:      "equal with no matching value passes",
			check:     metricCheck(domain.OpEqual, 3.0, 0),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 1.0, Max: 2.0, AllValues: []float64{1.0, 2.0}},
			succeeded: true,
		},
		{
			name:      "too few hosts fails even with healthy values",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 2),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 1.0, Max: 2.0, AllValues: []float64{1.0, 2.0}},
			succeeded: false,
			errMsg:    metricFetchFailed,
		},
		{
			name:      "host count appended to threshold breach",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 2),
			series:    &MetricSeries{NumSeriesWithData: 1, Min: 1.0, Max: 5.0, AllValues: []float64{1.0, 5.0}},
			succeeded: false,
			errMsg:    "5.0 > 4.0 | 1/2 hosts",
		},
		{
			name:      "backend reported error fails",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 0),
			series:    &MetricSeries{Error: true},
			succeeded: false,
			errMsg:    metricFetchFailed,
		},
		{
			name:      "transport failure fails without propagating",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 0),
			queryErr:  errors.New("connection refused"),
			succeeded: false,
			errMsg:    metricFetchFailed,
		},
		{
			name:      "no data with no host floor passes",
			check:     metricCheck(domain.OpGreaterThan, 4.0, 0),
			series:    &MetricSeries{},
			succeeded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			runner := NewRunner(repo, &fakeMetrics{series: tt.series, err: tt.queryErr}, &fakeBuilds{}, nil)

			result, err := runner.Run(context.Background(), tt.check)
			require.NoError(t, err)

			assert.Equal(t, tt.succeeded, result.Succeeded)
			assert.Equal(t, tt.errMsg, result.Error)
			require.NotNil(t, result.CompletedAt)
		})
	}
}

func TestRunner_Metric_UnsupportedOperator(t *testing.T) {
	repo := &fakeRepo{}
	runner := NewRunner(repo, &fakeMetrics{}, &fakeBuilds{}, nil)

	check := metricCheck(domain.Operator("~"), 4.0, 0)
	_, err := runner.Run(context.Background(), check)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported comparison operator")
	// Nothing must be written for a misconfigured check.
	assert.Empty(t, repo.results)
}

func TestRunner_Run_UpdatesCalculatedStatus(t *testing.T) {
	repo := &fakeRepo{}
	// Two failures already on record, newest first.
	repo.results = []domain.CheckResult{{Succeeded: false}, {Succeeded: false}}

	runner := NewRunner(repo, &fakeMetrics{series: &MetricSeries{Error: true}}, &fakeBuilds{}, nil)

	check := metricCheck(domain.OpGreaterThan, 4.0, 0)
	check.Debounce = 2

	_, err := runner.Run(context.Background(), check)
	require.NoError(t, err)

	// Third consecutive failure exhausts a debounce of 2.
	assert.Equal(t, domain.CalculatedFailing, check.Calculated)
	assert.Equal(t, "-1,-1,-1", check.CachedHealth)
	require.NotNil(t, check.LastRun)
	require.NotNil(t, repo.finished)
}

func TestRunner_Run_DebounceAbsorbsNewFailure(t *testing.T) {
	repo := &fakeRepo{}
	repo.results = []domain.CheckResult{{Succeeded: true}}

	runner := NewRunner(repo, &fakeMetrics{series: &MetricSeries{Error: true}}, &fakeBuilds{}, nil)

	check := metricCheck(domain.OpGreaterThan, 4.0, 0)
	check.Debounce = 1

	_, err := runner.Run(context.Background(), check)
	require.NoError(t, err)

	// The new failure lands inside the window but the older success
	// keeps the check passing.
	assert.Equal(t, domain.CalculatedPassing, check.Calculated)
}

func endpointCheck(url string, statusCode int, textMatch string) *domain.StatusCheck {
	return &domain.StatusCheck{
		ID:         "chk-2",
		Type:       domain.CheckTypeEndpoint,
		Name:       "homepage",
		Active:     true,
		Importance: domain.StatusCritical,
		Frequency:  5,
		Endpoint: &domain.EndpointParams{
			URL:            url,
			StatusCode:     statusCode,
			TextMatch:      textMatch,
			TimeoutSeconds: 5,
		},
	}
}

func TestRunner_Endpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, "all systems operational")
		case "/teapot":
			w.WriteHeader(http.StatusTeapot)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tests := []struct {
		name      string
		check     *domain.StatusCheck
		succeeded bool
		errMsg    string
	}{
		{
			name:      "matching status and body",
			check:     endpointCheck(server.URL+"/ok", http.StatusOK, "operational"),
			succeeded: true,
		},
		{
			name:      "wrong status code",
			check:     endpointCheck(server.URL+"/teapot", http.StatusOK, ""),
			succeeded: false,
			errMsg:    "wrong status code: got 418 (expected 200)",
		},
		{
			name:      "body does not match regex",
			check:     endpointCheck(server.URL+"/ok", http.StatusOK, "on fire"),
			succeeded: false,
			errMsg:    "failed to find match regex [on fire] in response body",
		},
		{
			name:      "no expectations just needs a response",
			check:     endpointCheck(server.URL+"/teapot", 0, ""),
			succeeded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			runner := NewRunner(repo, &fakeMetrics{}, &fakeBuilds{}, server.Client())

			result, err := runner.Run(context.Background(), tt.check)
			require.NoError(t, err)

			assert.Equal(t, tt.succeeded, result.Succeeded)
			assert.Equal(t, tt.errMsg, result.Error)
		})
	}
}

func TestRunner_Endpoint_ConnectionRefused(t *testing.T) {
	repo := &fakeRepo{}
	runner := NewRunner(repo, &fakeMetrics{}, &fakeBuilds{}, nil)

	check := endpointCheck("http://127.0.0.1:1/nothing", http.StatusOK, "")
	result, err := runner.Run(context.Background(), check)
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Error, "request error occurred")
}

func buildCheck(maxQueued int) *domain.StatusCheck {
	return &domain.StatusCheck{
		ID:         "chk-3",
		Type:       domain.CheckTypeBuild,
		Name:       "deploy-pipeline",
		Active:     true,
		Importance: domain.StatusWarning,
		Frequency:  5,
		Build:      &domain.BuildParams{MaxQueuedBuildTime: maxQueued},
	}
}

func TestRunner_Build(t *testing.T) {
	blocked := 200.0

	tests := []struct {
		name      string
		check     *domain.StatusCheck
		status    *BuildStatus
		err       error
		succeeded bool
		errMsg    string
	}{
		{
			name:      "green job passes",
			check:     buildCheck(0),
			status:    &BuildStatus{Active: true, Succeeded: true},
			succeeded: true,
		},
		{
			name:      "failing job fails",
			check:     buildCheck(0),
			status:    &BuildStatus{Active: true, Succeeded: false},
			succeeded: false,
			errMsg:    `job "deploy-pipeline" failing`,
		},
		{
			name:      "unknown job fails hard",
			check:     buildCheck(0),
			err:       fmt.Errorf("job deploy-pipeline: %w", ErrJobNotFound),
			succeeded: false,
			errMsg:    "job deploy-pipeline not found on build server",
		},
		{
			name:      "backend hiccup counts as pass with note",
			check:     buildCheck(0),
			err:       errors.New("502 bad gateway"),
			succeeded: true,
			errMsg:    "error fetching job status from build server",
		},
		{
			name:      "disabled job fails",
			check:     buildCheck(0),
			status:    &BuildStatus{Active: false, Succeeded: true},
			succeeded: false,
			errMsg:    "job deploy-pipeline disabled on build server",
		},
		{
			name:      "blocked build over limit fails a green job",
			check:     buildCheck(2),
			status:    &BuildStatus{Active: true, Succeeded: true, BlockedBuildTime: &blocked},
			succeeded: false,
			errMsg:    `job "deploy-pipeline" has blocked build waiting for 200s (> 2m)`,
		},
		{
			name:      "blocked build and failing job both reported",
			check:     buildCheck(2),
			status:    &BuildStatus{Active: true, Succeeded: false, BlockedBuildTime: &blocked},
			succeeded: false,
			errMsg:    `job "deploy-pipeline" has blocked build waiting for 200s (> 2m); job "deploy-pipeline" failing`,
		},
		{
			name:      "blocked build under limit passes",
			check:     buildCheck(5),
			status:    &BuildStatus{Active: true, Succeeded: true, BlockedBuildTime: &blocked},
			succeeded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			runner := NewRunner(repo, &fakeMetrics{}, &fakeBuilds{status: tt.status, err: tt.err}, nil)

			result, err := runner.Run(context.Background(), tt.check)
			require.NoError(t, err)

			assert.Equal(t, tt.succeeded, result.Succeeded)
			assert.Equal(t, tt.errMsg, result.Error)
		})
	}
}
