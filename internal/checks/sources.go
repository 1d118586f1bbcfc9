package checks

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a BuildSource when the build server has
// no job with the requested name. The build executor treats it as a
// hard failure, unlike transient backend errors.
var ErrJobNotFound = errors.New("build job not found")

// MetricSeries is the reduced view of a metrics backend query.
type MetricSeries struct {
	// Error marks a query the backend itself reported as failed.
	Error             bool
	NumSeriesWithData int
	Min               float64
	Max               float64
	Average           float64
	AllValues         []float64
	Raw               json.RawMessage
}

// MetricSource queries the metrics backend for a target expression over
// a lookback window.
type MetricSource interface {
	Query(ctx context.Context, target string, lookback time.Duration) (*MetricSeries, error)
}

// BuildStatus is the build server's view of one job.
type BuildStatus struct {
	// Active is false when the job is disabled.
	Active    bool
	Succeeded bool
	// BlockedBuildTime is how many seconds the oldest queued build has
	// been waiting, nil when nothing is queued.
	BlockedBuildTime *float64
	Raw              json.RawMessage
}

// BuildSource queries the build server for job status. Unknown jobs
// surface ErrJobNotFound.
type BuildSource interface {
	JobStatus(ctx context.Context, job string) (*BuildStatus, error)
}
