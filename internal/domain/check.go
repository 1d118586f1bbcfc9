package domain

import (
	"fmt"
	"time"
)

// CheckType discriminates the status check variants.
type CheckType string

// Check types.
const (
	CheckTypeMetric   CheckType = "metric"
	CheckTypeEndpoint CheckType = "endpoint"
	CheckTypeBuild    CheckType = "build"
)

// IsValid checks if the check type is valid.
func (t CheckType) IsValid() bool {
	return t == CheckTypeMetric || t == CheckTypeEndpoint || t == CheckTypeBuild
}

// Operator is the comparison a metric check applies against its threshold.
type Operator string

// Comparison operators.
const (
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
)

// IsValid checks if the operator is supported.
func (o Operator) IsValid() bool {
	switch o {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual:
		return true
	}
	return false
}

// MetricParams configures a metric check.
type MetricParams struct {
	// Target is the metrics backend expression to watch. Any valid
	// expression works, including wildcards matching multiple hosts.
	Target    string   `json:"target"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
	// ExpectedNumHosts is the minimum number of data series expected.
	// Fewer series than this fails the check regardless of values.
	// Zero disables the floor.
	ExpectedNumHosts int `json:"expected_num_hosts"`
}

// EndpointParams configures an HTTP endpoint check.
type EndpointParams struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// TextMatch is a regex matched against the response body.
	TextMatch string `json:"text_match,omitempty"`
	// StatusCode is the expected response code. Zero skips the code check.
	StatusCode     int `json:"status_code"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Timeout returns the probe timeout as a duration.
func (p *EndpointParams) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// BuildParams configures a build server check. The build job is looked
// up by the check's name.
type BuildParams struct {
	// MaxQueuedBuildTime is how many minutes a build may sit queued
	// before the check fails. Zero disables the limit.
	MaxQueuedBuildTime int `json:"max_queued_build_time"`
}

// StatusCheck is the polymorphic check entity. Exactly one of the
// variant param structs is set, selected by Type.
type StatusCheck struct {
	ID         string           `json:"id"`
	Type       CheckType        `json:"type"`
	Name       string           `json:"name"`
	Active     bool             `json:"active"`
	Importance Status           `json:"importance"`
	Frequency  int              `json:"frequency"` // minutes between runs
	Debounce   int              `json:"debounce"`  // consecutive failures tolerated
	Calculated CalculatedStatus `json:"calculated_status"`
	// CachedHealth is a serialized summary of recent results, oldest
	// first, e.g. "1,1,-1".
	CachedHealth string     `json:"cached_health,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Metric   *MetricParams   `json:"metric,omitempty"`
	Endpoint *EndpointParams `json:"endpoint,omitempty"`
	Build    *BuildParams    `json:"build,omitempty"`
}

// Validate verifies the variant params match the declared type.
func (c *StatusCheck) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid check type: %s", c.Type)
	}
	if !c.Importance.IsImportance() {
		return fmt.Errorf("invalid check importance: %s", c.Importance)
	}
	switch c.Type {
	case CheckTypeMetric:
		if c.Metric == nil {
			return fmt.Errorf("check %s: metric params missing", c.Name)
		}
	case CheckTypeEndpoint:
		if c.Endpoint == nil {
			return fmt.Errorf("check %s: endpoint params missing", c.Name)
		}
	case CheckTypeBuild:
		if c.Build == nil {
			return fmt.Errorf("check %s: build params missing", c.Name)
		}
	}
	return nil
}

// CheckResult is one execution outcome of one status check. Immutable
// once CompletedAt is set.
type CheckResult struct {
	ID          string     `json:"id"`
	CheckID     string     `json:"check_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Succeeded   bool       `json:"succeeded"`
	Error       string     `json:"error,omitempty"`
	// RawData holds the raw diagnostic payload from the probe, if any.
	RawData string `json:"raw_data,omitempty"`
}

// StatusLabel returns "succeeded" or "failed" for display.
func (r *CheckResult) StatusLabel() string {
	if r.Succeeded {
		return "succeeded"
	}
	return "failed"
}

// Took returns the execution duration, or zero if the result never
// completed.
func (r *CheckResult) Took() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ShortError truncates the error message for compact displays.
func (r *CheckResult) ShortError() string {
	const snippetLen = 30
	if len(r.Error) > snippetLen {
		return r.Error[:snippetLen-3] + "..."
	}
	return r.Error
}
