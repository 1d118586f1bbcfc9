// Package postgres provides the PostgreSQL implementation of the checks
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/checks"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements checks.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const checkColumns = `
	id, type, name, active, importance, frequency, debounce,
	calculated_status, cached_health, last_run, created_by, created_at, updated_at,
	metric_target, metric_operator, metric_threshold, expected_num_hosts,
	endpoint_url, endpoint_username, endpoint_password, text_match, status_code, timeout_seconds,
	max_queued_build_time
`

// CreateCheck inserts a new status check with its variant columns.
func (r *Repository) CreateCheck(ctx context.Context, check *domain.StatusCheck) error {
	query := `
		INSERT INTO status_checks (
			id, type, name, active, importance, frequency, debounce,
			calculated_status, cached_health, created_by,
			metric_target, metric_operator, metric_threshold, expected_num_hosts,
			endpoint_url, endpoint_username, endpoint_password, text_match, status_code, timeout_seconds,
			max_queued_build_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at
	`

	var (
		metricTarget, metricOperator          *string
		metricThreshold                       *float64
		expectedNumHosts                      *int
		endpointURL, username, pass, match    *string
		statusCode, timeoutSeconds, maxQueued *int
	)
	switch check.Type {
	case domain.CheckTypeMetric:
		p := check.Metric
		op := string(p.Operator)
		metricTarget, metricOperator = &p.Target, &op
		metricThreshold = &p.Threshold
		expectedNumHosts = &p.ExpectedNumHosts
	case domain.CheckTypeEndpoint:
		p := check.Endpoint
		endpointURL = &p.URL
		if p.Username != "" {
			username = &p.Username
		}
		if p.Password != "" {
			pass = &p.Password
		}
		if p.TextMatch != "" {
			match = &p.TextMatch
		}
		statusCode, timeoutSeconds = &p.StatusCode, &p.TimeoutSeconds
	case domain.CheckTypeBuild:
		maxQueued = &check.Build.MaxQueuedBuildTime
	}

	err := r.db.QueryRow(ctx, query,
		check.ID, check.Type, check.Name, check.Active, check.Importance,
		check.Frequency, check.Debounce, check.Calculated, check.CachedHealth, check.CreatedBy,
		metricTarget, metricOperator, metricThreshold, expectedNumHosts,
		endpointURL, username, pass, match, statusCode, timeoutSeconds,
		maxQueued,
	).Scan(&check.CreatedAt, &check.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create status check: %w", err)
	}
	return nil
}

// GetCheck retrieves a status check by id.
func (r *Repository) GetCheck(ctx context.Context, id string) (*domain.StatusCheck, error) {
	query := `SELECT ` + checkColumns + ` FROM status_checks WHERE id = $1`

	check, err := scanCheck(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checks.ErrCheckNotFound
		}
		return nil, fmt.Errorf("get status check: %w", err)
	}
	return check, nil
}

// ListChecks retrieves all status checks ordered by name.
func (r *Repository) ListChecks(ctx context.Context) ([]domain.StatusCheck, error) {
	query := `SELECT ` + checkColumns + ` FROM status_checks ORDER BY name`
	return r.queryChecks(ctx, query)
}

// ListDueChecks retrieves active checks that never ran or whose last
// run is older than their configured frequency.
func (r *Repository) ListDueChecks(ctx context.Context, now time.Time) ([]domain.StatusCheck, error) {
	query := `
		SELECT ` + checkColumns + `
		FROM status_checks
		WHERE active
		  AND (last_run IS NULL OR last_run <= $1::timestamptz - frequency * interval '1 minute')
		ORDER BY name
	`
	return r.queryChecks(ctx, query, now)
}

func (r *Repository) queryChecks(ctx context.Context, query string, args ...any) ([]domain.StatusCheck, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list status checks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StatusCheck, 0)
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status check: %w", err)
		}
		result = append(result, *check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status checks: %w", err)
	}
	return result, nil
}

// CreateResult appends one execution outcome to the result history.
func (r *Repository) CreateResult(ctx context.Context, result *domain.CheckResult) error {
	query := `
		INSERT INTO status_check_results (id, check_id, started_at, completed_at, succeeded, error, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		result.ID, result.CheckID, result.StartedAt, result.CompletedAt,
		result.Succeeded, nullable(result.Error), nullable(result.RawData),
	)
	if err != nil {
		return fmt.Errorf("create check result: %w", err)
	}
	return nil
}

// RecentResults returns the most recently completed results for a
// check, newest first.
func (r *Repository) RecentResults(ctx context.Context, checkID string, limit int) ([]domain.CheckResult, error) {
	query := `
		SELECT id, check_id, started_at, completed_at, succeeded,
		       COALESCE(error, ''), COALESCE(raw_data, '')
		FROM status_check_results
		WHERE check_id = $1 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.CheckResult, 0, limit)
	for rows.Next() {
		var res domain.CheckResult
		err := rows.Scan(&res.ID, &res.CheckID, &res.StartedAt, &res.CompletedAt,
			&res.Succeeded, &res.Error, &res.RawData)
		if err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check results: %w", err)
	}
	return results, nil
}

// FinishRun persists the post-run derived state of a check.
func (r *Repository) FinishRun(ctx context.Context, check *domain.StatusCheck) error {
	query := `
		UPDATE status_checks
		SET calculated_status = $2, cached_health = $3, last_run = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		check.ID, check.Calculated, check.CachedHealth, check.LastRun,
	).Scan(&check.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checks.ErrCheckNotFound
		}
		return fmt.Errorf("finish check run: %w", err)
	}
	return nil
}

// ServicesForCheck returns the ids of services the check is linked to.
func (r *Repository) ServicesForCheck(ctx context.Context, checkID string) ([]string, error) {
	query := `SELECT service_id FROM service_status_checks WHERE check_id = $1`
	rows, err := r.db.Query(ctx, query, checkID)
	if err != nil {
		return nil, fmt.Errorf("list services for check: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service ids: %w", err)
	}
	return ids, nil
}

// scanCheck assembles a StatusCheck from a row, attaching the variant
// params selected by the type column.
func scanCheck(row pgx.Row) (*domain.StatusCheck, error) {
	var (
		check                                 domain.StatusCheck
		cachedHealth                          *string
		metricTarget, metricOperator          *string
		metricThreshold                       *float64
		expectedNumHosts                      *int
		endpointURL, username, pass, match    *string
		statusCode, timeoutSeconds, maxQueued *int
	)
	err := row.Scan(
		&check.ID, &check.Type, &check.Name, &check.Active, &check.Importance,
		&check.Frequency, &check.Debounce, &check.Calculated, &cachedHealth,
		&check.LastRun, &check.CreatedBy, &check.CreatedAt, &check.UpdatedAt,
		&metricTarget, &metricOperator, &metricThreshold, &expectedNumHosts,
		&endpointURL, &username, &pass, &match, &statusCode, &timeoutSeconds,
		&maxQueued,
	)
	if err != nil {
		return nil, err
	}
	if cachedHealth != nil {
		check.CachedHealth = *cachedHealth
	}

	switch check.Type {
	case domain.CheckTypeMetric:
		p := &domain.MetricParams{}
		if metricTarget != nil {
			p.Target = *metricTarget
		}
		if metricOperator != nil {
			p.Operator = domain.Operator(*metricOperator)
		}
		if metricThreshold != nil {
			p.Threshold = *metricThreshold
		}
		if expectedNumHosts != nil {
			p.ExpectedNumHosts = *expectedNumHosts
		}
		check.Metric = p
	case domain.CheckTypeEndpoint:
		p := &domain.EndpointParams{}
		if endpointURL != nil {
			p.URL = *endpointURL
		}
		if username != nil {
			p.Username = *username
		}
		if pass != nil {
			p.Password = *pass
		}
		if match != nil {
			p.TextMatch = *match
		}
		if statusCode != nil {
			p.StatusCode = *statusCode
		}
		if timeoutSeconds != nil {
			p.TimeoutSeconds = *timeoutSeconds
		}
		check.Endpoint = p
	case domain.CheckTypeBuild:
		p := &domain.BuildParams{}
		if maxQueued != nil {
			p.MaxQueuedBuildTime = *maxQueued
		}
		check.Build = p
	}
	return &check, nil
}

// nullable maps empty strings to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
