// Package postgres provides the PostgreSQL implementation of the status
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/status"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements status.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `
	id, name, url, email_alert, chat_alert, sms_alert, phone_alert,
	alerts_enabled, overall_status, old_overall_status, last_alert_sent,
	runbook_url, created_at, updated_at
`

// CreateService inserts a new service.
func (r *Repository) CreateService(ctx context.Context, svc *domain.Service) error {
	query := `
		INSERT INTO services (
			id, name, url, email_alert, chat_alert, sms_alert, phone_alert,
			alerts_enabled, overall_status, old_overall_status, runbook_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		svc.ID, svc.Name, svc.URL, svc.EmailAlert, svc.ChatAlert, svc.SMSAlert, svc.PhoneAlert,
		svc.AlertsEnabled, svc.OverallStatus, svc.OldOverallStatus, svc.RunbookURL,
	).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetService retrieves a service by id.
func (r *Repository) GetService(ctx context.Context, id string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	var svc domain.Service
	err := r.db.QueryRow(ctx, query, id).Scan(
		&svc.ID, &svc.Name, &svc.URL,
		&svc.EmailAlert, &svc.ChatAlert, &svc.SMSAlert, &svc.PhoneAlert,
		&svc.AlertsEnabled, &svc.OverallStatus, &svc.OldOverallStatus, &svc.LastAlertSent,
		&svc.RunbookURL, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, status.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}

	checkIDs, err := r.serviceChecks(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.CheckIDs = checkIDs
	return &svc, nil
}

// ListServices retrieves all services ordered by name.
func (r *Repository) ListServices(ctx context.Context) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		var svc domain.Service
		err := rows.Scan(
			&svc.ID, &svc.Name, &svc.URL,
			&svc.EmailAlert, &svc.ChatAlert, &svc.SMSAlert, &svc.PhoneAlert,
			&svc.AlertsEnabled, &svc.OverallStatus, &svc.OldOverallStatus, &svc.LastAlertSent,
			&svc.RunbookURL, &svc.CreatedAt, &svc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// ActiveChecksForService returns the active checks linked to a service.
// Only the fields aggregation needs are loaded.
func (r *Repository) ActiveChecksForService(ctx context.Context, serviceID string) ([]domain.StatusCheck, error) {
	query := `
		SELECT c.id, c.type, c.name, c.active, c.importance, c.calculated_status
		FROM status_checks c
		JOIN service_status_checks sc ON sc.check_id = c.id
		WHERE sc.service_id = $1 AND c.active
		ORDER BY c.name
	`
	rows, err := r.db.Query(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list active checks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StatusCheck, 0)
	for rows.Next() {
		var c domain.StatusCheck
		if err := rows.Scan(&c.ID, &c.Type, &c.Name, &c.Active, &c.Importance, &c.Calculated); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	return result, nil
}

// SetServiceChecks replaces the service's check associations.
func (r *Repository) SetServiceChecks(ctx context.Context, serviceID string, checkIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM service_status_checks WHERE service_id = $1`, serviceID); err != nil {
		return fmt.Errorf("clear service checks: %w", err)
	}
	for _, checkID := range checkIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO service_status_checks (service_id, check_id) VALUES ($1, $2)`,
			serviceID, checkID)
		if err != nil {
			return fmt.Errorf("link check %s: %w", checkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SaveStatus persists the aggregated overall and previous statuses.
func (r *Repository) SaveStatus(ctx context.Context, svc *domain.Service) error {
	query := `
		UPDATE services
		SET overall_status = $2, old_overall_status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, svc.ID, svc.OverallStatus, svc.OldOverallStatus).Scan(&svc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return status.ErrServiceNotFound
		}
		return fmt.Errorf("save service status: %w", err)
	}
	return nil
}

// CreateSnapshot inserts a point-in-time aggregate record.
func (r *Repository) CreateSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	query := `
		INSERT INTO service_snapshots (
			id, service_id, time, num_checks_active, num_checks_passing,
			num_checks_failing, overall_status, did_send_alert
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		snap.ID, snap.ServiceID, snap.Time, snap.NumChecksActive,
		snap.NumChecksPassing, snap.NumChecksFailing, snap.OverallStatus, snap.DidSendAlert,
	)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

// MarkSnapshotAlerted records that an alert went out at this snapshot.
func (r *Repository) MarkSnapshotAlerted(ctx context.Context, snapshotID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE service_snapshots SET did_send_alert = true WHERE id = $1`, snapshotID)
	if err != nil {
		return fmt.Errorf("mark snapshot alerted: %w", err)
	}
	return nil
}

// RecentSnapshots returns a service's snapshots newer than since,
// oldest first.
func (r *Repository) RecentSnapshots(ctx context.Context, serviceID string, since time.Time) ([]domain.Snapshot, error) {
	query := `
		SELECT id, service_id, time, num_checks_active, num_checks_passing,
		       num_checks_failing, overall_status, did_send_alert
		FROM service_snapshots
		WHERE service_id = $1 AND time > $2
		ORDER BY time
	`
	rows, err := r.db.Query(ctx, query, serviceID, since)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make([]domain.Snapshot, 0)
	for rows.Next() {
		var s domain.Snapshot
		err := rows.Scan(&s.ID, &s.ServiceID, &s.Time, &s.NumChecksActive,
			&s.NumChecksPassing, &s.NumChecksFailing, &s.OverallStatus, &s.DidSendAlert)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// SetLastAlertSent compare-and-sets the throttle timestamp so two
// concurrent failing transitions cannot both claim the send.
func (r *Repository) SetLastAlertSent(ctx context.Context, serviceID string, prev, next *time.Time) (bool, error) {
	query := `
		UPDATE services
		SET last_alert_sent = $2, updated_at = NOW()
		WHERE id = $1 AND last_alert_sent IS NOT DISTINCT FROM $3
	`
	tag, err := r.db.Exec(ctx, query, serviceID, next, prev)
	if err != nil {
		return false, fmt.Errorf("set last alert sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) serviceChecks(ctx context.Context, serviceID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT check_id FROM service_status_checks WHERE service_id = $1`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list service checks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan check id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check ids: %w", err)
	}
	return ids, nil
}
