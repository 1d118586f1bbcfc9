// Package postgres provides the PostgreSQL implementation of the
// on-call roster repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/oncall"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements oncall.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const shiftColumns = `id, user_id, uid, shift_start, shift_end, deleted, created_at, updated_at`

const profileColumns = `
	id, username, email, mobile_number, chat_alias,
	fallback_alert_user, active, created_at, updated_at
`

// CurrentShifts returns the non-deleted shifts strictly containing at.
func (r *Repository) CurrentShifts(ctx context.Context, at time.Time) ([]domain.Shift, error) {
	query := `
		SELECT ` + shiftColumns + `
		FROM shifts
		WHERE NOT deleted AND shift_start < $1 AND shift_end > $1
		ORDER BY shift_start
	`
	rows, err := r.db.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("list current shifts: %w", err)
	}
	defer rows.Close()

	return scanShifts(rows)
}

// FutureShiftsSoftDelete marks all non-deleted future shifts deleted.
func (r *Repository) FutureShiftsSoftDelete(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE shifts
		SET deleted = true, updated_at = NOW()
		WHERE NOT deleted AND shift_start > $1
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("soft delete future shifts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetShiftByUID retrieves a shift by its calendar event UID.
func (r *Repository) GetShiftByUID(ctx context.Context, uid string) (*domain.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE uid = $1`

	var s domain.Shift
	err := r.db.QueryRow(ctx, query, uid).Scan(
		&s.ID, &s.UserID, &s.UID, &s.Start, &s.End, &s.Deleted, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oncall.ErrShiftNotFound
		}
		return nil, fmt.Errorf("get shift by uid: %w", err)
	}
	return &s, nil
}

// UpsertShift inserts or updates a shift keyed by calendar event UID.
func (r *Repository) UpsertShift(ctx context.Context, shift *domain.Shift) error {
	query := `
		INSERT INTO shifts (id, user_id, uid, shift_start, shift_end, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    shift_start = EXCLUDED.shift_start,
		    shift_end = EXCLUDED.shift_end,
		    deleted = EXCLUDED.deleted,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		shift.ID, shift.UserID, shift.UID, shift.Start, shift.End, shift.Deleted,
	).Scan(&shift.CreatedAt, &shift.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert shift: %w", err)
	}
	return nil
}

// ActiveProfiles returns all active user profiles.
func (r *Repository) ActiveProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE active ORDER BY username`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active profiles: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// ProfilesByIDs returns the profiles with the given ids.
func (r *Repository) ProfilesByIDs(ctx context.Context, ids []string) ([]domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = ANY($1) ORDER BY username`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list profiles by ids: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// FallbackProfile returns the profile marked as fallback alert user.
func (r *Repository) FallbackProfile(ctx context.Context) (*domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE fallback_alert_user AND active`

	var p domain.UserProfile
	err := r.db.QueryRow(ctx, query).Scan(
		&p.ID, &p.Username, &p.Email, &p.MobileNumber, &p.ChatAlias,
		&p.FallbackAlertUser, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oncall.ErrNoFallback
		}
		return nil, fmt.Errorf("get fallback profile: %w", err)
	}
	return &p, nil
}

// SaveProfile upserts a profile. A profile claiming the fallback flag
// strips it from the previous holder in the same transaction.
func (r *Repository) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if profile.FallbackAlertUser {
		_, err := tx.Exec(ctx,
			`UPDATE user_profiles SET fallback_alert_user = false, updated_at = NOW()
			 WHERE fallback_alert_user AND id <> $1`, profile.ID)
		if err != nil {
			return fmt.Errorf("clear previous fallback: %w", err)
		}
	}

	query := `
		INSERT INTO user_profiles (
			id, username, email, mobile_number, chat_alias, fallback_alert_user, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    email = EXCLUDED.email,
		    mobile_number = EXCLUDED.mobile_number,
		    chat_alias = EXCLUDED.chat_alias,
		    fallback_alert_user = EXCLUDED.fallback_alert_user,
		    active = EXCLUDED.active,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		profile.ID, profile.Username, profile.Email, profile.MobileNumber,
		profile.ChatAlias, profile.FallbackAlertUser, profile.Active,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanShifts(rows pgx.Rows) ([]domain.Shift, error) {
	shifts := make([]domain.Shift, 0)
	for rows.Next() {
		var s domain.Shift
		err := rows.Scan(&s.ID, &s.UserID, &s.UID, &s.Start, &s.End, &s.Deleted, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shifts: %w", err)
	}
	return shifts, nil
}

func scanProfiles(rows pgx.Rows) ([]domain.UserProfile, error) {
	profiles := make([]domain.UserProfile, 0)
	for rows.Next() {
		var p domain.UserProfile
		err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.MobileNumber, &p.ChatAlias,
			&p.FallbackAlertUser, &p.Active, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}
