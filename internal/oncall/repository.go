package oncall

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// Sentinel errors for roster storage.
var (
	ErrShiftNotFound   = errors.New("shift not found")
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNoFallback means no profile is marked as the fallback alert
	// user. An empty roster is a valid state, not a failure.
	ErrNoFallback = errors.New("no fallback alert user configured")
)

// Repository defines the interface for on-call roster storage.
type Repository interface {
	// CurrentShifts returns the non-deleted shifts whose interval
	// strictly contains at.
	CurrentShifts(ctx context.Context, at time.Time) ([]domain.Shift, error)

	// FutureShiftsSoftDelete marks all non-deleted shifts starting after
	// now as deleted and returns how many rows changed. Reconciliation
	// resurrects the ones the calendar still knows about.
	FutureShiftsSoftDelete(ctx context.Context, now time.Time) (int64, error)

	GetShiftByUID(ctx context.Context, uid string) (*domain.Shift, error)

	// UpsertShift inserts or updates a shift keyed by calendar event UID.
	UpsertShift(ctx context.Context, shift *domain.Shift) error

	ActiveProfiles(ctx context.Context) ([]domain.UserProfile, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]domain.UserProfile, error)

	// FallbackProfile returns the profile marked fallback_alert_user, or
	// ErrNoFallback when none is.
	FallbackProfile(ctx context.Context) (*domain.UserProfile, error)

	// SaveProfile upserts a profile. When the profile claims the
	// fallback flag, the previous holder loses it in the same
	// transaction so at most one fallback user ever exists.
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error
}
