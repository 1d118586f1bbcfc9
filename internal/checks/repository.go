package checks

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// ErrCheckNotFound is returned when a status check does not exist.
var ErrCheckNotFound = errors.New("status check not found")

// Repository defines the interface for check and result storage.
// Results are append-only; history is ordered by completion time
// descending.
type Repository interface {
	CreateCheck(ctx context.Context, check *domain.StatusCheck) error
	GetCheck(ctx context.Context, id string) (*domain.StatusCheck, error)
	ListChecks(ctx context.Context) ([]domain.StatusCheck, error)

	// ListDueChecks returns active checks whose last run is older than
	// their frequency (or that never ran).
	ListDueChecks(ctx context.Context, now time.Time) ([]domain.StatusCheck, error)

	CreateResult(ctx context.Context, result *domain.CheckResult) error
	RecentResults(ctx context.Context, checkID string, limit int) ([]domain.CheckResult, error)

	// FinishRun persists the state derived from a run: calculated
	// status, cached health and last-run timestamp.
	FinishRun(ctx context.Context, check *domain.StatusCheck) error

	// ServicesForCheck returns the ids of services the check belongs to.
	ServicesForCheck(ctx context.Context, checkID string) ([]string, error)
}
