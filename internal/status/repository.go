package status

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// ErrServiceNotFound is returned when a service does not exist.
var ErrServiceNotFound = errors.New("service not found")

// Repository defines the interface for service status storage.
type Repository interface {
	CreateService(ctx context.Context, svc *domain.Service) error
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context) ([]domain.Service, error)

	// ActiveChecksForService returns the service's active checks with
	// their current calculated statuses.
	ActiveChecksForService(ctx context.Context, serviceID string) ([]domain.StatusCheck, error)

	// SetServiceChecks replaces the service's check associations.
	SetServiceChecks(ctx context.Context, serviceID string, checkIDs []string) error

	// SaveStatus persists the aggregated overall and previous statuses.
	SaveStatus(ctx context.Context, svc *domain.Service) error

	CreateSnapshot(ctx context.Context, snap *domain.Snapshot) error
	MarkSnapshotAlerted(ctx context.Context, snapshotID string) error
	RecentSnapshots(ctx context.Context, serviceID string, since time.Time) ([]domain.Snapshot, error)

	// SetLastAlertSent is a compare-and-set on the service's
	// last-alert-sent timestamp: the update only applies when the
	// stored value still equals prev. Returns false when another writer
	// got there first.
	SetLastAlertSent(ctx context.Context, serviceID string, prev, next *time.Time) (bool, error)
}
