// Package status aggregates per-check calculated statuses into a
// service-level severity and applies the alert throttling policy.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/google/uuid"
)

// Alert cooldown windows keyed by severity. Warnings can wait; errors
// and criticals re-alert quickly while still unhealthy.
const (
	warningCooldown = 120 * time.Minute
	errorCooldown   = 10 * time.Minute
)

// DutyRoster resolves the alert recipients at a point in time.
type DutyRoster interface {
	DutyOfficers(ctx context.Context, at time.Time) ([]domain.UserProfile, error)
}

// AlertSender delivers an alert for a service to the duty officers.
// Channel selection is the transport's job, not ours.
type AlertSender interface {
	SendAlert(ctx context.Context, svc *domain.Service, officers []domain.UserProfile, becameCritical bool) error
}

// Service implements status aggregation business logic.
type Service struct {
	repo   Repository
	roster DutyRoster
	alerts AlertSender
}

// NewService creates a new status service.
func NewService(repo Repository, roster DutyRoster, alerts AlertSender) *Service {
	return &Service{
		repo:   repo,
		roster: roster,
		alerts: alerts,
	}
}

// UpdateServiceStatus recomputes a service's overall status from its
// active checks, writes a snapshot, and invokes alerting unless the
// service was passing and stays passing. Aggregation is idempotent, so
// a concurrent check re-evaluation observed mid-flight is corrected on
// the next cycle.
func (s *Service) UpdateServiceStatus(ctx context.Context, serviceID string, now time.Time) (*domain.Snapshot, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}

	active, err := s.repo.ActiveChecksForService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load active checks: %w", err)
	}

	failing := make([]domain.Status, 0)
	for _, c := range active {
		if c.Calculated != domain.CalculatedPassing {
			failing = append(failing, c.Importance)
		}
	}

	svc.OldOverallStatus = svc.OverallStatus
	svc.OverallStatus = domain.MostSevere(failing)

	snap := &domain.Snapshot{
		ID:               uuid.NewString(),
		ServiceID:        svc.ID,
		Time:             now,
		NumChecksActive:  len(active),
		NumChecksPassing: len(active) - len(failing),
		NumChecksFailing: len(failing),
		OverallStatus:    svc.OverallStatus,
	}
	if err := s.repo.CreateSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	if err := s.repo.SaveStatus(ctx, svc); err != nil {
		return nil, fmt.Errorf("save service status: %w", err)
	}

	recordAggregation(string(svc.OverallStatus))

	// Steady-state healthy services generate no alert traffic at all.
	if svc.OverallStatus == domain.StatusPassing && svc.OldOverallStatus == domain.StatusPassing {
		return snap, nil
	}

	if err := s.alert(ctx, svc, snap, now); err != nil {
		return nil, err
	}
	return snap, nil
}

// alert applies the throttling policy and dispatches a notification
// when one is due.
func (s *Service) alert(ctx context.Context, svc *domain.Service, snap *domain.Snapshot, now time.Time) error {
	if !svc.AlertsEnabled {
		return nil
	}

	prev := svc.LastAlertSent

	if svc.OverallStatus == domain.StatusPassing {
		// Back to normal is not an alert event: clear the throttle
		// state and stay quiet.
		if _, err := s.repo.SetLastAlertSent(ctx, svc.ID, prev, nil); err != nil {
			return fmt.Errorf("clear last alert sent: %w", err)
		}
		svc.LastAlertSent = nil
		slog.Info("service recovered", "service", svc.Name, "from", svc.OldOverallStatus)
		return nil
	}

	if prev != nil && now.Sub(*prev) < cooldownFor(svc.OverallStatus) {
		recordAlert("throttled")
		return nil
	}

	next := now
	ok, err := s.repo.SetLastAlertSent(ctx, svc.ID, prev, &next)
	if err != nil {
		return fmt.Errorf("update last alert sent: %w", err)
	}
	if !ok {
		// A concurrent aggregation claimed this transition; its alert
		// covers us.
		recordAlert("lost_race")
		return nil
	}
	svc.LastAlertSent = &next

	if err := s.repo.MarkSnapshotAlerted(ctx, snap.ID); err != nil {
		return fmt.Errorf("mark snapshot alerted: %w", err)
	}
	snap.DidSendAlert = true

	officers, err := s.roster.DutyOfficers(ctx, now)
	if err != nil {
		slog.Error("failed to resolve duty officers", "service", svc.Name, "error", err)
		officers = nil
	}

	// Fire and forget: delivery is the transport's concern, and a still
	// unhealthy service re-alerts on a later cycle anyway.
	if err := s.alerts.SendAlert(ctx, svc, officers, svc.BecameCritical()); err != nil {
		slog.Error("alert dispatch failed", "service", svc.Name, "error", err)
		recordAlert("dispatch_error")
		return nil
	}

	recordAlert("sent")
	slog.Info("alert sent",
		"service", svc.Name,
		"status", svc.OverallStatus,
		"became_critical", svc.BecameCritical(),
		"officers", len(officers),
	)
	return nil
}

// cooldownFor returns the re-alert suppression window for a severity.
func cooldownFor(s domain.Status) time.Duration {
	if s == domain.StatusWarning {
		return warningCooldown
	}
	return errorCooldown
}
