// Package oncall maintains the duty roster: who gets paged right now,
// and keeping the shift table reconciled with the external calendar.
package oncall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Event is a calendar entry describing one on-call shift. The summary
// names the user taking the shift.
type Event struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// CalendarSource fetches the on-call schedule from an external calendar.
type CalendarSource interface {
	Events(ctx context.Context) ([]Event, error)
}

// Service implements duty roster business logic.
type Service struct {
	repo     Repository
	calendar CalendarSource
}

// NewService creates a new on-call service.
func NewService(repo Repository, calendar CalendarSource) *Service {
	return &Service{
		repo:     repo,
		calendar: calendar,
	}
}

// DutyOfficers returns who should receive alerts at the given time:
// the users on shifts strictly containing at, or the fallback user when
// no shift covers it, or nobody when no fallback is configured either.
func (s *Service) DutyOfficers(ctx context.Context, at time.Time) ([]domain.UserProfile, error) {
	shifts, err := s.repo.CurrentShifts(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("load current shifts: %w", err)
	}

	if len(shifts) == 0 {
		fallback, err := s.repo.FallbackProfile(ctx)
		if err != nil {
			if errors.Is(err, ErrNoFallback) {
				return nil, nil
			}
			return nil, fmt.Errorf("load fallback profile: %w", err)
		}
		return []domain.UserProfile{*fallback}, nil
	}

	ids := make([]string, 0, len(shifts))
	seen := make(map[string]bool, len(shifts))
	for _, shift := range shifts {
		if !seen[shift.UserID] {
			seen[shift.UserID] = true
			ids = append(ids, shift.UserID)
		}
	}

	officers, err := s.repo.ProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load officer profiles: %w", err)
	}
	return officers, nil
}

// SyncShifts reconciles stored shifts with the external calendar. All
// future shifts are soft-deleted first, then every calendar event whose
// summary matches an active username is upserted by event UID. Running
// the sync twice against the same calendar is a no-op.
func (s *Service) SyncShifts(ctx context.Context, now time.Time) error {
	events, err := s.calendar.Events(ctx)
	if err != nil {
		return fmt.Errorf("fetch calendar events: %w", err)
	}

	profiles, err := s.repo.ActiveProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load active profiles: %w", err)
	}

	folder := cases.Fold()
	byUsername := make(map[string]string, len(profiles))
	for _, p := range profiles {
		byUsername[folder.String(p.Username)] = p.ID
	}

	retired, err := s.repo.FutureShiftsSoftDelete(ctx, now)
	if err != nil {
		return fmt.Errorf("retire future shifts: %w", err)
	}

	var synced, unmatched int
	for _, event := range events {
		userID, ok := byUsername[folder.String(strings.TrimSpace(event.Summary))]
		if !ok {
			unmatched++
			slog.Warn("calendar event matches no active user",
				"uid", event.UID, "summary", event.Summary)
			continue
		}

		shift, err := s.repo.GetShiftByUID(ctx, event.UID)
		if err != nil {
			if !errors.Is(err, ErrShiftNotFound) {
				return fmt.Errorf("load shift %s: %w", event.UID, err)
			}
			shift = &domain.Shift{
				ID:  uuid.NewString(),
				UID: event.UID,
			}
		}

		shift.UserID = userID
		shift.Start = event.Start
		shift.End = event.End
		shift.Deleted = false

		if err := s.repo.UpsertShift(ctx, shift); err != nil {
			return fmt.Errorf("upsert shift %s: %w", event.UID, err)
		}
		synced++
	}

	slog.Info("shift sync finished",
		"events", len(events),
		"synced", synced,
		"unmatched", unmatched,
		"retired", retired,
	)
	return nil
}

// SaveProfile normalizes contact details and persists the profile.
func (s *Service) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	profile.NormalizeMobileNumber()
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
