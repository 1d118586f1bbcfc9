//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// createTestService inserts a service directly and registers cleanup.
func createTestService(t *testing.T, name string) *domain.Service {
	t.Helper()
	ctx := context.Background()

	svc := &domain.Service{
		ID:            uuid.NewString(),
		Name:          name,
		AlertsEnabled: true,
		EmailAlert:    true,
	}
	_, err := testDB.Exec(ctx, `
		INSERT INTO services (id, name, alerts_enabled, email_alert)
		VALUES ($1, $2, $3, $4)
	`, svc.ID, svc.Name, svc.AlertsEnabled, svc.EmailAlert)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM services WHERE id = $1`, svc.ID)
	})
	return svc
}

// newMetricCheck builds an unsaved metric check with sane defaults.
func newMetricCheck(name string) *domain.StatusCheck {
	return &domain.StatusCheck{
		ID:         uuid.NewString(),
		Type:       domain.CheckTypeMetric,
		Name:       name,
		Active:     true,
		Importance: domain.StatusError,
		Frequency:  5,
		Debounce:   0,
		Calculated: domain.CalculatedPassing,
		CreatedBy:  "integration-test",
		Metric: &domain.MetricParams{
			Target:    "servers.web.cpu",
			Operator:  domain.OpGreaterThan,
			Threshold: 90,
		},
	}
}

// createTestProfile inserts a user profile directly and registers cleanup.
func createTestProfile(t *testing.T, username string, fallback bool) *domain.UserProfile {
	t.Helper()
	ctx := context.Background()

	p := &domain.UserProfile{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             username + "@example.com",
		FallbackAlertUser: fallback,
		Active:            true,
	}
	_, err := testDB.Exec(ctx, `
		INSERT INTO user_profiles (id, username, email, fallback_alert_user, active)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Username, p.Email, p.FallbackAlertUser, p.Active)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM user_profiles WHERE id = $1`, p.ID)
	})
	return p
}

func timePtr(t time.Time) *time.Time {
	return &t
}
