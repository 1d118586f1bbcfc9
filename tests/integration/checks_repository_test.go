//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/checks"
	checkspostgres "github.com/bissquit/status-garden/internal/checks/postgres"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCheck(t *testing.T, check *domain.StatusCheck) {
	t.Helper()
	repo := checkspostgres.NewRepository(testDB)
	require.NoError(t, repo.CreateCheck(context.Background(), check))
	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM status_checks WHERE id = $1`, check.ID)
	})
}

func TestChecksRepository_Roundtrip(t *testing.T) {
	ctx := context.Background()
	repo := checkspostgres.NewRepository(testDB)

	check := newMetricCheck("roundtrip-cpu")
	check.Metric.ExpectedNumHosts = 3
	check.Debounce = 2
	createTestCheck(t, check)

	got, err := repo.GetCheck(ctx, check.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckTypeMetric, got.Type)
	assert.Equal(t, "roundtrip-cpu", got.Name)
	assert.Equal(t, 2, got.Debounce)
	require.NotNil(t, got.Metric)
	assert.Equal(t, "servers.web.cpu", got.Metric.Target)
	assert.Equal(t, domain.OpGreaterThan, got.Metric.Operator)
	assert.InEpsilon(t, 90.0, got.Metric.Threshold, 0.001)
	assert.Equal(t, 3, got.Metric.ExpectedNumHosts)
	assert.Nil(t, got.Endpoint)
	assert.Nil(t, got.Build)
}

func TestChecksRepository_GetCheck_NotFound(t *testing.T) {
	repo := checkspostgres.NewRepository(testDB)

	_, err := repo.GetCheck(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, checks.ErrCheckNotFound)
}

func TestChecksRepository_ResultsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := checkspostgres.NewRepository(testDB)

	check := newMetricCheck("result-history")
	createTestCheck(t, check)

	base := time.Now().UTC().Truncate(time.Second)
	for i, succeeded := range []bool{true, true, false} {
		completed := base.Add(time.Duration(i) * time.Minute)
		result := &domain.CheckResult{
			ID:          uuid.NewString(),
			CheckID:     check.ID,
			StartedAt:   completed.Add(-time.Second),
			CompletedAt: timePtr(completed),
			Succeeded:   succeeded,
		}
		if !succeeded {
			result.Error = "90.0 > 85.0"
		}
		require.NoError(t, repo.CreateResult(ctx, result))
	}

	results, err := repo.RecentResults(ctx, check.ID, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Newest result is the failure from the last iteration.
	assert.False(t, results[0].Succeeded)
	assert.Equal(t, "90.0 > 85.0", results[0].Error)
	assert.True(t, results[1].Succeeded)
}

func TestChecksRepository_ListDueChecks(t *testing.T) {
	ctx := context.Background()
	repo := checkspostgres.NewRepository(testDB)
	now := time.Now().UTC()

	neverRan := newMetricCheck("due-never-ran")
	createTestCheck(t, neverRan)

	stale := newMetricCheck("due-stale")
	createTestCheck(t, stale)
	stale.Calculated = domain.CalculatedPassing
	stale.LastRun = timePtr(now.Add(-10 * time.Minute))
	require.NoError(t, repo.FinishRun(ctx, stale))

	fresh := newMetricCheck("due-fresh")
	createTestCheck(t, fresh)
	fresh.LastRun = timePtr(now.Add(-time.Minute))
	require.NoError(t, repo.FinishRun(ctx, fresh))

	inactive := newMetricCheck("due-inactive")
	inactive.Active = false
	createTestCheck(t, inactive)

	due, err := repo.ListDueChecks(ctx, now)
	require.NoError(t, err)

	dueIDs := make(map[string]bool, len(due))
	for _, c := range due {
		dueIDs[c.ID] = true
	}
	assert.True(t, dueIDs[neverRan.ID], "check that never ran must be due")
	assert.True(t, dueIDs[stale.ID], "check past its frequency must be due")
	assert.False(t, dueIDs[fresh.ID], "recently run check must not be due")
	assert.False(t, dueIDs[inactive.ID], "inactive check must not be due")
}

func TestChecksRepository_FinishRunPersistsDerivedState(t *testing.T) {
	ctx := context.Background()
	repo := checkspostgres.NewRepository(testDB)

	check := newMetricCheck("finish-run")
	createTestCheck(t, check)

	lastRun := time.Now().UTC().Truncate(time.Second)
	check.Calculated = domain.CalculatedFailing
	check.CachedHealth = "1,-1,-1"
	check.LastRun = &lastRun
	require.NoError(t, repo.FinishRun(ctx, check))

	got, err := repo.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CalculatedFailing, got.Calculated)
	assert.Equal(t, "1,-1,-1", got.CachedHealth)
	require.NotNil(t, got.LastRun)
	assert.WithinDuration(t, lastRun, *got.LastRun, time.Second)
}

func TestChecksRepository_ServicesForCheck(t *testing.T) {
	ctx := context.Background()
	repo := checkspostgres.NewRepository(testDB)

	check := newMetricCheck("linked-check")
	createTestCheck(t, check)

	svc1 := createTestService(t, "linked-svc-1")
	svc2 := createTestService(t, "linked-svc-2")
	for _, svcID := range []string{svc1.ID, svc2.ID} {
		_, err := testDB.Exec(ctx,
			`INSERT INTO service_status_checks (service_id, check_id) VALUES ($1, $2)`,
			svcID, check.ID)
		require.NoError(t, err)
	}

	ids, err := repo.ServicesForCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{svc1.ID, svc2.ID}, ids)
}
