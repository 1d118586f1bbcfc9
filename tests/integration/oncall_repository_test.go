//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/oncall"
	oncallpostgres "github.com/bissquit/status-garden/internal/oncall/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestShift(t *testing.T, shift *domain.Shift) {
	t.Helper()
	repo := oncallpostgres.NewRepository(testDB)
	require.NoError(t, repo.UpsertShift(context.Background(), shift))
	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM shifts WHERE uid = $1`, shift.UID)
	})
}

func TestOncallRepository_FallbackSwapKeepsOneHolder(t *testing.T) {
	ctx := context.Background()
	repo := oncallpostgres.NewRepository(testDB)

	first := createTestProfile(t, "fallback-first", false)
	second := createTestProfile(t, "fallback-second", false)

	first.FallbackAlertUser = true
	require.NoError(t, repo.SaveProfile(ctx, first))

	got, err := repo.FallbackProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	// Handing the flag to another profile strips it from the holder.
	second.FallbackAlertUser = true
	require.NoError(t, repo.SaveProfile(ctx, second))

	got, err = repo.FallbackProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	var holders int
	err = testDB.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_profiles WHERE fallback_alert_user`).Scan(&holders)
	require.NoError(t, err)
	assert.Equal(t, 1, holders)

	// Release the flag so other tests see a clean roster.
	second.FallbackAlertUser = false
	require.NoError(t, repo.SaveProfile(ctx, second))

	_, err = repo.FallbackProfile(ctx)
	assert.ErrorIs(t, err, oncall.ErrNoFallback)
}

func TestOncallRepository_CurrentShiftsStrictContainment(t *testing.T) {
	ctx := context.Background()
	repo := oncallpostgres.NewRepository(testDB)

	user := createTestProfile(t, "shift-holder", false)
	now := time.Now().UTC().Truncate(time.Second)

	onDuty := &domain.Shift{
		ID:     uuid.NewString(),
		UserID: user.ID,
		UID:    "evt-" + uuid.NewString(),
		Start:  now.Add(-time.Hour),
		End:    now.Add(time.Hour),
	}
	createTestShift(t, onDuty)

	// A shift ending exactly now does not contain now.
	ended := &domain.Shift{
		ID:     uuid.NewString(),
		UserID: user.ID,
		UID:    "evt-" + uuid.NewString(),
		Start:  now.Add(-2 * time.Hour),
		End:    now,
	}
	createTestShift(t, ended)

	retired := &domain.Shift{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		UID:     "evt-" + uuid.NewString(),
		Start:   now.Add(-time.Hour),
		End:     now.Add(time.Hour),
		Deleted: true,
	}
	createTestShift(t, retired)

	shifts, err := repo.CurrentShifts(ctx, now)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, onDuty.ID, shifts[0].ID)
}

func TestOncallRepository_UpsertShiftByUID(t *testing.T) {
	ctx := context.Background()
	repo := oncallpostgres.NewRepository(testDB)

	alice := createTestProfile(t, "upsert-alice", false)
	bob := createTestProfile(t, "upsert-bob", false)
	now := time.Now().UTC().Truncate(time.Second)

	shift := &domain.Shift{
		ID:     uuid.NewString(),
		UserID: alice.ID,
		UID:    "evt-" + uuid.NewString(),
		Start:  now.Add(time.Hour),
		End:    now.Add(13 * time.Hour),
	}
	createTestShift(t, shift)

	// Re-sync with the same calendar UID reassigns in place.
	resynced := &domain.Shift{
		ID:     uuid.NewString(),
		UserID: bob.ID,
		UID:    shift.UID,
		Start:  shift.Start,
		End:    shift.End.Add(time.Hour),
	}
	require.NoError(t, repo.UpsertShift(ctx, resynced))

	got, err := repo.GetShiftByUID(ctx, shift.UID)
	require.NoError(t, err)
	assert.Equal(t, shift.ID, got.ID, "row identity survives re-sync")
	assert.Equal(t, bob.ID, got.UserID)
	assert.WithinDuration(t, shift.End.Add(time.Hour), got.End, time.Second)
}

func TestOncallRepository_FutureShiftsSoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := oncallpostgres.NewRepository(testDB)

	user := createTestProfile(t, "soft-delete-user", false)
	now := time.Now().UTC().Truncate(time.Second)

	future := &domain.Shift{
		ID:     uuid.NewString(),
		UserID: user.ID,
		UID:    "evt-" + uuid.NewString(),
		Start:  now.Add(24 * time.Hour),
		End:    now.Add(36 * time.Hour),
	}
	createTestShift(t, future)

	past := &domain.Shift{
		ID:     uuid.NewString(),
		UserID: user.ID,
		UID:    "evt-" + uuid.NewString(),
		Start:  now.Add(-36 * time.Hour),
		End:    now.Add(-24 * time.Hour),
	}
	createTestShift(t, past)

	retired, err := repo.FutureShiftsSoftDelete(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retired, int64(1))

	got, err := repo.GetShiftByUID(ctx, future.UID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	got, err = repo.GetShiftByUID(ctx, past.UID)
	require.NoError(t, err)
	assert.False(t, got.Deleted, "history is preserved")

	// Reconciliation resurrects shifts the calendar still knows about.
	future.Deleted = false
	require.NoError(t, repo.UpsertShift(ctx, future))

	got, err = repo.GetShiftByUID(ctx, future.UID)
	require.NoError(t, err)
	assert.False(t, got.Deleted)
}

func TestOncallRepository_GetShiftByUID_NotFound(t *testing.T) {
	repo := oncallpostgres.NewRepository(testDB)

	_, err := repo.GetShiftByUID(context.Background(), "evt-"+uuid.NewString())
	assert.ErrorIs(t, err, oncall.ErrShiftNotFound)
}
