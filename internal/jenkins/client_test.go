package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/checks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_JobStatus(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	queuedSince := now.Add(-3 * time.Minute).UnixMilli()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/job/green-job/api/json":
			fmt.Fprint(w, `{"buildable": true, "color": "blue", "inQueue": false}`)
		case "/job/red-job/api/json":
			fmt.Fprint(w, `{"buildable": true, "color": "red_anime", "inQueue": false}`)
		case "/job/disabled-job/api/json":
			fmt.Fprint(w, `{"buildable": false, "color": "disabled", "inQueue": false}`)
		case "/job/queued-job/api/json":
			fmt.Fprintf(w, `{"buildable": true, "color": "blue", "inQueue": true, "queueItem": {"inQueueSince": %d}}`, queuedSince)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	client.now = func() time.Time { return now }

	t.Run("green job", func(t *testing.T) {
		status, err := client.JobStatus(context.Background(), "green-job")
		require.NoError(t, err)
		assert.True(t, status.Active)
		assert.True(t, status.Succeeded)
		assert.Nil(t, status.BlockedBuildTime)
	})

	t.Run("red job including animations", func(t *testing.T) {
		status, err := client.JobStatus(context.Background(), "red-job")
		require.NoError(t, err)
		assert.True(t, status.Active)
		assert.False(t, status.Succeeded)
	})

	t.Run("disabled job", func(t *testing.T) {
		status, err := client.JobStatus(context.Background(), "disabled-job")
		require.NoError(t, err)
		assert.False(t, status.Active)
	})

	t.Run("queued job reports blocked seconds", func(t *testing.T) {
		status, err := client.JobStatus(context.Background(), "queued-job")
		require.NoError(t, err)
		require.NotNil(t, status.BlockedBuildTime)
		assert.InDelta(t, 180.0, *status.BlockedBuildTime, 0.1)
	})

	t.Run("unknown job surfaces sentinel", func(t *testing.T) {
		_, err := client.JobStatus(context.Background(), "no-such-job")
		require.Error(t, err)
		assert.True(t, errors.Is(err, checks.ErrJobNotFound))
	})
}

func TestClient_JobStatus_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.JobStatus(context.Background(), "any-job")
	require.Error(t, err)
	assert.False(t, errors.Is(err, checks.ErrJobNotFound))
}
