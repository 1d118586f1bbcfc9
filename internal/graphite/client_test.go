package graphite

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render/", r.URL.Path)
		assert.Equal(t, "servers.*.cpu", r.URL.Query().Get("target"))
		assert.Equal(t, "-5min", r.URL.Query().Get("from"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "grafana", user)
		assert.Equal(t, "secret", pass)

		fmt.Fprint(w, `[
			{"target": "servers.a.cpu", "datapoints": [[1.0, 100], [3.0, 160], [null, 220]]},
			{"target": "servers.b.cpu", "datapoints": [[2.0, 100], [6.0, 160]]},
			{"target": "servers.c.cpu", "datapoints": [[null, 100]]}
		]`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Username: "grafana", Password: "secret"})

	series, err := client.Query(context.Background(), "servers.*.cpu", 5*time.Minute)
	require.NoError(t, err)

	assert.False(t, series.Error)
	assert.Equal(t, 2, series.NumSeriesWithData)
	assert.Equal(t, 1.0, series.Min)
	assert.Equal(t, 6.0, series.Max)
	assert.Equal(t, 3.0, series.Average)
	assert.Equal(t, []float64{1.0, 3.0, 2.0, 6.0}, series.AllValues)
	assert.NotEmpty(t, series.Raw)
}

func TestClient_Query_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	series, err := client.Query(context.Background(), "no.such.metric", 5*time.Minute)
	require.NoError(t, err)

	assert.False(t, series.Error)
	assert.Equal(t, 0, series.NumSeriesWithData)
	assert.Empty(t, series.AllValues)
}

func TestClient_Query_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cannot parse target", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	series, err := client.Query(context.Background(), "bad(target", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, series.Error)
}

func TestClient_Query_TransportError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := client.Query(context.Background(), "servers.*.cpu", 5*time.Minute)
	require.Error(t, err)
}
