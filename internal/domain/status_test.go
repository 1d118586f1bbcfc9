package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMostSevere(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{"empty is passing", nil, StatusPassing},
		{"single warning", []Status{StatusWarning}, StatusWarning},
		{"critical beats everything", []Status{StatusWarning, StatusCritical, StatusError}, StatusCritical},
		{"error beats warning", []Status{StatusWarning, StatusError}, StatusError},
		{"passing entries do not raise severity", []Status{StatusPassing, StatusWarning}, StatusWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MostSevere(tt.statuses))
		})
	}
}

func TestStatusRank(t *testing.T) {
	assert.Greater(t, StatusCritical.Rank(), StatusError.Rank())
	assert.Greater(t, StatusError.Rank(), StatusWarning.Rank())
	assert.Greater(t, StatusWarning.Rank(), StatusPassing.Rank())
}

func TestServiceBecameCritical(t *testing.T) {
	svc := &Service{OverallStatus: StatusCritical, OldOverallStatus: StatusError}
	assert.True(t, svc.BecameCritical())

	svc = &Service{OverallStatus: StatusCritical, OldOverallStatus: StatusCritical}
	assert.False(t, svc.BecameCritical())

	svc = &Service{OverallStatus: StatusError, OldOverallStatus: StatusPassing}
	assert.False(t, svc.BecameCritical())
}
