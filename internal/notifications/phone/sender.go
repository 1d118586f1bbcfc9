// Package phone provides voice call alert delivery.
package phone

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/notifications"
)

// Config holds phone sender configuration.
type Config struct {
	Enabled    bool
	APIKey     string
	FromNumber string
}

// Sender implements voice call alert delivery.
type Sender struct {
	config Config
}

// NewSender creates a new phone sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.APIKey == "" {
			return nil, errors.New("phone sender: API key is required when enabled")
		}
	}

	slog.Info("phone sender configured", "enabled", config.Enabled)

	return &Sender{config: config}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypePhone
}

// Send places a voice call with the alert message.
// TODO: wire up the telephony provider API once one is chosen.
func (s *Sender) Send(_ context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("phone sender disabled, skipping", "to", notification.To)
		return nil
	}

	slog.Info("placing alert call (stub)",
		"to", notification.To,
	)

	return nil
}
