// Package sms provides SMS alert delivery.
package sms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/notifications"
)

// Config holds SMS sender configuration.
type Config struct {
	Enabled    bool
	APIKey     string
	FromNumber string
}

// Sender implements SMS alert delivery.
type Sender struct {
	config Config
}

// NewSender creates a new SMS sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.APIKey == "" {
			return nil, errors.New("sms sender: API key is required when enabled")
		}
	}

	slog.Info("sms sender configured", "enabled", config.Enabled)

	return &Sender{config: config}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeSMS
}

// Send sends an SMS alert.
// TODO: wire up the SMS gateway API once a provider is chosen.
func (s *Sender) Send(_ context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("sms sender disabled, skipping", "to", notification.To)
		return nil
	}

	slog.Info("sending sms alert (stub)",
		"to", notification.To,
		"body", notification.Body,
	)

	return nil
}
