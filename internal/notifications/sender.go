// Package notifications delivers service alerts to duty officers over
// the channels each service has enabled.
package notifications

import (
	"context"

	"github.com/bissquit/status-garden/internal/domain"
)

// Notification is a single message for a single recipient. To holds the
// channel-specific address: an email, a dialable number, a chat alias.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}
