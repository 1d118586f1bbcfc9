package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// Dispatcher routes a service alert to the channels the service has
// enabled, addressing each duty officer's contact details. Delivery
// failures on one channel never block the others.
type Dispatcher struct {
	renderer *Renderer
	senders  map[domain.ChannelType]Sender
	now      func() time.Time
}

// NewDispatcher creates a dispatcher with the given channel senders.
func NewDispatcher(renderer *Renderer, senders ...Sender) *Dispatcher {
	byType := make(map[domain.ChannelType]Sender, len(senders))
	for _, s := range senders {
		byType[s.Type()] = s
	}
	return &Dispatcher{
		renderer: renderer,
		senders:  byType,
		now:      time.Now,
	}
}

// SendAlert delivers the alert to the duty officers over each channel
// the service has enabled. Phone calls go out only when the service
// just became critical. The returned error is always nil today; the
// signature leaves room for transports that must surface failure.
func (d *Dispatcher) SendAlert(ctx context.Context, svc *domain.Service, officers []domain.UserProfile, becameCritical bool) error {
	payload := AlertPayload{
		ServiceName:    svc.Name,
		ServiceURL:     svc.URL,
		Status:         svc.OverallStatus,
		BecameCritical: becameCritical,
		RunbookURL:     svc.RunbookURL,
		Officers:       officers,
		Time:           d.now(),
	}

	if svc.EmailAlert {
		for _, officer := range officers {
			if officer.Email == "" {
				continue
			}
			d.send(ctx, domain.ChannelTypeEmail, officer.Email, payload)
		}
	}

	if svc.ChatAlert {
		// One chat message covers the whole roster; the template
		// mentions each officer by alias.
		d.send(ctx, domain.ChannelTypeChat, "", payload)
	}

	if svc.SMSAlert {
		for _, officer := range officers {
			number := officer.PrefixedMobileNumber()
			if number == "" {
				continue
			}
			d.send(ctx, domain.ChannelTypeSMS, number, payload)
		}
	}

	if svc.PhoneAlert && becameCritical {
		for _, officer := range officers {
			number := officer.PrefixedMobileNumber()
			if number == "" {
				continue
			}
			d.send(ctx, domain.ChannelTypePhone, number, payload)
		}
	}

	return nil
}

func (d *Dispatcher) send(ctx context.Context, channel domain.ChannelType, to string, payload AlertPayload) {
	sender, ok := d.senders[channel]
	if !ok {
		slog.Warn("no sender for channel type", "type", channel)
		return
	}

	subject, body, err := d.renderer.Render(channel, payload)
	if err != nil {
		slog.Error("failed to render alert", "type", channel, "error", err)
		recordDelivery(string(channel), "render_error")
		return
	}

	notification := Notification{To: to, Subject: subject, Body: body}
	if err := sender.Send(ctx, notification); err != nil {
		slog.Error("failed to send alert",
			"type", channel,
			"service", payload.ServiceName,
			"error", err,
		)
		recordDelivery(string(channel), "error")
		return
	}

	recordDelivery(string(channel), "ok")
}
