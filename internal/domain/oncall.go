package domain

import (
	"strings"
	"time"
)

// Shift is an on-call assignment reconciled from the external calendar.
// Retired shifts are soft-deleted to preserve audit history.
type Shift struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// UID is the unique id of the calendar event this shift came from.
	UID       string    `json:"uid"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether the shift interval strictly contains at.
func (s *Shift) Contains(at time.Time) bool {
	return s.Start.Before(at) && s.End.After(at)
}

// UserProfile holds per-user contact metadata for alert delivery.
type UserProfile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	ChatAlias    string `json:"chat_alias,omitempty"`
	// FallbackAlertUser marks the single profile notified when no shift
	// covers the current time. At most one profile has this set.
	FallbackAlertUser bool      `json:"fallback_alert_user"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NormalizeMobileNumber strips the leading "+" so numbers are stored in
// bare digits.
func (p *UserProfile) NormalizeMobileNumber() {
	p.MobileNumber = strings.TrimPrefix(p.MobileNumber, "+")
}

// PrefixedMobileNumber returns the number in dialable +<digits> form.
func (p *UserProfile) PrefixedMobileNumber() string {
	if p.MobileNumber == "" {
		return ""
	}
	return "+" + p.MobileNumber
}

// ChannelType identifies a notification delivery channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeEmail ChannelType = "email"
	ChannelTypeChat  ChannelType = "chat"
	ChannelTypeSMS   ChannelType = "sms"
	ChannelTypePhone ChannelType = "phone"
)
