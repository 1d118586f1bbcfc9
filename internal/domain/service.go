package domain

import "time"

// Service represents a monitored unit whose health is derived from its
// status checks. OverallStatus and OldOverallStatus are mutated only by
// the status aggregator.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`

	// Per-channel notification switches.
	EmailAlert bool `json:"email_alert"`
	ChatAlert  bool `json:"chat_alert"`
	SMSAlert   bool `json:"sms_alert"`
	// PhoneAlert only fires when a check of critical importance fails.
	PhoneAlert bool `json:"phone_alert"`

	AlertsEnabled    bool       `json:"alerts_enabled"`
	OverallStatus    Status     `json:"overall_status"`
	OldOverallStatus Status     `json:"old_overall_status"`
	LastAlertSent    *time.Time `json:"last_alert_sent,omitempty"`
	// RunbookURL points at recovery instructions for duty officers.
	RunbookURL string `json:"runbook_url,omitempty"`

	CheckIDs  []string  `json:"check_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BecameCritical reports whether the last aggregation moved the service
// from any non-critical status into CRITICAL. "Just got critical" and
// "still critical" escalate differently, so this is broken out on its own.
func (s *Service) BecameCritical() bool {
	return s.OldOverallStatus != StatusCritical && s.OverallStatus == StatusCritical
}

// Snapshot is an immutable point-in-time record of a service's
// aggregate health, written once per aggregation cycle.
type Snapshot struct {
	ID               string    `json:"id"`
	ServiceID        string    `json:"service_id"`
	Time             time.Time `json:"time"`
	NumChecksActive  int       `json:"num_checks_active"`
	NumChecksPassing int       `json:"num_checks_passing"`
	NumChecksFailing int       `json:"num_checks_failing"`
	OverallStatus    Status    `json:"overall_status"`
	DidSendAlert     bool      `json:"did_send_alert"`
}
