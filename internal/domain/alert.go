package domain

import "time"

// AlertKind identifies week-scoped operator-resolvable alerts. Alerts drive
// traffic-light state; notifications (below) are one-shot events.
type AlertKind string

const (
	AlertRateLimit AlertKind = "rate_limit"
)

// Alert is scoped to an ISO week and optionally a persona. An unresolved
// rate_limit alert blocks further search runs for its week.
type Alert struct {
	ID         string     `json:"id" bson:"id"`
	Kind       AlertKind  `json:"kind" bson:"kind"`
	WeekKey    string     `json:"week_key" bson:"week_key"`
	PersonaID  string     `json:"persona_id,omitempty" bson:"persona_id,omitempty"`
	Section    string     `json:"section,omitempty" bson:"section,omitempty"`
	Message    string     `json:"message" bson:"message"`
	Resolved   bool       `json:"resolved" bson:"resolved"`
	ResolvedBy string     `json:"resolved_by,omitempty" bson:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

// NotificationKind identifies one-shot operator notifications.
type NotificationKind string

const (
	NotifyJobFailed       NotificationKind = "job_failed"
	NotifyScheduleFailure NotificationKind = "schedule_failure"
	NotifyQuotaMissed     NotificationKind = "quota_missed"
)

// Notification is a one-shot event row for the operator feed.
type Notification struct {
	ID        string           `json:"id" bson:"id"`
	Kind      NotificationKind `json:"kind" bson:"kind"`
	Subject   string           `json:"subject" bson:"subject"`
	Detail    string           `json:"detail,omitempty" bson:"detail,omitempty"`
	Read      bool             `json:"read" bson:"read"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
}

// EmailLogStatus tracks queue rows through the asynchronous sender.
type EmailLogStatus string

const (
	EmailQueued  EmailLogStatus = "queued"
	EmailSending EmailLogStatus = "sending"
	EmailSent    EmailLogStatus = "sent"
	EmailFailed  EmailLogStatus = "failed"
)

// EmailLogRow is one queued outbound email. The core only enqueues rows;
// the drain worker sends them through the Mailer.
type EmailLogRow struct {
	ID          string         `json:"id" bson:"id"`
	To          string         `json:"to" bson:"to"`
	Subject     string         `json:"subject" bson:"subject"`
	HTML        string         `json:"html,omitempty" bson:"html,omitempty"`
	Text        string         `json:"text,omitempty" bson:"text,omitempty"`
	Rule        string         `json:"rule,omitempty" bson:"rule,omitempty"` // cadence rule name
	ContactID   string         `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	Status      EmailLogStatus `json:"status" bson:"status"`
	MessageID   string         `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Error       string         `json:"error,omitempty" bson:"error,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`
	SentAt      *time.Time     `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}
