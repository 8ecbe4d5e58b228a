package domain

import "time"

// NewsletterStatus tracks a newsletter from draft to sent.
type NewsletterStatus string

const (
	NewsletterDraft     NewsletterStatus = "draft"
	NewsletterScheduled NewsletterStatus = "scheduled"
	NewsletterSent      NewsletterStatus = "sent"
)

// Newsletter is one generated or hand-written issue. Auto-generated issues
// stay in draft until an operator schedules them.
type Newsletter struct {
	ID          string           `json:"id" bson:"id"`
	Subject     string           `json:"subject" bson:"subject"`
	BodyHTML    string           `json:"body_html" bson:"body_html"`
	BodyText    string           `json:"body_text,omitempty" bson:"body_text,omitempty"`
	Status      NewsletterStatus `json:"status" bson:"status"`
	AutoGenerated bool           `json:"auto_generated" bson:"auto_generated"`
	WeekKey     string           `json:"week_key" bson:"week_key"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`
	SentAt      *time.Time       `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" bson:"updated_at"`
}
