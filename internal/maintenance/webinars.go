package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignite/contact-core/internal/calendar"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/emailqueue"
	"github.com/ignite/contact-core/internal/pkg/logger"
	"github.com/ignite/contact-core/internal/store"
)

// reminderWindow is how far ahead reminders are materialized.
const reminderWindow = 24 * time.Hour

// reminderRule is the email-cadence sentinel key on the contact, so the
// 5-minute tick never enqueues the same reminder twice.
const reminderRule = "webinar_reminder"

// Webinars materializes reminder emails for upcoming calendar events whose
// attendees are known contacts.
type Webinars struct {
	store  *store.Store
	reader calendar.Reader
	queue  *emailqueue.Queue
}

// NewWebinars wires the webinar reminder job.
func NewWebinars(s *store.Store, r calendar.Reader, q *emailqueue.Queue) *Webinars {
	return &Webinars{store: s, reader: r, queue: q}
}

// MaterializeReminders enqueues one reminder per (contact, upcoming event).
// Idempotency rides on the per-contact cadence sentinel keyed by event.
func (w *Webinars) MaterializeReminders(ctx context.Context) error {
	events, err := w.reader.UpcomingEvents(ctx, reminderWindow)
	if err != nil {
		return fmt.Errorf("upcoming events: %w", err)
	}

	now := time.Now().UTC()
	for _, ev := range events {
		if len(ev.Attendees) == 0 {
			continue
		}
		ruleKey := reminderRule + "_" + ev.EventID

		for _, email := range ev.Attendees {
			var contact domain.Contact
			err := w.store.Contacts().FindOne(ctx, bson.M{
				"$or": bson.A{
					bson.M{"email": email},
					bson.M{"emails.email": email},
				},
			}).Decode(&contact)
			if err == mongo.ErrNoDocuments {
				continue
			}
			if err != nil {
				return fmt.Errorf("reminder contact lookup: %w", err)
			}
			if _, already := contact.LastEmailSent[ruleKey]; already {
				continue
			}

			subject := fmt.Sprintf("Reminder: %s starts soon", ev.Summary)
			body := fmt.Sprintf("<p>Hi %s,</p><p>This is a reminder that <b>%s</b> starts at %s.</p>",
				contact.FirstName, ev.Summary, ev.Start.Format("15:04 MST, Jan 2"))

			if _, err := w.queue.Enqueue(ctx, email, subject, body, "", ruleKey, contact.ID, nil); err != nil {
				log.Printf("[Webinars] enqueue reminder for %s failed: %v", logger.RedactEmail(email), err)
				continue
			}

			_, err = w.store.Contacts().UpdateOne(ctx,
				bson.M{"id": contact.ID},
				bson.M{"$set": bson.M{
					"last_email_sent." + ruleKey: now,
					"updated_at":                 now,
				}})
			if err != nil {
				log.Printf("[Webinars] sentinel update for %s failed: %v", contact.ID, err)
			}
		}
	}
	return nil
}
