package emailqueue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// drainBatchSize caps one drain pass.
const drainBatchSize = 100

// Queue enqueues and drains email_log rows.
type Queue struct {
	store  *store.Store
	mailer Mailer
}

// NewQueue wires the queue over the store and a mailer.
func NewQueue(s *store.Store, m Mailer) *Queue {
	return &Queue{store: s, mailer: m}
}

// Enqueue adds one row in queued state. scheduledAt nil means send at the
// next drain.
func (q *Queue) Enqueue(ctx context.Context, to, subject, html, text, rule, contactID string, scheduledAt *time.Time) (string, error) {
	row := domain.EmailLogRow{
		ID:          uuid.New().String(),
		To:          to,
		Subject:     subject,
		HTML:        html,
		Text:        text,
		Rule:        rule,
		ContactID:   contactID,
		Status:      domain.EmailQueued,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := q.store.EmailLog().InsertOne(ctx, row); err != nil {
		return "", fmt.Errorf("enqueue email: %w", err)
	}
	return row.ID, nil
}

// Drain sends due queued rows, oldest first. Per-row failures are recorded
// on the row; the pass continues. Returns the number sent.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	cur, err := q.store.EmailLog().Find(ctx,
		bson.M{
			"status": domain.EmailQueued,
			"$or": []bson.M{
				{"scheduled_at": bson.M{"$lte": now}},
				{"scheduled_at": nil},
			},
		},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(drainBatchSize))
	if err != nil {
		return 0, fmt.Errorf("load queued emails: %w", err)
	}
	defer cur.Close(ctx)

	var rows []domain.EmailLogRow
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range rows {
		// Claim the row so a concurrent drain cannot double-send it.
		res, err := q.store.EmailLog().UpdateOne(ctx,
			bson.M{"id": row.ID, "status": domain.EmailQueued},
			bson.M{"$set": bson.M{"status": domain.EmailSending}})
		if err != nil || res.ModifiedCount == 0 {
			continue
		}

		result, sendErr := q.mailer.Send(ctx, row.To, row.Subject, row.HTML, row.Text)
		sentAt := time.Now().UTC()
		if sendErr != nil {
			log.Printf("[EmailQueue] send %s failed: %v", row.ID, sendErr)
			q.store.EmailLog().UpdateOne(ctx, bson.M{"id": row.ID},
				bson.M{"$set": bson.M{"status": domain.EmailFailed, "error": sendErr.Error()}})
			continue
		}

		q.store.EmailLog().UpdateOne(ctx, bson.M{"id": row.ID},
			bson.M{"$set": bson.M{
				"status":     domain.EmailSent,
				"message_id": result.MessageID,
				"sent_at":    sentAt,
			}})
		sent++
	}

	if len(rows) > 0 {
		log.Printf("[EmailQueue] drained %d/%d queued emails", sent, len(rows))
	}
	return sent, nil
}
