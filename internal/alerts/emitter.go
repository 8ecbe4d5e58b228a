// Package alerts emits the two operator-facing event kinds: week-scoped
// resolvable alerts (which drive traffic-light state) and one-shot
// notifications.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// Emitter writes alert and notification rows.
type Emitter struct {
	store *store.Store
}

// NewEmitter creates an Emitter over the store.
func NewEmitter(s *store.Store) *Emitter {
	return &Emitter{store: s}
}

// RaiseRateLimit records a rate-limit alert for (weekKey, personaID).
// Upsert keyed on the pair plus kind so repeated 429s within one week
// produce a single unresolved alert.
func (e *Emitter) RaiseRateLimit(ctx context.Context, weekKey, personaID, section, message string) error {
	now := time.Now().UTC()
	filter := bson.M{
		"kind":       domain.AlertRateLimit,
		"week_key":   weekKey,
		"persona_id": personaID,
		"resolved":   false,
	}
	update := bson.M{
		"$set": bson.M{"message": message, "section": section},
		"$setOnInsert": bson.M{
			"id":         uuid.New().String(),
			"created_at": now,
		},
	}
	_, err := e.store.Alerts().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// HasUnresolvedRateLimit reports whether the week carries an open
// rate-limit alert, optionally narrowed to one persona.
func (e *Emitter) HasUnresolvedRateLimit(ctx context.Context, weekKey, personaID string) (bool, error) {
	filter := bson.M{
		"kind":     domain.AlertRateLimit,
		"week_key": weekKey,
		"resolved": false,
	}
	if personaID != "" {
		filter["persona_id"] = personaID
	}
	n, err := e.store.Alerts().CountDocuments(ctx, filter)
	return n > 0, err
}

// ListOpen returns unresolved alerts, newest first, optionally narrowed to
// one ISO week.
func (e *Emitter) ListOpen(ctx context.Context, weekKey string) ([]domain.Alert, error) {
	filter := bson.M{"resolved": false}
	if weekKey != "" {
		filter["week_key"] = weekKey
	}
	cur, err := e.store.Alerts().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.Alert
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve marks an alert resolved by an operator.
func (e *Emitter) Resolve(ctx context.Context, alertID, resolvedBy string) error {
	now := time.Now().UTC()
	_, err := e.store.Alerts().UpdateOne(ctx,
		bson.M{"id": alertID},
		bson.M{"$set": bson.M{"resolved": true, "resolved_by": resolvedBy, "resolved_at": now}})
	return err
}

// Notify inserts a one-shot notification row.
func (e *Emitter) Notify(ctx context.Context, kind domain.NotificationKind, subject, detail string) error {
	n := domain.Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Subject:   subject,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	_, err := e.store.Notifications().InsertOne(ctx, n)
	return err
}
