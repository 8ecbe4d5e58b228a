package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// ErrNoKeywords is returned when a persona has no keywords to rotate.
var ErrNoKeywords = errors.New("persona has no keywords")

// NextKeyword selects the persona's least-recently-used keyword. Keywords
// never used sort first (absent last_used precedes any timestamp in the
// store's ascending order), so every keyword cycles once before any repeats.
func NextKeyword(ctx context.Context, s *store.Store, personaID string) (*domain.Keyword, error) {
	var kw domain.Keyword
	err := s.Keywords().FindOne(ctx,
		bson.M{"persona_id": personaID},
		options.FindOne().SetSort(bson.D{{Key: "last_used", Value: 1}}),
	).Decode(&kw)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoKeywords
	}
	if err != nil {
		return nil, fmt.Errorf("keyword rotation: %w", err)
	}
	return &kw, nil
}

// MarkKeywordUsed stamps the rotation bookkeeping after a successful run.
func MarkKeywordUsed(ctx context.Context, s *store.Store, keywordID string, contactsFound int) error {
	now := time.Now().UTC()
	_, err := s.Keywords().UpdateOne(ctx,
		bson.M{"id": keywordID},
		bson.M{
			"$set": bson.M{"last_used": now},
			"$inc": bson.M{"use_count": 1, "contacts_found": contactsFound},
		})
	if err != nil {
		return fmt.Errorf("mark keyword used: %w", err)
	}
	return nil
}

// IncrementWeeklyCounter adds created contacts to the (week, persona,
// source) counter, creating the row on first use.
func IncrementWeeklyCounter(ctx context.Context, s *store.Store, weekKey, personaID, source string, delta int) error {
	if delta == 0 {
		return nil
	}
	_, err := s.WeeklyCounters().UpdateOne(ctx,
		bson.M{"week_key": weekKey, "persona_id": personaID, "source": source},
		bson.M{
			"$inc": bson.M{"count": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("weekly counter: %w", err)
	}
	return nil
}

// WeeklyCount reads the (week, persona, source) counter; a missing row is 0.
func WeeklyCount(ctx context.Context, s *store.Store, weekKey, personaID, source string) (int, error) {
	var c domain.WeeklyCounter
	err := s.WeeklyCounters().FindOne(ctx,
		bson.M{"week_key": weekKey, "persona_id": personaID, "source": source},
	).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Count, nil
}
