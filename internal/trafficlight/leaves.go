package trafficlight

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// LEAF EVALUATORS
// =============================================================================

// WeeklyCounterLeaf is a time-gated leaf over a (persona, source) weekly
// counter with a per-leaf goal.
func WeeklyCounterLeaf(s *store.Store, personaID, source string, goal int) Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		count, err := sumWeeklyCounters(ctx, s, domain.WeekKey(now), personaID, source)
		if err != nil {
			return NodeResult{}, err
		}
		return NodeResult{
			Status: CounterStatus(count, goal),
			Metadata: map[string]any{
				"count":    count,
				"goal":     goal,
				"week_key": domain.WeekKey(now),
			},
		}, nil
	})
}

// ExternalCounterLeaf behaves like WeeklyCounterLeaf but turns red whenever
// the week carries an unresolved rate-limit alert for the persona,
// regardless of the counter.
func ExternalCounterLeaf(s *store.Store, alerts RateLimitSource, personaID, source string, goal int) Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		weekKey := domain.WeekKey(now)

		limited, err := alerts.HasUnresolvedRateLimit(ctx, weekKey, personaID)
		if err != nil {
			return NodeResult{}, err
		}
		if limited {
			return NodeResult{
				Status: StatusRed,
				Metadata: map[string]any{
					"rate_limited": true,
					"week_key":     weekKey,
				},
			}, nil
		}

		count, err := sumWeeklyCounters(ctx, s, weekKey, personaID, source)
		if err != nil {
			return NodeResult{}, err
		}
		return NodeResult{
			Status: CounterStatus(count, goal),
			Metadata: map[string]any{
				"count":    count,
				"goal":     goal,
				"week_key": weekKey,
			},
		}, nil
	})
}

// PresenceLeaf is a content/data-presence leaf: green when the collection
// has a document newer than maxAge, yellow when only older documents exist,
// red when empty.
func PresenceLeaf(s *store.Store, collection, timeField string, maxAge time.Duration) Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		coll := s.Database().Collection(collection)

		total, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return NodeResult{}, fmt.Errorf("presence count %s: %w", collection, err)
		}
		if total == 0 {
			return NodeResult{Status: StatusRed, Metadata: map[string]any{"count": 0}}, nil
		}

		recent, err := coll.CountDocuments(ctx,
			bson.M{timeField: bson.M{"$gte": now.Add(-maxAge)}},
			options.Count().SetLimit(1))
		if err != nil {
			return NodeResult{}, fmt.Errorf("presence recency %s: %w", collection, err)
		}

		status := StatusYellow
		if recent > 0 {
			status = StatusGreen
		}
		return NodeResult{
			Status:   status,
			Metadata: map[string]any{"count": total, "recent": recent > 0},
		}, nil
	})
}

// ImportTaskLeaf is green when the profile's import was completed for the
// current week, red otherwise.
func ImportTaskLeaf(s *store.Store, profile string) Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		weekStart := domain.WeekStart(now)
		n, err := s.ImportTasks().CountDocuments(ctx, bson.M{
			"profile":          profile,
			"week_start":       weekStart,
			"import_completed": true,
		})
		if err != nil {
			return NodeResult{}, fmt.Errorf("import task %s: %w", profile, err)
		}
		status := StatusRed
		if n > 0 {
			status = StatusGreen
		}
		return NodeResult{
			Status:   status,
			Metadata: map[string]any{"profile": profile, "week_start": weekStart},
		}, nil
	})
}

func sumWeeklyCounters(ctx context.Context, s *store.Store, weekKey, personaID, source string) (int, error) {
	filter := bson.M{"week_key": weekKey}
	if personaID != "" {
		filter["persona_id"] = personaID
	}
	if source != "" {
		filter["source"] = source
	}

	cur, err := s.WeeklyCounters().Find(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("weekly counters: %w", err)
	}
	defer cur.Close(ctx)

	total := 0
	for cur.Next(ctx) {
		var c domain.WeeklyCounter
		if err := cur.Decode(&c); err != nil {
			return 0, err
		}
		total += c.Count
	}
	return total, cur.Err()
}
