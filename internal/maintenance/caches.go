package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

const (
	mergeCandidatesKey = "contacts:merge_candidates"
	mergeCandidatesTTL = 48 * time.Hour

	classifierMetricsKey = "classifier:metrics"
	classifierMetricsTTL = 12 * time.Hour
)

// MergeCandidate is a pair of contacts an operator may want to merge.
type MergeCandidate struct {
	ContactA string `json:"contact_a"`
	ContactB string `json:"contact_b"`
	Reason   string `json:"reason"` // same_company_and_name | same_name
}

// Caches owns the redis-backed derived views refreshed on a schedule.
type Caches struct {
	store *store.Store
	redis *redis.Client
}

// NewCaches wires the cache refresh jobs.
func NewCaches(s *store.Store, r *redis.Client) *Caches {
	return &Caches{store: s, redis: r}
}

// RefreshMergeCandidates recomputes likely-duplicate contact pairs: same
// normalized full name, stronger when the primary company also matches.
// The result is cached for the operator review screen.
func (c *Caches) RefreshMergeCandidates(ctx context.Context) error {
	cur, err := c.store.Contacts().Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{
			"id": 1, "first_name": 1, "last_name": 1, "company_id": 1,
		}))
	if err != nil {
		return fmt.Errorf("merge candidates scan: %w", err)
	}
	defer cur.Close(ctx)

	type slim struct {
		ID        string `bson:"id"`
		FirstName string `bson:"first_name"`
		LastName  string `bson:"last_name"`
		CompanyID string `bson:"company_id"`
	}

	byName := map[string][]slim{}
	for cur.Next(ctx) {
		var s slim
		if err := cur.Decode(&s); err != nil {
			return err
		}
		key := nameKey(s.FirstName, s.LastName)
		if key == "" {
			continue
		}
		byName[key] = append(byName[key], s)
	}
	if err := cur.Err(); err != nil {
		return err
	}

	var candidates []MergeCandidate
	for _, group := range byName {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				reason := "same_name"
				if group[i].CompanyID != "" && group[i].CompanyID == group[j].CompanyID {
					reason = "same_company_and_name"
				}
				candidates = append(candidates, MergeCandidate{
					ContactA: group[i].ID,
					ContactB: group[j].ID,
					Reason:   reason,
				})
			}
		}
	}

	data, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, mergeCandidatesKey, data, mergeCandidatesTTL).Err(); err != nil {
		return fmt.Errorf("merge candidates cache write: %w", err)
	}
	log.Printf("[Caches] merge candidates refreshed: %d pairs", len(candidates))
	return nil
}

// MergeCandidates reads the cached pairs; a cold cache returns empty.
func (c *Caches) MergeCandidates(ctx context.Context) ([]MergeCandidate, error) {
	data, err := c.redis.Get(ctx, mergeCandidatesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []MergeCandidate
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassifierMetrics is the cached persona distribution snapshot.
type ClassifierMetrics struct {
	Total      int64            `json:"total"`
	ByPersona  map[string]int64 `json:"by_persona"`
	Unassigned int64            `json:"unassigned"`
	Locked     int64            `json:"locked"`
	TakenAt    time.Time        `json:"taken_at"`
}

// SnapshotClassifierMetrics recomputes the persona distribution and caches
// it for the diagnostics endpoint.
func (c *Caches) SnapshotClassifierMetrics(ctx context.Context) error {
	contacts := c.store.Contacts()

	total, err := contacts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("metrics total: %w", err)
	}

	metrics := ClassifierMetrics{
		Total:     total,
		ByPersona: map[string]int64{},
		TakenAt:   time.Now().UTC(),
	}

	cur, err := c.store.PersonaPriorities().Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	var personas []domain.PersonaPriority
	if err := cur.All(ctx, &personas); err != nil {
		return err
	}
	for _, p := range personas {
		n, err := contacts.CountDocuments(ctx, bson.M{"buyer_persona": p.PersonaID})
		if err != nil {
			return err
		}
		metrics.ByPersona[p.PersonaID] = n
	}

	metrics.Unassigned, err = contacts.CountDocuments(ctx,
		bson.M{"buyer_persona": bson.M{"$in": bson.A{"", nil}}})
	if err != nil {
		return err
	}
	metrics.Locked, err = contacts.CountDocuments(ctx, bson.M{"persona_locked": true})
	if err != nil {
		return err
	}

	data, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, classifierMetricsKey, data, classifierMetricsTTL).Err(); err != nil {
		return fmt.Errorf("metrics cache write: %w", err)
	}
	return nil
}

// ClassifierMetricsSnapshot reads the cached snapshot; ok is false when the
// cache is cold.
func (c *Caches) ClassifierMetricsSnapshot(ctx context.Context) (ClassifierMetrics, bool, error) {
	data, err := c.redis.Get(ctx, classifierMetricsKey).Bytes()
	if err == redis.Nil {
		return ClassifierMetrics{}, false, nil
	}
	if err != nil {
		return ClassifierMetrics{}, false, err
	}
	var out ClassifierMetrics
	if err := json.Unmarshal(data, &out); err != nil {
		return ClassifierMetrics{}, false, err
	}
	return out, true, nil
}

func nameKey(first, last string) string {
	key := normalizeName(first) + "|" + normalizeName(last)
	if key == "|" {
		return ""
	}
	return key
}

func normalizeName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		}
	}
	return string(out)
}
