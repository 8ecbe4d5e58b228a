package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// ErrKeywordOwned is returned when a keyword insert loses the priority
// contest against the current owner. The dictionary is left unchanged and
// the cache generation does not move.
var ErrKeywordOwned = errors.New("keyword already owned by a higher-priority persona")

// ErrKeywordNotFound is returned by DeleteKeyword for unknown keywords.
var ErrKeywordNotFound = errors.New("keyword not found")

// StoreDictionary is the store-backed keyword dictionary. It implements
// Dictionary for the classifier cache and owns all keyword mutations.
type StoreDictionary struct {
	store *store.Store
}

// NewStoreDictionary creates the store-backed dictionary.
func NewStoreDictionary(s *store.Store) *StoreDictionary {
	return &StoreDictionary{store: s}
}

// ListKeywords loads the full keyword dictionary.
func (d *StoreDictionary) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	cur, err := d.store.Keywords().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Keyword
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPriorities loads the persona priority table.
func (d *StoreDictionary) ListPriorities(ctx context.Context) ([]domain.PersonaPriority, error) {
	cur, err := d.store.PersonaPriorities().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.PersonaPriority
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// priorityOf reads one persona's priority; unknown personas sort last so
// they can never displace an existing owner.
func (d *StoreDictionary) priorityOf(ctx context.Context, personaID string) (int, error) {
	var p domain.PersonaPriority
	err := d.store.PersonaPriorities().FindOne(ctx, bson.M{"persona_id": personaID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return int(^uint(0) >> 1), nil
	}
	if err != nil {
		return 0, err
	}
	return p.Priority, nil
}

// AddKeyword inserts or re-owns one keyword. If the keyword exists and the
// new persona has strictly higher priority (lower number), ownership moves;
// otherwise ErrKeywordOwned. The caller bumps the classifier cache and
// enqueues a reclassification job on success.
func (d *StoreDictionary) AddKeyword(ctx context.Context, keyword, personaID, personaName string) (*domain.Keyword, error) {
	normalized := NormalizeTitle(keyword)
	if normalized == "" {
		return nil, fmt.Errorf("keyword normalizes to empty string")
	}

	var existing domain.Keyword
	err := d.store.Keywords().FindOne(ctx, bson.M{"keyword_normalized": normalized}).Decode(&existing)
	switch {
	case err == mongo.ErrNoDocuments:
		kw := domain.Keyword{
			ID:                uuid.New().String(),
			KeywordNormalized: normalized,
			PersonaID:         personaID,
			PersonaName:       personaName,
			CreatedAt:         time.Now().UTC(),
		}
		if _, err := d.store.Keywords().InsertOne(ctx, kw); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// Lost a race with a concurrent insert; re-run the
				// ownership contest against the winner.
				return d.AddKeyword(ctx, keyword, personaID, personaName)
			}
			return nil, err
		}
		return &kw, nil

	case err != nil:
		return nil, err
	}

	if existing.PersonaID == personaID {
		return &existing, nil
	}

	newPriority, err := d.priorityOf(ctx, personaID)
	if err != nil {
		return nil, err
	}
	curPriority, err := d.priorityOf(ctx, existing.PersonaID)
	if err != nil {
		return nil, err
	}
	if newPriority >= curPriority {
		return nil, fmt.Errorf("%w: %q belongs to %s (priority %d)",
			ErrKeywordOwned, normalized, existing.PersonaID, curPriority)
	}

	_, err = d.store.Keywords().UpdateOne(ctx,
		bson.M{"keyword_normalized": normalized},
		bson.M{"$set": bson.M{"persona_id": personaID, "persona_name": personaName}})
	if err != nil {
		return nil, err
	}
	existing.PersonaID = personaID
	existing.PersonaName = personaName
	return &existing, nil
}

// AddKeywords applies AddKeyword per entry, collecting per-keyword
// conflicts instead of aborting the batch. Returns the inserted/re-owned
// keywords and a map keyword→error for rejects.
func (d *StoreDictionary) AddKeywords(ctx context.Context, personaID, personaName string, keywords []string) ([]domain.Keyword, map[string]error) {
	var accepted []domain.Keyword
	rejected := make(map[string]error)
	for _, raw := range keywords {
		kw, err := d.AddKeyword(ctx, raw, personaID, personaName)
		if err != nil {
			rejected[raw] = err
			continue
		}
		accepted = append(accepted, *kw)
	}
	return accepted, rejected
}

// DeleteKeyword removes a keyword from the dictionary and returns the
// removed entry, so the caller can scope the follow-up reclassification to
// the persona that owned it.
func (d *StoreDictionary) DeleteKeyword(ctx context.Context, keyword string) (*domain.Keyword, error) {
	normalized := NormalizeTitle(keyword)
	var removed domain.Keyword
	err := d.store.Keywords().FindOneAndDelete(ctx, bson.M{"keyword_normalized": normalized}).Decode(&removed)
	if err == mongo.ErrNoDocuments {
		return nil, ErrKeywordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// SetPriority upserts one persona's priority.
func (d *StoreDictionary) SetPriority(ctx context.Context, p domain.PersonaPriority) error {
	update := bson.M{"$set": bson.M{"persona_name": p.PersonaName, "priority": p.Priority}}
	_, err := d.store.PersonaPriorities().UpdateOne(ctx,
		bson.M{"persona_id": p.PersonaID}, update,
		options.Update().SetUpsert(true))
	return err
}
