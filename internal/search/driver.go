package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignite/contact-core/internal/alerts"
	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/importer"
	"github.com/ignite/contact-core/internal/store"
)

// SourcePositionSearch tags contacts created by the quota driver.
const SourcePositionSearch = "position_search"

// Driver runs persona searches against the weekly quota.
type Driver struct {
	store      *store.Store
	emitter    *alerts.Emitter
	classifier *classifier.Classifier
	actor      Actor
	cfg        config.SearchConfig
}

// NewDriver wires the quota driver.
func NewDriver(s *store.Store, e *alerts.Emitter, c *classifier.Classifier, actor Actor, cfg config.SearchConfig) *Driver {
	return &Driver{store: s, emitter: e, classifier: c, actor: actor, cfg: cfg}
}

// RunAll runs one quota pass for every persona carrying a priority row.
// Individual persona failures are logged and do not stop the pass.
func (d *Driver) RunAll(ctx context.Context) error {
	cur, err := d.store.PersonaPriorities().Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("load personas: %w", err)
	}
	defer cur.Close(ctx)

	var personas []domain.PersonaPriority
	if err := cur.All(ctx, &personas); err != nil {
		return err
	}

	var failed []string
	for _, p := range personas {
		if err := d.RunPersona(ctx, p.PersonaID); err != nil {
			log.Printf("[Search] persona %s run failed: %v", p.PersonaID, err)
			failed = append(failed, p.PersonaID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("persona runs failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

// RunPersona runs at most one search for the persona this tick: skipped when
// the week is rate-limit blocked or the goal is already met. A fresh rate
// limit raises the week alert instead of failing the run.
func (d *Driver) RunPersona(ctx context.Context, personaID string) error {
	now := time.Now().UTC()
	weekKey := domain.WeekKey(now)

	blocked, err := d.emitter.HasUnresolvedRateLimit(ctx, weekKey, personaID)
	if err != nil {
		return err
	}
	if blocked {
		log.Printf("[Search] persona %s blocked for %s by rate-limit alert", personaID, weekKey)
		return nil
	}

	count, err := WeeklyCount(ctx, d.store, weekKey, personaID, SourcePositionSearch)
	if err != nil {
		return err
	}
	remaining := d.cfg.WeeklyGoalPerFinder - count
	if remaining <= 0 {
		return nil
	}

	kw, err := NextKeyword(ctx, d.store, personaID)
	if err != nil {
		if errors.Is(err, ErrNoKeywords) {
			log.Printf("[Search] persona %s has no keywords, skipping", personaID)
			return nil
		}
		return err
	}

	candidates, err := d.actor.Search(ctx, kw.KeywordNormalized, remaining)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			log.Printf("[Search] persona %s rate-limited for %s: %v", personaID, weekKey, err)
			return d.emitter.RaiseRateLimit(ctx, weekKey, personaID, "prospecting", err.Error())
		}
		return err
	}

	created, err := d.insertCandidates(ctx, personaID, candidates, remaining)
	if err != nil {
		return err
	}

	if err := MarkKeywordUsed(ctx, d.store, kw.ID, created); err != nil {
		return err
	}
	if err := IncrementWeeklyCounter(ctx, d.store, weekKey, personaID, SourcePositionSearch, created); err != nil {
		return err
	}

	log.Printf("[Search] persona %s keyword %q: %d candidates, %d created (week %s, %d/%d)",
		personaID, kw.KeywordNormalized, len(candidates), created, weekKey, count+created, d.cfg.WeeklyGoalPerFinder)
	return nil
}

// insertCandidates inserts candidates that exist under neither identifier
// namespace, stopping at the remaining weekly goal. Returns the number
// actually created.
func (d *Driver) insertCandidates(ctx context.Context, personaID string, candidates []Candidate, remaining int) (int, error) {
	prepared := prepareCandidates(candidates)
	if len(prepared) == 0 {
		return 0, nil
	}

	var emails, urls []string
	for _, c := range prepared {
		if c.email != "" {
			emails = append(emails, c.email)
		}
		if c.normURL != "" {
			urls = append(urls, c.normURL)
		}
	}

	existing, err := d.existingIdentifiers(ctx, emails, urls)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var models []mongo.WriteModel
	for _, c := range prepared {
		if len(models) >= remaining {
			break
		}
		if (c.email != "" && existing["email:"+c.email]) ||
			(c.normURL != "" && existing["url:"+c.normURL]) {
			continue
		}
		existing["email:"+c.email] = true
		existing["url:"+c.normURL] = true

		result := d.classifier.Classify(ctx, c.raw.JobTitle)
		contact := domain.Contact{
			ID:                 uuid.New().String(),
			FirstName:          c.raw.FirstName,
			LastName:           c.raw.LastName,
			Name:               strings.TrimSpace(c.raw.FirstName + " " + c.raw.LastName),
			JobTitle:           c.raw.JobTitle,
			JobTitleNormalized: result.NormalizedTitle,
			BuyerPersona:       personaID,
			BuyerPersonaName:   result.PersonaName,
			Company:            c.raw.Company,
			Stage:              domain.StageConnected,
			Source:             SourcePositionSearch,
			Emails:             []domain.ContactEmail{},
			Companies:          []domain.ContactCompany{},
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if c.email != "" {
			contact.Email = c.email
			contact.Emails = []domain.ContactEmail{{Email: c.email, IsPrimary: true}}
		}
		if c.normURL != "" {
			contact.LinkedInURL = c.raw.LinkedInURL
			contact.LinkedInURLNormalized = c.normURL
		}

		var filter bson.M
		if c.normURL != "" {
			filter = bson.M{"linkedin_url_normalized": c.normURL}
		} else {
			filter = bson.M{"email": c.email}
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$setOnInsert": contact}).
			SetUpsert(true))
	}

	res, err := d.store.BulkWriteUnordered(ctx, store.CollContacts, models)
	if err != nil {
		if !store.IsPartialBulkError(err) {
			return 0, fmt.Errorf("candidate bulk write: %w", err)
		}
		log.Printf("[Search] partial candidate bulk failure: %v", err)
	}
	if res == nil {
		return 0, nil
	}
	return int(res.UpsertedCount), nil
}

// preparedCandidate carries a candidate's normalized identifiers.
type preparedCandidate struct {
	raw     Candidate
	email   string
	normURL string
}

// prepareCandidates normalizes identifiers and drops candidates that carry
// none, plus in-payload duplicates.
func prepareCandidates(candidates []Candidate) []preparedCandidate {
	seen := map[string]bool{}
	out := make([]preparedCandidate, 0, len(candidates))
	for _, c := range candidates {
		p := preparedCandidate{raw: c}
		if c.Email != "" {
			p.email = strings.ToLower(strings.TrimSpace(c.Email))
		}
		if c.LinkedInURL != "" {
			if norm, err := importer.NormalizeLinkedInURL(c.LinkedInURL); err == nil {
				p.normURL = norm
			}
		}
		if p.email == "" && p.normURL == "" {
			continue
		}
		key := p.normURL
		if key == "" {
			key = p.email
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// existingIdentifiers returns the set of identifiers already present in the
// contacts collection, prefixed by namespace.
func (d *Driver) existingIdentifiers(ctx context.Context, emails, urls []string) (map[string]bool, error) {
	out := map[string]bool{}

	var clauses []bson.M
	if len(emails) > 0 {
		clauses = append(clauses,
			bson.M{"email": bson.M{"$in": emails}},
			bson.M{"emails.email": bson.M{"$in": emails}})
	}
	if len(urls) > 0 {
		clauses = append(clauses, bson.M{"linkedin_url_normalized": bson.M{"$in": urls}})
	}
	if len(clauses) == 0 {
		return out, nil
	}

	cur, err := d.store.Contacts().Find(ctx, bson.M{"$or": clauses})
	if err != nil {
		return nil, fmt.Errorf("candidate dedup lookup: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var c domain.Contact
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		if c.Email != "" {
			out["email:"+c.Email] = true
		}
		for _, e := range c.Emails {
			out["email:"+e.Email] = true
		}
		if c.LinkedInURLNormalized != "" {
			out["url:"+c.LinkedInURLNormalized] = true
		}
	}
	return out, cur.Err()
}

// CheckWeeklyQuota notifies operators about personas that missed the weekly
// goal; intended for a Friday-evening scheduled run.
func (d *Driver) CheckWeeklyQuota(ctx context.Context) error {
	now := time.Now().UTC()
	weekKey := domain.WeekKey(now)

	cur, err := d.store.PersonaPriorities().Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	var personas []domain.PersonaPriority
	if err := cur.All(ctx, &personas); err != nil {
		return err
	}

	for _, p := range personas {
		count, err := WeeklyCount(ctx, d.store, weekKey, p.PersonaID, SourcePositionSearch)
		if err != nil {
			return err
		}
		if count >= d.cfg.WeeklyGoalPerFinder {
			continue
		}
		if err := d.emitter.Notify(ctx, domain.NotifyQuotaMissed,
			fmt.Sprintf("Weekly prospecting goal missed for %s", p.PersonaName),
			fmt.Sprintf("week=%s persona=%s count=%d goal=%d", weekKey, p.PersonaID, count, d.cfg.WeeklyGoalPerFinder),
		); err != nil {
			return err
		}
	}
	return nil
}
