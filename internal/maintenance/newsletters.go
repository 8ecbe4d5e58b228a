// Package maintenance holds the periodic jobs that keep the platform's
// derived data fresh: newsletter generation and dispatch, webinar reminder
// materialization, the merge-candidates cache and the classifier metrics
// snapshot.
package maintenance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/emailqueue"
	"github.com/ignite/contact-core/internal/llm"
	"github.com/ignite/contact-core/internal/pkg/logger"
	"github.com/ignite/contact-core/internal/store"
)

// newsletterPrompt seeds the Monday auto-generation call.
const newsletterPrompt = `Write a short weekly B2B newsletter for healthcare-industry contacts.
Return a subject line on the first line, then the body in simple HTML.
Keep it under 400 words and do not invent statistics.`

// Newsletters owns auto-generation and the scheduled-send sweep.
type Newsletters struct {
	store *store.Store
	llm   llm.Adapter
	queue *emailqueue.Queue
	// frontendURL builds the preferences link in the footer; empty skips it.
	frontendURL string
}

// NewNewsletters wires the newsletter jobs.
func NewNewsletters(s *store.Store, adapter llm.Adapter, q *emailqueue.Queue, frontendURL string) *Newsletters {
	return &Newsletters{store: s, llm: adapter, queue: q, frontendURL: frontendURL}
}

// GenerateWeekly drafts the Monday newsletter through the LLM. Idempotent
// per ISO week: an existing auto-generated issue for the week short-circuits.
func (n *Newsletters) GenerateWeekly(ctx context.Context) error {
	now := time.Now().UTC()
	weekKey := domain.WeekKey(now)

	count, err := n.store.Newsletters().CountDocuments(ctx,
		bson.M{"week_key": weekKey, "auto_generated": true})
	if err != nil {
		return fmt.Errorf("newsletter existence check: %w", err)
	}
	if count > 0 {
		return nil
	}

	text, err := n.llm.Send(ctx, newsletterPrompt)
	if err != nil {
		return fmt.Errorf("newsletter generation: %w", err)
	}

	subject, body := splitSubject(text)
	issue := domain.Newsletter{
		ID:            uuid.New().String(),
		Subject:       subject,
		BodyHTML:      body,
		Status:        domain.NewsletterDraft,
		AutoGenerated: true,
		WeekKey:       weekKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := n.store.Newsletters().InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("store newsletter: %w", err)
	}
	log.Printf("[Newsletters] drafted issue %s for %s", issue.ID, weekKey)
	return nil
}

// SendDue enqueues every scheduled newsletter whose time has come to the
// stage-2+ contact audience, then marks it sent.
func (n *Newsletters) SendDue(ctx context.Context) error {
	now := time.Now().UTC()
	cur, err := n.store.Newsletters().Find(ctx, bson.M{
		"status":       domain.NewsletterScheduled,
		"scheduled_at": bson.M{"$lte": now},
	})
	if err != nil {
		return fmt.Errorf("load due newsletters: %w", err)
	}
	defer cur.Close(ctx)

	var due []domain.Newsletter
	if err := cur.All(ctx, &due); err != nil {
		return err
	}

	for _, issue := range due {
		recipients, err := n.audience(ctx)
		if err != nil {
			return err
		}
		html := n.withFooter(issue.BodyHTML)
		enqueued := 0
		for _, email := range recipients {
			if _, err := n.queue.Enqueue(ctx, email, issue.Subject, html, issue.BodyText, "newsletter", "", nil); err != nil {
				log.Printf("[Newsletters] enqueue for %s failed: %v", logger.RedactEmail(email), err)
				continue
			}
			enqueued++
		}

		_, err = n.store.Newsletters().UpdateOne(ctx,
			bson.M{"id": issue.ID},
			bson.M{"$set": bson.M{
				"status":     domain.NewsletterSent,
				"sent_at":    now,
				"updated_at": now,
			}})
		if err != nil {
			return fmt.Errorf("mark newsletter sent: %w", err)
		}
		log.Printf("[Newsletters] issue %s enqueued to %d recipients", issue.ID, enqueued)
	}
	return nil
}

// audience is every engaged-or-later contact with a primary email.
func (n *Newsletters) audience(ctx context.Context) ([]string, error) {
	cur, err := n.store.Contacts().Find(ctx,
		bson.M{
			"stage": bson.M{"$gte": domain.StageEngaged},
			"email": bson.M{"$nin": bson.A{"", nil}},
		},
		// Projection keeps the audience scan cheap.
		options.Find().SetProjection(bson.M{"email": 1}))
	if err != nil {
		return nil, fmt.Errorf("newsletter audience: %w", err)
	}
	defer cur.Close(ctx)

	seen := map[string]bool{}
	var out []string
	for cur.Next(ctx) {
		var c domain.Contact
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		email := strings.ToLower(c.Email)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out, cur.Err()
}

// withFooter appends the preferences link when a frontend URL is configured.
func (n *Newsletters) withFooter(html string) string {
	if n.frontendURL == "" {
		return html
	}
	return html + fmt.Sprintf(
		`<p style="font-size:12px;color:#888"><a href="%s/preferences">Manage your email preferences</a></p>`,
		strings.TrimRight(n.frontendURL, "/"))
}

// splitSubject takes the first non-empty line as subject, the rest as body.
func splitSubject(text string) (string, string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	subject := strings.TrimSpace(lines[0])
	subject = strings.TrimPrefix(subject, "Subject:")
	subject = strings.TrimSpace(subject)
	body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
	if subject == "" {
		subject = "Weekly update"
	}
	if body == "" {
		body = text
	}
	return subject, body
}
