package trafficlight

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ignite/contact-core/internal/calendar"
	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/search"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// BOARD ASSEMBLY
// =============================================================================

// Board builds the dashboard tree from the live persona and profile sets.
// Personas come from the priority table and profiles from the import tasks
// seen so far, so the tree is assembled per evaluation.
type Board struct {
	store   *store.Store
	alerts  RateLimitSource
	webinar calendar.Reader
	cfg     config.SearchConfig
}

// NewBoard wires the board builder. webinar may be nil when no calendar is
// configured; its leaf then reports coming_soon.
func NewBoard(s *store.Store, alerts RateLimitSource, webinar calendar.Reader, cfg config.SearchConfig) *Board {
	return &Board{store: s, alerts: alerts, webinar: webinar, cfg: cfg}
}

// Evaluate assembles the tree and computes every node's status.
func (b *Board) Evaluate(ctx context.Context, now time.Time) (map[string]NodeResult, error) {
	t := NewTree()

	// Prospecting: one external-dependency leaf per persona plus a section
	// total. The per-persona goal and the section goal are configured.
	t.AddSection("prospecting", "")
	personas, err := b.personaIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, personaID := range personas {
		t.AddLeaf("prospecting."+personaID, "prospecting",
			ExternalCounterLeaf(b.store, b.alerts, personaID, search.SourcePositionSearch, b.cfg.WeeklyGoalPerFinder))
	}
	t.AddLeaf("prospecting.total", "prospecting",
		ExternalCounterLeaf(b.store, b.alerts, "", search.SourcePositionSearch, b.cfg.WeeklyGoalTotal))

	// Imports: one leaf per profile that has ever completed an import.
	t.AddSection("imports", "")
	profiles, err := b.profiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		t.AddLeaf("imports."+profile, "imports", ImportTaskLeaf(b.store, profile))
	}
	if len(profiles) == 0 {
		t.AddLeaf("imports.none", "imports", ComingSoon())
	}

	// Content: a newsletter drafted or sent within the last two weeks.
	t.AddSection("content", "")
	t.AddLeaf("content.newsletter", "content",
		PresenceLeaf(b.store, store.CollNewsletters, "updated_at", 14*24*time.Hour))

	// Webinars: green when the calendar shows an event in the next week.
	t.AddSection("webinars", "")
	t.AddLeaf("webinars.upcoming", "webinars", b.webinarLeaf())

	// Current cases: the per-project pending-task rule.
	t.AddSection("current_cases", "")
	t.AddLeaf("current_cases.all", "current_cases", CurrentCasesLeaf(b.store))

	return t.Evaluate(ctx, now), nil
}

func (b *Board) webinarLeaf() Leaf {
	if b.webinar == nil {
		return ComingSoon()
	}
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		events, err := b.webinar.UpcomingEvents(ctx, 7*24*time.Hour)
		if err != nil {
			return NodeResult{}, err
		}
		status := StatusRed
		if len(events) > 0 {
			status = StatusGreen
		}
		return NodeResult{
			Status:   status,
			Metadata: map[string]any{"upcoming": len(events)},
		}, nil
	})
}

func (b *Board) personaIDs(ctx context.Context) ([]string, error) {
	cur, err := b.store.PersonaPriorities().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var rows []domain.PersonaPriority
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.PersonaID)
	}
	return ids, nil
}

func (b *Board) profiles(ctx context.Context) ([]string, error) {
	raw, err := b.store.ImportTasks().Distinct(ctx, "profile", bson.M{})
	if err != nil {
		return nil, err
	}
	profiles := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			profiles = append(profiles, s)
		}
	}
	return profiles, nil
}
