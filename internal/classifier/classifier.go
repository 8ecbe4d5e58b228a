// Package classifier maps job titles to buyer personas through an ordered
// keyword dictionary with a process-local, generation-invalidated cache.
package classifier

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ignite/contact-core/internal/domain"
)

// Match is one keyword hit against a normalized job title.
type Match struct {
	Keyword     string `json:"keyword"`
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	Priority    int    `json:"priority"`
}

// Result is the outcome of classifying one job title. AllMatches carries
// every hit for diagnostic endpoints; the Persona fields hold the winner.
type Result struct {
	PersonaID       string   `json:"persona_id"`
	PersonaName     string   `json:"persona_display_name"`
	MatchedKeywords []string `json:"matched_keywords"`
	AllMatches      []Match  `json:"all_matches"`
	NormalizedTitle string   `json:"normalized_job_title"`
	IsDefault       bool     `json:"is_default"`
}

// Dictionary is the read side of the keyword store the classifier caches.
type Dictionary interface {
	ListKeywords(ctx context.Context) ([]domain.Keyword, error)
	ListPriorities(ctx context.Context) ([]domain.PersonaPriority, error)
}

// snapshot is one immutable view of the dictionary, tagged with the
// generation it was loaded at.
type snapshot struct {
	gen        int64
	keywords   map[string]domain.Keyword // keyword_normalized → keyword
	priorities map[string]domain.PersonaPriority
}

// Classifier resolves job titles to personas. It is safe for concurrent
// use: the cache is a read-mostly snapshot swapped atomically and
// invalidated by a generation counter bumped on any dictionary mutation.
type Classifier struct {
	dict Dictionary

	gen  atomic.Int64
	mu   sync.Mutex // guards refresh, not reads
	snap atomic.Pointer[snapshot]
}

// New creates a Classifier over the given dictionary source.
func New(dict Dictionary) *Classifier {
	return &Classifier{dict: dict}
}

// Invalidate bumps the cache generation; the next read refetches. Called
// after any keyword or priority mutation. The generation is process-local:
// other processes keep their snapshot until restart.
func (c *Classifier) Invalidate() {
	c.gen.Add(1)
}

// Generation exposes the current cache generation for tests and metrics.
func (c *Classifier) Generation() int64 { return c.gen.Load() }

// current returns a snapshot at the current generation, refetching when the
// cached one is stale. A refetch failure falls back to the stale snapshot
// so classification itself never fails.
func (c *Classifier) current(ctx context.Context) *snapshot {
	gen := c.gen.Load()
	if s := c.snap.Load(); s != nil && s.gen == gen {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have refreshed while we waited.
	if s := c.snap.Load(); s != nil && s.gen == gen {
		return s
	}

	keywords, err := c.dict.ListKeywords(ctx)
	if err != nil {
		log.Printf("[Classifier] keyword refresh failed, serving stale cache: %v", err)
		return c.snap.Load()
	}
	priorities, err := c.dict.ListPriorities(ctx)
	if err != nil {
		log.Printf("[Classifier] priority refresh failed, serving stale cache: %v", err)
		return c.snap.Load()
	}

	s := &snapshot{
		gen:        gen,
		keywords:   make(map[string]domain.Keyword, len(keywords)),
		priorities: make(map[string]domain.PersonaPriority, len(priorities)),
	}
	for _, k := range keywords {
		s.keywords[k.KeywordNormalized] = k
	}
	for _, p := range priorities {
		s.priorities[p.PersonaID] = p
	}
	c.snap.Store(s)
	return s
}

// priorityOf returns the persona's priority, with unknown personas sorted
// last.
func (s *snapshot) priorityOf(personaID string) int {
	if p, ok := s.priorities[personaID]; ok {
		return p.Priority
	}
	return int(^uint(0) >> 1)
}

// Classify maps a job title to a persona. Pure over the current snapshot:
// it never returns an error. An empty or unmatched title yields the
// default persona with IsDefault set.
func (c *Classifier) Classify(ctx context.Context, jobTitle string) Result {
	normalized := NormalizeTitle(jobTitle)
	res := Result{NormalizedTitle: normalized}

	snap := c.current(ctx)
	if snap != nil && normalized != "" {
		for kw, entry := range snap.keywords {
			if strings.Contains(normalized, kw) {
				res.AllMatches = append(res.AllMatches, Match{
					Keyword:     kw,
					PersonaID:   entry.PersonaID,
					PersonaName: entry.PersonaName,
					Priority:    snap.priorityOf(entry.PersonaID),
				})
			}
		}
	}

	if len(res.AllMatches) == 0 {
		res.PersonaID = domain.DefaultPersonaID
		res.PersonaName = defaultPersonaName(snap)
		res.IsDefault = true
		return res
	}

	// Winner: lowest priority number, then longer keyword, then
	// lexicographic keyword order.
	sort.Slice(res.AllMatches, func(i, j int) bool {
		a, b := res.AllMatches[i], res.AllMatches[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if len(a.Keyword) != len(b.Keyword) {
			return len(a.Keyword) > len(b.Keyword)
		}
		return a.Keyword < b.Keyword
	})

	winner := res.AllMatches[0]
	res.PersonaID = winner.PersonaID
	res.PersonaName = winner.PersonaName
	for _, m := range res.AllMatches {
		if m.PersonaID == winner.PersonaID {
			res.MatchedKeywords = append(res.MatchedKeywords, m.Keyword)
		}
	}
	return res
}

// ClassifyBatch classifies each distinct title once; the import worker
// carries results alongside rows for the rest of the pipeline.
func (c *Classifier) ClassifyBatch(ctx context.Context, titles []string) map[string]Result {
	out := make(map[string]Result, len(titles))
	for _, t := range titles {
		if _, done := out[t]; done {
			continue
		}
		out[t] = c.Classify(ctx, t)
	}
	return out
}

func defaultPersonaName(s *snapshot) string {
	if s != nil {
		if p, ok := s.priorities[domain.DefaultPersonaID]; ok {
			return p.PersonaName
		}
	}
	return "Mateo"
}
