package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-core/internal/domain"
)

// fakeDict is an in-memory Dictionary for classifier tests.
type fakeDict struct {
	keywords   []domain.Keyword
	priorities []domain.PersonaPriority
	loads      int
}

func (f *fakeDict) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	f.loads++
	return f.keywords, nil
}

func (f *fakeDict) ListPriorities(ctx context.Context) ([]domain.PersonaPriority, error) {
	return f.priorities, nil
}

func newTestClassifier() (*Classifier, *fakeDict) {
	dict := &fakeDict{
		keywords: []domain.Keyword{
			{KeywordNormalized: "ceo", PersonaID: "alba", PersonaName: "Alba"},
			{KeywordNormalized: "chief executive", PersonaID: "alba", PersonaName: "Alba"},
			{KeywordNormalized: "manager", PersonaID: "rodrigo", PersonaName: "Rodrigo"},
			{KeywordNormalized: "sales manager", PersonaID: "lucia", PersonaName: "Lucía"},
			{KeywordNormalized: "vp", PersonaID: "lucia", PersonaName: "Lucía"},
		},
		priorities: []domain.PersonaPriority{
			{PersonaID: "alba", PersonaName: "Alba", Priority: 1},
			{PersonaID: "lucia", PersonaName: "Lucía", Priority: 2},
			{PersonaID: "rodrigo", PersonaName: "Rodrigo", Priority: 3},
			{PersonaID: "mateo", PersonaName: "Mateo", Priority: 99},
		},
	}
	return New(dict), dict
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "vp sales", NormalizeTitle("VP, Sales"))
	assert.Equal(t, "chief executive officer", NormalizeTitle("  Chief   Executive\tOfficer "))
	assert.Equal(t, "head of r and d", NormalizeTitle("Head of R&D"))
	assert.Equal(t, "", NormalizeTitle("  ,,, "))

	// Idempotence: N(N(x)) = N(x)
	for _, title := range []string{"VP, Sales", "CEO & Founder", "Gerente / Comercial"} {
		once := NormalizeTitle(title)
		assert.Equal(t, once, NormalizeTitle(once))
	}
}

func TestClassifyDefault(t *testing.T) {
	c, _ := newTestClassifier()

	res := c.Classify(context.Background(), "Astronaut")
	assert.True(t, res.IsDefault)
	assert.Equal(t, domain.DefaultPersonaID, res.PersonaID)
	assert.Empty(t, res.AllMatches)
}

func TestClassifyPriorityWins(t *testing.T) {
	c, _ := newTestClassifier()

	// "ceo" (alba, prio 1) and "manager" (rodrigo, prio 3) both match.
	res := c.Classify(context.Background(), "CEO and General Manager")
	assert.False(t, res.IsDefault)
	assert.Equal(t, "alba", res.PersonaID)
	assert.Len(t, res.AllMatches, 2)
}

func TestClassifyLongerKeywordBreaksTie(t *testing.T) {
	c, _ := newTestClassifier()

	// "sales manager" and "vp" are both lucia (prio 2); "manager" is
	// rodrigo (prio 3). Winner must be lucia via the longer keyword.
	res := c.Classify(context.Background(), "VP Sales Manager")
	assert.Equal(t, "lucia", res.PersonaID)
	assert.Equal(t, "sales manager", res.MatchedKeywords[0])
}

func TestClassifyCacheGeneration(t *testing.T) {
	c, dict := newTestClassifier()
	ctx := context.Background()

	c.Classify(ctx, "CEO")
	c.Classify(ctx, "CEO")
	assert.Equal(t, 1, dict.loads, "snapshot should be reused at same generation")

	dict.keywords = append(dict.keywords, domain.Keyword{
		KeywordNormalized: "astronaut", PersonaID: "rodrigo", PersonaName: "Rodrigo",
	})
	c.Invalidate()

	res := c.Classify(ctx, "Astronaut")
	assert.Equal(t, 2, dict.loads, "invalidation must force a refetch")
	assert.Equal(t, "rodrigo", res.PersonaID)
}

func TestClassifyBatchDeduplicates(t *testing.T) {
	c, _ := newTestClassifier()

	out := c.ClassifyBatch(context.Background(), []string{"CEO", "CEO", "Manager"})
	require.Len(t, out, 2)
	assert.Equal(t, "alba", out["CEO"].PersonaID)
	assert.Equal(t, "rodrigo", out["Manager"].PersonaID)
}
