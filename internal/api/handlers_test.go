package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/domain"
)

// fakeDictionary serves a fixed keyword set so classify routes can be
// exercised without a database.
type fakeDictionary struct {
	keywords   []domain.Keyword
	priorities []domain.PersonaPriority
}

func (d *fakeDictionary) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	return d.keywords, nil
}

func (d *fakeDictionary) ListPriorities(ctx context.Context) ([]domain.PersonaPriority, error) {
	return d.priorities, nil
}

// fakeKeywordStore fronts the dictionary mutation surface. Keywords named
// "taken" lose the ownership contest; DeleteKeyword serves the configured
// removed entry or reports not-found.
type fakeKeywordStore struct {
	removed *domain.Keyword
}

func (f *fakeKeywordStore) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	return nil, nil
}

func (f *fakeKeywordStore) AddKeywords(ctx context.Context, personaID, personaName string, keywords []string) ([]domain.Keyword, map[string]error) {
	var added []domain.Keyword
	rejected := map[string]error{}
	for _, kw := range keywords {
		if kw == "taken" {
			rejected[kw] = classifier.ErrKeywordOwned
			continue
		}
		added = append(added, domain.Keyword{KeywordNormalized: kw, PersonaID: personaID})
	}
	return added, rejected
}

func (f *fakeKeywordStore) DeleteKeyword(ctx context.Context, keyword string) (*domain.Keyword, error) {
	if f.removed == nil {
		return nil, classifier.ErrKeywordNotFound
	}
	return f.removed, nil
}

func (f *fakeKeywordStore) ListPriorities(ctx context.Context) ([]domain.PersonaPriority, error) {
	return nil, nil
}

func (f *fakeKeywordStore) SetPriority(ctx context.Context, p domain.PersonaPriority) error {
	return nil
}

// fakeReclassifyQueue records every enqueued sweep filter.
type fakeReclassifyQueue struct {
	filters []bson.M
}

func (f *fakeReclassifyQueue) Enqueue(ctx context.Context, filter bson.M) (string, error) {
	f.filters = append(f.filters, filter)
	return fmt.Sprintf("sweep-%d", len(f.filters)), nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dict := &fakeDictionary{
		keywords: []domain.Keyword{
			{KeywordNormalized: "sales", PersonaID: "greta", PersonaName: "Greta"},
		},
		priorities: []domain.PersonaPriority{
			{PersonaID: "greta", PersonaName: "Greta", Priority: 1},
		},
	}
	h := NewHandlers(nil, nil, classifier.New(dict), nil, nil, nil, nil, nil)
	return SetupRoutes(h, nil)
}

// newKeywordRouter wires the classifier routes over fakes so dictionary
// mutations and their follow-up sweeps can be asserted end to end.
func newKeywordRouter(t *testing.T, store *fakeKeywordStore) (http.Handler, *fakeReclassifyQueue) {
	t.Helper()
	queue := &fakeReclassifyQueue{}
	h := NewHandlers(nil, nil, classifier.New(&fakeDictionary{}), store, queue, nil, nil, nil)
	return SetupRoutes(h, nil), queue
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestClassifyRequiresTitle(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/classifier/classify", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyReturnsWinner(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/classifier/classify?title=VP+of+Sales", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var result classifier.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "greta", result.PersonaID)
	assert.False(t, result.IsDefault)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not found", body["error"])
}

func TestAddKeywordsEnqueuesSweep(t *testing.T) {
	router, queue := newKeywordRouter(t, &fakeKeywordStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/classifier/keywords",
		strings.NewReader(`{"persona_id":"greta","persona_name":"Greta","keywords":["sales ops"]}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// New keywords can win titles off any persona, so the sweep is unscoped.
	require.Len(t, queue.filters, 1)
	assert.Empty(t, queue.filters[0])

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sweep-1", body["reclassify_job_id"])
}

func TestAddKeywordsAllRejectedSkipsSweep(t *testing.T) {
	router, queue := newKeywordRouter(t, &fakeKeywordStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/classifier/keywords",
		strings.NewReader(`{"persona_id":"mateo","keywords":["taken"]}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, queue.filters, "a fully rejected batch changes nothing")
}

func TestDeleteKeywordScopesSweepToOwner(t *testing.T) {
	store := &fakeKeywordStore{removed: &domain.Keyword{KeywordNormalized: "sales", PersonaID: "greta"}}
	router, queue := newKeywordRouter(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/classifier/keywords/sales", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, queue.filters, 1)
	assert.Equal(t, bson.M{"buyer_persona": "greta"}, queue.filters[0])
}

func TestDeleteUnknownKeywordIs404WithoutSweep(t *testing.T) {
	router, queue := newKeywordRouter(t, &fakeKeywordStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/classifier/keywords/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, queue.filters)
}

func TestSchedulerStatusUnavailableWithoutScheduler(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scheduler/status", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
