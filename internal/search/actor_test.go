package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-core/internal/config"
)

func newTestActor(t *testing.T, handler http.HandlerFunc) *ActorClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewActorClient(config.SearchConfig{
		ActorURL:       srv.URL,
		ActorToken:     "test-token",
		TimeoutSeconds: 5,
	})
}

func TestActorSearchSuccess(t *testing.T) {
	client := newTestActor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"results":[{"first_name":"Jane","last_name":"Doe","linkedin_url":"https://linkedin.com/in/janedoe","job_title":"CFO"}]}`))
	})

	results, err := client.Search(context.Background(), "cfo pharma", 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Jane", results[0].FirstName)
	assert.Equal(t, "CFO", results[0].JobTitle)
}

func TestActorSearch429IsRateLimit(t *testing.T) {
	client := newTestActor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), "cfo", 10)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestActorSearchQuotaTextIsRateLimit(t *testing.T) {
	client := newTestActor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"monthly quota exceeded"}`))
	})

	_, err := client.Search(context.Background(), "cfo", 10)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestActorSearchPlainErrorIsNotRateLimit(t *testing.T) {
	client := newTestActor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"malformed keyword"}`))
	})

	_, err := client.Search(context.Background(), "cfo", 10)
	require.Error(t, err)
	assert.False(t, IsRateLimitError(err))
}

func TestIsRateLimitResponse(t *testing.T) {
	assert.True(t, IsRateLimitResponse(429, ""))
	assert.True(t, IsRateLimitResponse(500, "rate LIMIT reached"))
	assert.True(t, IsRateLimitResponse(200, "quota exhausted"))
	assert.False(t, IsRateLimitResponse(500, "internal error"))
	assert.False(t, IsRateLimitResponse(200, ""))
}

func TestPrepareCandidates(t *testing.T) {
	in := []Candidate{
		{FirstName: "A", Email: " JANE@Example.com "},
		{FirstName: "B", LinkedInURL: "https://linkedin.com/in/B/?x=1"},
		{FirstName: "C"}, // no identifier
		{FirstName: "D", LinkedInURL: "https://linkedin.com/in/b"}, // dup of B after normalization
	}

	out := prepareCandidates(in)
	require.Len(t, out, 2)
	assert.Equal(t, "jane@example.com", out[0].email)
	assert.Equal(t, "https://linkedin.com/in/b", out[1].normURL)
}
